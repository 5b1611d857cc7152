package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/eugenenazirov/share-selector/internal/catalog"
)

// ErrOutputExists is returned when a cleaned dataset would overwrite a file.
var ErrOutputExists = errors.New("output file already exists")

// CleanStats counts what Clean removed.
type CleanStats struct {
	Input           int `json:"input"`
	Duplicates      int `json:"duplicates"`
	NonPositiveCost int `json:"nonPositiveCost"`
	NegativeProfit  int `json:"negativeProfit"`
	Kept            int `json:"kept"`
}

// Clean drops records sharing a name with an earlier record, then records
// with a price of zero or less or a negative profit. Order is preserved.
func Clean(records []Record) ([]Record, CleanStats) {
	return clean(records, func(rec Record) (string, int, int) {
		return rec.Name, rec.Price.Sign(), rec.Rate.Sign()
	})
}

// CleanCatalog applies the Clean rules to items that already carry
// absolute amounts.
func CleanCatalog(items catalog.Catalog) (catalog.Catalog, CleanStats) {
	return clean(items, func(item catalog.Item) (string, int, int) {
		return item.Name, sign(item.Cost), sign(item.Profit)
	})
}

func clean[T any](in []T, key func(T) (name string, costSign, profitSign int)) ([]T, CleanStats) {
	stats := CleanStats{Input: len(in)}
	seen := make(map[string]struct{}, len(in))
	kept := make([]T, 0, len(in))

	for _, v := range in {
		name, costSign, profitSign := key(v)
		if _, dup := seen[name]; dup {
			stats.Duplicates++
			continue
		}
		seen[name] = struct{}{}

		switch {
		case costSign <= 0:
			stats.NonPositiveCost++
		case profitSign < 0:
			stats.NegativeProfit++
		default:
			kept = append(kept, v)
		}
	}

	stats.Kept = len(kept)
	return kept, stats
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// WriteCSV writes records as a name,price,profit dataset.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "price", "profit"}); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write([]string{rec.Name, rec.Price.String(), rec.Rate.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CleanedPath derives the cleaned dataset name, e.g. data.csv -> data_cleaned.csv.
func CleanedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_cleaned.csv"
}

// CleanFile cleans the dataset at path and writes it next to the input.
// An existing output file is never overwritten.
func CleanFile(path string) (string, CleanStats, error) {
	records, err := LoadRecords(path, "")
	if err != nil {
		return "", CleanStats{}, err
	}
	cleaned, stats := Clean(records)

	out := CleanedPath(path)
	f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return out, stats, fmt.Errorf("%w: %s", ErrOutputExists, out)
		}
		return out, stats, fmt.Errorf("create %s: %w", out, err)
	}
	if err := WriteCSV(f, cleaned); err != nil {
		_ = f.Close()
		return out, stats, fmt.Errorf("write %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return out, stats, fmt.Errorf("close %s: %w", out, err)
	}
	return out, stats, nil
}
