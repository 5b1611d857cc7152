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

	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/share-selector/internal/catalog"
)

// Format identifies the layout of an input file.
type Format string

const (
	// FormatText is a tab-separated file: name, cost, profit rate in percent.
	FormatText Format = "text"
	// FormatCSV is a comma-separated file with columns name, price, profit.
	FormatCSV Format = "csv"
)

var hundred = decimal.NewFromInt(100)

// Options controls how a file is turned into a catalog.
type Options struct {
	// Format overrides detection by file extension when set.
	Format Format
	// Scale multiplies every cost, e.g. 100 to express euros as cents.
	// Scaled costs are rounded up to whole units.
	Scale int64
	// Clean drops duplicate names and non-positive or loss-making shares.
	Clean bool
}

// Record is one raw input row before validation.
type Record struct {
	Line  int
	Name  string
	Price decimal.Decimal
	// Rate is the profit after the holding period, in percent of Price.
	Rate decimal.Decimal
}

// Profit resolves the rate into an absolute amount.
func (r Record) Profit() decimal.Decimal {
	return r.Price.Mul(r.Rate).Div(hundred)
}

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".tsv":
		return FormatText, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ParseFormat validates a format name given on the command line.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatText, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// Load reads the file at path and builds a validated catalog.
func Load(path string, opts Options) (catalog.Catalog, CleanStats, error) {
	records, err := LoadRecords(path, opts.Format)
	if err != nil {
		return nil, CleanStats{}, err
	}

	stats := CleanStats{Input: len(records), Kept: len(records)}
	if opts.Clean {
		records, stats = Clean(records)
	}

	items, err := ToCatalog(records, opts.Scale)
	if err != nil {
		return nil, stats, fmt.Errorf("%s: %w", path, err)
	}
	return items, stats, nil
}

// LoadRecords opens path and parses its rows without validating amounts.
func LoadRecords(path string, format Format) ([]Record, error) {
	if format == "" {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadRecords(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// ReadRecords parses rows from r. A first row whose price column is not a
// number is treated as a header and skipped.
func ReadRecords(r io.Reader, format Format) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	switch format {
	case FormatText:
		reader.Comma = '\t'
	case FormatCSV:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}

	var records []Record
	for row := 0; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			line := 0
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			return nil, &RecordError{Line: line, Err: err}
		}
		line, _ := reader.FieldPos(0)
		if isBlank(fields) {
			continue
		}
		if row == 0 && isHeader(fields) {
			continue
		}
		record, err := parseRecord(line, fields)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func parseRecord(line int, fields []string) (Record, error) {
	if len(fields) < 3 {
		return Record{}, &RecordError{Line: line, Err: fmt.Errorf("expected 3 fields, got %d", len(fields))}
	}
	name := strings.TrimSpace(fields[0])
	if name == "" {
		return Record{}, &RecordError{Line: line, Field: "name", Err: errors.New("empty name")}
	}
	price, err := parseAmount(fields[1])
	if err != nil {
		return Record{}, &RecordError{Line: line, Field: "price", Value: fields[1], Err: err}
	}
	rate, err := parseAmount(strings.TrimSuffix(strings.TrimSpace(fields[2]), "%"))
	if err != nil {
		return Record{}, &RecordError{Line: line, Field: "profit", Value: fields[2], Err: err}
	}
	return Record{Line: line, Name: name, Price: price, Rate: rate}, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(raw))
}

func isHeader(fields []string) bool {
	if len(fields) < 2 {
		return false
	}
	_, err := parseAmount(fields[1])
	return err != nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ToCatalog converts records into validated items. Costs are multiplied by
// scale; a scale above one rounds them up to whole units, so a scaled cost
// never understates the price and always compares safely with ScaleBudget.
func ToCatalog(records []Record, scale int64) (catalog.Catalog, error) {
	if scale == 0 {
		scale = 1
	}
	if scale < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidScale, scale)
	}
	factor := decimal.NewFromInt(scale)

	items := make(catalog.Catalog, 0, len(records))
	for _, rec := range records {
		cost := rec.Price
		if scale > 1 {
			cost = cost.Mul(factor).Ceil()
		}
		item, err := catalog.NewItem(rec.Name, cost.InexactFloat64(), rec.Profit().InexactFloat64())
		if err != nil {
			return nil, &RecordError{Line: rec.Line, Err: err}
		}
		items = append(items, item)
	}
	return items, nil
}

// ScaleBudget expresses budget in the units ToCatalog produces for scale.
// A scaled budget is floored so a selection never exceeds the unscaled amount.
func ScaleBudget(budget float64, scale int64) (float64, error) {
	if scale == 0 {
		scale = 1
	}
	if scale < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidScale, scale)
	}
	if scale == 1 {
		return budget, nil
	}
	return decimal.NewFromFloat(budget).Mul(decimal.NewFromInt(scale)).Floor().InexactFloat64(), nil
}
