package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/eugenenazirov/share-selector/internal/catalog"
	"github.com/eugenenazirov/share-selector/internal/solver"
)

// Report is the outcome of one solve, ready to be written out.
// Costs in Items and TotalCost are expressed in scaled units; Scale converts
// them back to currency.
type Report struct {
	RunID       string            `json:"runId"`
	Strategy    solver.Strategy   `json:"strategy"`
	Budget      float64           `json:"budget"`
	Scale       int64             `json:"scale"`
	Items       catalog.Selection `json:"items"`
	TotalCost   float64           `json:"totalCost"`
	TotalProfit float64           `json:"totalProfit"`
	Duration    time.Duration     `json:"durationNs"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// New builds a Report for the selection and derives its totals.
func New(strategy solver.Strategy, budget float64, scale int64, selection catalog.Selection, took time.Duration) Report {
	if scale < 1 {
		scale = 1
	}
	if selection == nil {
		selection = catalog.Selection{}
	}
	return Report{
		RunID:       uuid.NewString(),
		Strategy:    strategy,
		Budget:      budget,
		Scale:       scale,
		Items:       selection,
		TotalCost:   selection.TotalCost(),
		TotalProfit: selection.TotalProfit(),
		Duration:    took,
		GeneratedAt: time.Now().UTC(),
	}
}

func (r Report) unscale(cost float64) float64 {
	return cost / float64(r.Scale)
}

// CostAmount is TotalCost converted back to currency.
func (r Report) CostAmount() float64 { return r.unscale(r.TotalCost) }

// BudgetAmount is Budget converted back to currency.
func (r Report) BudgetAmount() float64 { return r.unscale(r.Budget) }

// WriteText writes the human-readable listing: one line per share followed by
// the totals. Amounts use English digit grouping and two decimals.
func WriteText(w io.Writer, r Report) error {
	p := message.NewPrinter(language.English)
	bw := bufio.NewWriter(w)

	_, _ = p.Fprintf(bw, "# strategy: %s, budget: %.2f, run: %s\n", r.Strategy, r.unscale(r.Budget), r.RunID)
	_, _ = fmt.Fprintln(bw, "name, price, profit")
	for _, item := range r.Items {
		_, _ = p.Fprintf(bw, "%s, %.2f, %.2f\n", item.Name, r.unscale(item.Cost), item.Profit)
	}
	_, _ = fmt.Fprintln(bw)
	_, _ = p.Fprintf(bw, "Total cost: %.2f\n", r.unscale(r.TotalCost))
	_, _ = p.Fprintf(bw, "Total profit: %.2f\n", r.TotalProfit)

	return bw.Flush()
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// OutputPath derives the report file name from the input file and strategy,
// e.g. input/dataset1.csv -> <dir>/dataset1_dynamic.txt.
func OutputPath(input, dir string, strategy solver.Strategy) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, fmt.Sprintf("%s_%s.txt", base, strategy))
}

// WriteFile writes the text report to path, creating parent directories.
func WriteFile(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := WriteText(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}
