package solver

import (
	"fmt"
	"math"
	"slices"

	"github.com/eugenenazirov/share-selector/internal/catalog"
)

// maxExactInteger is the largest whole number a float64 represents exactly.
const maxExactInteger = 1 << 53

type dpSolver struct{}

// NewDynamic creates a Solver based on dynamic programming over
// (item prefix, cost limit). Costs and budget must be whole numbers; the
// table takes O(n · budget) time and memory.
func NewDynamic() Solver {
	return &dpSolver{}
}

func (s *dpSolver) Solve(items []catalog.Item, budget float64) (catalog.Selection, error) {
	if err := validateBudget(budget); err != nil {
		return nil, err
	}
	if !isWhole(budget) {
		return nil, fmt.Errorf("%w: budget %v", ErrNonIntegerCost, budget)
	}
	costs := make([]int, len(items))
	for i, item := range items {
		if item.Cost < 0 || !isWhole(item.Cost) {
			return nil, fmt.Errorf("%w: item %d (%s) costs %v", ErrNonIntegerCost, i, item.Name, item.Cost)
		}
		costs[i] = int(item.Cost)
	}

	limit := int(budget)
	table := buildTable(items, costs, limit)
	picked, err := backtrace(table, costs, limit)
	if err != nil {
		return nil, err
	}

	selection := make(catalog.Selection, 0, len(picked))
	for _, idx := range picked {
		selection = append(selection, items[idx])
	}
	return selection, nil
}

// buildTable fills B where B[i][w] is the best profit using the first i items
// under cost limit w.
func buildTable(items []catalog.Item, costs []int, limit int) [][]float64 {
	table := make([][]float64, len(items)+1)
	for i := range table {
		table[i] = make([]float64, limit+1)
	}

	for i := 1; i <= len(items); i++ {
		cost := costs[i-1]
		profit := items[i-1].Profit
		prev, row := table[i-1], table[i]
		for w := 0; w <= limit; w++ {
			if cost > w {
				row[w] = prev[w]
				continue
			}
			row[w] = max(prev[w], profit+prev[w-cost])
		}
	}
	return table
}

// backtrace walks the table from the bottom-right cell and returns the
// indices of the chosen items in catalog order.
func backtrace(table [][]float64, costs []int, limit int) ([]int, error) {
	picked := make([]int, 0)
	w := limit
	for i := len(table) - 1; i > 0; i-- {
		if table[i][w] == table[i-1][w] {
			continue
		}
		cost := costs[i-1]
		if cost > w {
			return nil, fmt.Errorf("%w: item %d costs %d with %d left", ErrInconsistentTable, i-1, cost, w)
		}
		picked = append(picked, i-1)
		w -= cost
	}
	slices.Reverse(picked)
	return picked, nil
}

// TableCells reports how many cells the dynamic solver allocates for the
// given catalog size and budget.
func TableCells(items int, budget float64) float64 {
	return float64(items+1) * (math.Floor(budget) + 1)
}

func isWhole(v float64) bool {
	return v == math.Trunc(v) && math.Abs(v) <= maxExactInteger
}
