package solver

import (
	"fmt"
	"math"

	"github.com/eugenenazirov/share-selector/internal/catalog"
)

// maxEnumerable is the largest catalog whose subsets fit a uint64 counter.
const maxEnumerable = 62

type exhaustiveSolver struct{}

// NewExhaustive creates a Solver that tries every subset of the catalog.
// It runs in O(2^n · n) and is only practical for small catalogs.
func NewExhaustive() Solver {
	return &exhaustiveSolver{}
}

func (s *exhaustiveSolver) Solve(items []catalog.Item, budget float64) (catalog.Selection, error) {
	if err := validateBudget(budget); err != nil {
		return nil, err
	}
	n := len(items)
	if n > maxEnumerable {
		return nil, fmt.Errorf("%w: %d items, limit %d", ErrTooManyItems, n, maxEnumerable)
	}

	// The empty subset is the starting best and is always feasible.
	var (
		bestMask   uint64
		bestProfit float64
	)
	combinations := uint64(1) << n
	for mask := uint64(1); mask < combinations; mask++ {
		cost, profit := 0.0, 0.0
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				cost += items[i].Cost
				profit += items[i].Profit
			}
		}
		// Equal profits keep the subset seen first.
		if profit > bestProfit && cost <= budget {
			bestMask = mask
			bestProfit = profit
		}
	}

	return decodeMask(items, bestMask), nil
}

func decodeMask(items []catalog.Item, mask uint64) catalog.Selection {
	selection := make(catalog.Selection, 0)
	for i := range items {
		if mask&(1<<i) != 0 {
			selection = append(selection, items[i])
		}
	}
	return selection
}

func validateBudget(budget float64) error {
	if math.IsNaN(budget) || math.IsInf(budget, 0) || budget < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidBudget, budget)
	}
	return nil
}
