package solver

import (
	"math"
	"sort"

	"github.com/eugenenazirov/share-selector/internal/catalog"
)

type greedySolver struct{}

// NewGreedy creates a Solver that fills the budget with the most profitable
// items per unit of cost first. The result is feasible but not always optimal.
func NewGreedy() Solver {
	return &greedySolver{}
}

func (s *greedySolver) Solve(items []catalog.Item, budget float64) (catalog.Selection, error) {
	if err := validateBudget(budget); err != nil {
		return nil, err
	}

	ranked := rankByEfficiency(items)

	selection := make(catalog.Selection, 0, len(ranked))
	spent := 0.0
	for _, idx := range ranked {
		item := items[idx]
		if spent+item.Cost > budget {
			// A cheaper item further down may still fit.
			continue
		}
		selection = append(selection, item)
		spent += item.Cost
	}

	return selection, nil
}

// rankByEfficiency returns item indices ordered by profit per unit of cost,
// highest first. Ties keep catalog order.
func rankByEfficiency(items []catalog.Item) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return efficiency(items[order[a]]) > efficiency(items[order[b]])
	})
	return order
}

// efficiency treats zero-cost items as infinitely efficient.
func efficiency(item catalog.Item) float64 {
	if item.Cost == 0 {
		return math.Inf(1)
	}
	return item.Profit / item.Cost
}
