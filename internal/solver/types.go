package solver

import (
	"fmt"
	"strings"

	"github.com/eugenenazirov/share-selector/internal/catalog"
)

// Solver describes the behaviour required from a selection strategy.
// Implementations never mutate items and keep no state between calls.
type Solver interface {
	Solve(items []catalog.Item, budget float64) (catalog.Selection, error)
}

// Strategy names one of the available solvers.
type Strategy string

const (
	BruteForce Strategy = "bruteforce"
	Greedy     Strategy = "greedy"
	Dynamic    Strategy = "dynamic"
)

var aliases = map[string]Strategy{
	"bruteforce":  BruteForce,
	"brute-force": BruteForce,
	"exhaustive":  BruteForce,
	"greedy":      Greedy,
	"dynamic":     Dynamic,
	"dp":          Dynamic,
	"optimized":   Dynamic,
}

// Strategies returns every supported strategy in a stable order.
func Strategies() []Strategy {
	return []Strategy{BruteForce, Greedy, Dynamic}
}

// ParseStrategy resolves a strategy name or one of its aliases.
func ParseStrategy(raw string) (Strategy, error) {
	s, ok := aliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, raw)
	}
	return s, nil
}

// Exact reports whether the strategy always returns an optimal selection.
func (s Strategy) Exact() bool {
	return s == BruteForce || s == Dynamic
}

func (s Strategy) String() string { return string(s) }

// New creates the Solver implementing the given strategy.
func New(strategy Strategy) (Solver, error) {
	switch strategy {
	case BruteForce:
		return NewExhaustive(), nil
	case Greedy:
		return NewGreedy(), nil
	case Dynamic:
		return NewDynamic(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, string(strategy))
	}
}
