package solver

import (
	"time"

	"github.com/eugenenazirov/share-selector/internal/catalog"
)

// Observation describes one finished solve.
type Observation struct {
	Strategy Strategy
	Items    int
	Budget   float64
	Selected int
	Duration time.Duration
	Err      error
}

// Observer receives an Observation after every solve.
type Observer func(Observation)

type observedSolver struct {
	next     Solver
	strategy Strategy
	observer Observer
	now      func() time.Time
}

// WithObserver wraps s so that obs is told how long each solve took.
// The selection and error returned by s pass through untouched.
func WithObserver(s Solver, strategy Strategy, obs Observer) Solver {
	if obs == nil {
		return s
	}
	return &observedSolver{next: s, strategy: strategy, observer: obs, now: time.Now}
}

func (o *observedSolver) Solve(items []catalog.Item, budget float64) (catalog.Selection, error) {
	start := o.now()
	selection, err := o.next.Solve(items, budget)
	o.observer(Observation{
		Strategy: o.strategy,
		Items:    len(items),
		Budget:   budget,
		Selected: len(selection),
		Duration: o.now().Sub(start),
		Err:      err,
	})
	return selection, err
}
