package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eugenenazirov/share-selector/internal/catalog"
	"github.com/eugenenazirov/share-selector/internal/config"
	"github.com/eugenenazirov/share-selector/internal/solver"
)

var (
	// ErrCatalogTooLarge is returned when exhaustive search is requested for more items than allowed.
	ErrCatalogTooLarge = errors.New("catalog too large for exhaustive search")
	// ErrTableTooLarge is returned when the dynamic programming table would exceed the cell limit.
	ErrTableTooLarge = errors.New("dynamic programming table too large")
)

// Outcome is the result of running one strategy.
type Outcome struct {
	Strategy    solver.Strategy
	Selection   catalog.Selection
	TotalCost   float64
	TotalProfit float64
	Duration    time.Duration
	Err         error
}

// Engine guards solver invocations with size limits, times them and logs
// every run.
type Engine struct {
	limits config.Limits
	logger *zap.Logger
}

// New creates an Engine. Zero limits disable the corresponding guard.
func New(limits config.Limits, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{limits: limits, logger: logger}
}

// CheckLimits reports whether the strategy may run on n items under budget.
func (e *Engine) CheckLimits(strategy solver.Strategy, n int, budget float64) error {
	switch strategy {
	case solver.BruteForce:
		if e.limits.MaxExhaustiveItems > 0 && n > e.limits.MaxExhaustiveItems {
			return fmt.Errorf("%w: %d items, limit %d", ErrCatalogTooLarge, n, e.limits.MaxExhaustiveItems)
		}
	case solver.Dynamic:
		if cells := solver.TableCells(n, budget); e.limits.MaxTableCells > 0 && cells > e.limits.MaxTableCells {
			return fmt.Errorf("%w: %.0f cells, limit %.0f", ErrTableTooLarge, cells, e.limits.MaxTableCells)
		}
	}
	return nil
}

// Solve runs one strategy. When ctx is cancelled first, Solve returns the
// context error and the solver's eventual result is discarded.
func (e *Engine) Solve(ctx context.Context, items []catalog.Item, budget float64, strategy solver.Strategy) (Outcome, error) {
	out := Outcome{Strategy: strategy}

	base, err := solver.New(strategy)
	if err != nil {
		return out, err
	}
	if err := e.CheckLimits(strategy, len(items), budget); err != nil {
		return out, err
	}

	var observed solver.Observation
	s := solver.WithObserver(base, strategy, func(o solver.Observation) {
		observed = o
		e.observe(o)
	})

	type result struct {
		selection catalog.Selection
		err       error
	}
	done := make(chan result, 1)
	go func() {
		selection, err := s.Solve(items, budget)
		done <- result{selection: selection, err: err}
	}()

	select {
	case <-ctx.Done():
		e.logger.Warn("solve abandoned", zap.String("strategy", strategy.String()), zap.Error(ctx.Err()))
		return out, ctx.Err()
	case r := <-done:
		out.Duration = observed.Duration
		if r.err != nil {
			return out, r.err
		}
		out.Selection = r.selection
		out.TotalCost = r.selection.TotalCost()
		out.TotalProfit = r.selection.TotalProfit()
		return out, nil
	}
}

// Compare runs every strategy concurrently on the same catalog. Outcomes are
// returned in the order of strategies; a strategy that fails records its
// error in Outcome.Err without stopping the others. Only cancellation of ctx
// makes Compare itself fail.
func (e *Engine) Compare(ctx context.Context, items []catalog.Item, budget float64, strategies []solver.Strategy) ([]Outcome, error) {
	if len(strategies) == 0 {
		strategies = solver.Strategies()
	}

	outcomes := make([]Outcome, len(strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, strategy := range strategies {
		g.Go(func() error {
			out, err := e.Solve(gctx, items, budget, strategy)
			if err != nil && gctx.Err() != nil {
				return err
			}
			out.Err = err
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (e *Engine) observe(o solver.Observation) {
	fields := []zap.Field{
		zap.String("strategy", o.Strategy.String()),
		zap.Int("items", o.Items),
		zap.Float64("budget", o.Budget),
		zap.Int("selected", o.Selected),
		zap.Duration("duration", o.Duration),
	}
	if o.Err != nil {
		e.logger.Warn("solve failed", append(fields, zap.Error(o.Err))...)
		return
	}
	e.logger.Info("solve completed", fields...)
}
