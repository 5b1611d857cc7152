package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eugenenazirov/share-selector/internal/catalog"
	"github.com/eugenenazirov/share-selector/internal/engine"
	"github.com/eugenenazirov/share-selector/internal/ingest"
	"github.com/eugenenazirov/share-selector/internal/report"
	"github.com/eugenenazirov/share-selector/internal/solver"
)

// RunOptions describes one file-based selection.
type RunOptions struct {
	Input  string
	Format ingest.Format
	// Budget is given in currency; it is scaled together with the costs.
	Budget float64
	Scale  int64
	Clean  bool
	// OutputDir receives <input>_<strategy>.txt. Empty skips writing.
	OutputDir string
}

// RunResult is the outcome of a single strategy on a file.
type RunResult struct {
	Report   report.Report
	Output   string
	Cleaning ingest.CleanStats
	Err      error
}

type loadedInput struct {
	items  catalog.Catalog
	budget float64
	stats  ingest.CleanStats
}

// Run loads the input, solves it with strategy and writes the report.
func Run(ctx context.Context, opts RunOptions, strategy solver.Strategy, eng *engine.Engine, logger *zap.Logger) (RunResult, error) {
	in, err := load(opts, logger)
	if err != nil {
		return RunResult{}, err
	}

	out, err := eng.Solve(ctx, in.items, in.budget, strategy)
	if err != nil {
		return RunResult{Cleaning: in.stats}, err
	}

	res := RunResult{
		Report:   report.New(strategy, in.budget, opts.Scale, out.Selection, out.Duration),
		Cleaning: in.stats,
	}
	if opts.OutputDir != "" {
		res.Output = report.OutputPath(opts.Input, opts.OutputDir, strategy)
		if err := report.WriteFile(res.Output, res.Report); err != nil {
			return res, err
		}
		logger.Info("report written", zap.String("path", res.Output), zap.String("run_id", res.Report.RunID))
	}
	return res, nil
}

// Compare loads the input once and runs every strategy on it concurrently.
// A strategy that fails carries its error in RunResult.Err. Reports are
// written for the strategies that succeed.
func Compare(ctx context.Context, opts RunOptions, strategies []solver.Strategy, eng *engine.Engine, logger *zap.Logger) ([]RunResult, error) {
	in, err := load(opts, logger)
	if err != nil {
		return nil, err
	}

	outcomes, err := eng.Compare(ctx, in.items, in.budget, strategies)
	if err != nil {
		return nil, err
	}

	results := make([]RunResult, 0, len(outcomes))
	for _, out := range outcomes {
		res := RunResult{
			Report:   report.New(out.Strategy, in.budget, opts.Scale, out.Selection, out.Duration),
			Cleaning: in.stats,
			Err:      out.Err,
		}
		if out.Err == nil && opts.OutputDir != "" {
			res.Output = report.OutputPath(opts.Input, opts.OutputDir, out.Strategy)
			if err := report.WriteFile(res.Output, res.Report); err != nil {
				return nil, err
			}
		}
		logger.Info("strategy finished", zap.Stringer("result", res))
		results = append(results, res)
	}
	return results, nil
}

func load(opts RunOptions, logger *zap.Logger) (loadedInput, error) {
	path, err := resolveDataPath(opts.Input)
	if err != nil {
		return loadedInput{}, err
	}
	items, stats, err := ingest.Load(path, ingest.Options{Format: opts.Format, Scale: opts.Scale, Clean: opts.Clean})
	if err != nil {
		return loadedInput{}, err
	}
	budget, err := ingest.ScaleBudget(opts.Budget, opts.Scale)
	if err != nil {
		return loadedInput{}, err
	}
	if opts.Clean {
		logger.Info("dataset cleaned",
			zap.String("path", path),
			zap.Int("input", stats.Input),
			zap.Int("duplicates", stats.Duplicates),
			zap.Int("non_positive_cost", stats.NonPositiveCost),
			zap.Int("negative_profit", stats.NegativeProfit),
			zap.Int("kept", stats.Kept),
		)
	}
	if len(items) == 0 {
		logger.Warn("catalog is empty", zap.String("path", path))
	}
	return loadedInput{items: items, budget: budget, stats: stats}, nil
}

// String summarises the result for log lines.
func (r RunResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Report.Strategy, r.Err)
	}
	return fmt.Sprintf("%s: %d shares, profit %.2f", r.Report.Strategy, len(r.Report.Items), r.Report.TotalProfit)
}
