package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/eugenenazirov/share-selector/internal/application"
	"github.com/eugenenazirov/share-selector/internal/config"
	"github.com/eugenenazirov/share-selector/internal/engine"
	"github.com/eugenenazirov/share-selector/internal/ingest"
	"github.com/eugenenazirov/share-selector/internal/report"
	"github.com/eugenenazirov/share-selector/internal/solver"
)

func runOptions(c cli, cfg config.Config) (application.RunOptions, error) {
	opts := application.RunOptions{
		Input:     c.input,
		Budget:    cfg.Budget,
		Scale:     cfg.CostScale,
		Clean:     cfg.Clean,
		OutputDir: cfg.OutputDir,
	}
	if c.format != "" {
		format, err := ingest.ParseFormat(c.format)
		if err != nil {
			return opts, err
		}
		opts.Format = format
	}
	return opts, nil
}

func runSolve(ctx context.Context, c cli, cfg config.Config, logger *zap.Logger, stdout io.Writer) error {
	opts, err := runOptions(c, cfg)
	if err != nil {
		return err
	}

	eng := engine.New(cfg.Limits(), logger)
	res, err := application.Run(ctx, opts, cfg.Strategy, eng, logger)
	if err != nil {
		return err
	}

	if c.jsonOut {
		return report.WriteJSON(stdout, res.Report)
	}
	if err := report.WriteText(stdout, res.Report); err != nil {
		return err
	}
	if res.Output != "" {
		_, _ = fmt.Fprintf(stdout, "\nReport written to %s\n", res.Output)
	}
	return nil
}

func runCompare(ctx context.Context, c cli, cfg config.Config, logger *zap.Logger, stdout io.Writer) error {
	opts, err := runOptions(c, cfg)
	if err != nil {
		return err
	}

	strategies := make([]solver.Strategy, 0, len(c.strats))
	for _, raw := range c.strats {
		s, err := solver.ParseStrategy(raw)
		if err != nil {
			return err
		}
		strategies = append(strategies, s)
	}

	eng := engine.New(cfg.Limits(), logger)
	results, err := application.Compare(ctx, opts, strategies, eng, logger)
	if err != nil {
		return err
	}
	return writeComparison(stdout, results)
}

// writeComparison prints one row per strategy. Failed strategies show their
// error instead of totals.
func writeComparison(w io.Writer, results []application.RunResult) error {
	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	_, _ = fmt.Fprintln(tw, "STRATEGY\tEXACT\tSHARES\tCOST\tPROFIT\tTIME")
	for _, res := range results {
		r := res.Report
		if res.Err != nil {
			_, _ = fmt.Fprintf(tw, "%s\t%t\t-\t-\t-\t%v\n", r.Strategy, r.Strategy.Exact(), res.Err)
			continue
		}
		_, _ = p.Fprintf(tw, "%s\t%t\t%d\t%.2f\t%.2f\t%s\n",
			r.Strategy, r.Strategy.Exact(), len(r.Items), r.CostAmount(), r.TotalProfit, r.Duration)
	}
	return tw.Flush()
}

func runClean(c cli, logger *zap.Logger, stdout io.Writer) error {
	out, stats, err := ingest.CleanFile(c.input)
	if err != nil {
		return err
	}
	logger.Info("dataset cleaned",
		zap.String("input", c.input),
		zap.String("output", out),
		zap.Int("kept", stats.Kept),
	)
	_, _ = fmt.Fprintf(stdout, "%s: kept %d of %d shares (%d duplicates, %d non-positive cost, %d negative profit)\n",
		out, stats.Kept, stats.Input, stats.Duplicates, stats.NonPositiveCost, stats.NegativeProfit)
	return nil
}
