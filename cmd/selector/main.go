package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/share-selector/internal/application"
	"github.com/eugenenazirov/share-selector/internal/config"
	"github.com/eugenenazirov/share-selector/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "share-selector: %v\n", err)
		os.Exit(1)
	}
}

// cli holds the parsed command line.
type cli struct {
	command   string
	overrides config.CLIOverrides
	budget    string
	input     string
	format    string
	jsonOut   bool
	strats    []string
}

func parse(args []string) (cli, error) {
	var c cli

	app := kingpin.New("share-selector", "Share Selector - picks the most profitable set of shares within a budget")
	app.Flag("config", "Path to YAML configuration file").StringVar(&c.overrides.ConfigFile)
	logLevel := app.Flag("log-level", "Log level (debug, info, warn, error)").String()

	serveCmd := app.Command("serve", "Serve the selection API over HTTP").Default()
	port := serveCmd.Flag("port", "HTTP port exposed by the service").String()
	catalogFile := serveCmd.Flag("catalog", "Dataset loaded into the catalog at startup").String()
	rateLimitRPS := serveCmd.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurst := serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	solveCmd := app.Command("solve", "Select shares from a dataset with one strategy and write the report")
	solveCmd.Arg("input", "Dataset file (.txt tab-separated or .csv)").Required().StringVar(&c.input)
	compareCmd := app.Command("compare", "Run several strategies on a dataset and print a comparison")
	compareCmd.Arg("input", "Dataset file (.txt tab-separated or .csv)").Required().StringVar(&c.input)
	compareCmd.Flag("strategy", "Strategy to include, repeatable (default: all)").Short('s').StringsVar(&c.strats)

	var strategy, outputDir string
	var scale int64
	var clean bool
	for _, cmd := range []*kingpin.CmdClause{solveCmd, compareCmd} {
		cmd.Flag("budget", "Budget in currency units").Short('b').StringVar(&c.budget)
		cmd.Flag("format", "Input format (text, csv); detected from the extension when empty").StringVar(&c.format)
		cmd.Flag("scale", "Cost multiplier, e.g. 100 to solve in cents").Default("0").Int64Var(&scale)
		cmd.Flag("clean", "Drop duplicate, non-positive and loss-making shares before solving").BoolVar(&clean)
		cmd.Flag("output-dir", "Directory receiving the reports").StringVar(&outputDir)
	}
	solveCmd.Flag("strategy", "Strategy (bruteforce, greedy, dynamic)").Short('s').StringVar(&strategy)
	solveCmd.Flag("json", "Print the report as JSON").BoolVar(&c.jsonOut)

	cleanCmd := app.Command("clean", "Write <input>_cleaned.csv without duplicates or invalid shares")
	cleanCmd.Arg("input", "Dataset file (.txt tab-separated or .csv)").Required().StringVar(&c.input)

	command, err := app.Parse(args)
	if err != nil {
		return cli{}, err
	}
	c.command = command

	o := &c.overrides
	if *logLevel != "" {
		o.LogLevel = logLevel
	}
	// Serve flag defaults are only applied when serve is the selected command.
	if command == serveCmd.FullCommand() {
		if *port != "" {
			o.Port = port
		}
		if *catalogFile != "" {
			o.CatalogFile = catalogFile
		}
		if *rateLimitRPS >= 0 {
			o.RateLimitRPS = rateLimitRPS
		}
		if *rateLimitBurst >= 0 {
			o.RateLimitBurst = rateLimitBurst
		}
	}
	if strategy != "" {
		o.Strategy = &strategy
	}
	if outputDir != "" {
		o.OutputDir = &outputDir
	}
	if scale != 0 {
		o.CostScale = &scale
	}
	if clean {
		o.Clean = &clean
	}
	if c.budget != "" {
		budget, err := strconv.ParseFloat(c.budget, 64)
		if err != nil {
			return cli{}, fmt.Errorf("invalid budget %q: %w", c.budget, err)
		}
		o.Budget = &budget
	}
	return c, nil
}

func run(args []string, stdout io.Writer) error {
	c, err := parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(&c.overrides)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	switch c.command {
	case "serve":
		return serve(cfg, logger)
	case "solve":
		return runSolve(context.Background(), c, cfg, logger, stdout)
	case "compare":
		return runCompare(context.Background(), c, cfg, logger, stdout)
	case "clean":
		return runClean(c, logger, stdout)
	default:
		return fmt.Errorf("unknown command %q", c.command)
	}
}

func serve(cfg config.Config, logger *zap.Logger) error {
	app, err := application.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
	return nil
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
