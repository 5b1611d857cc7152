package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/share-selector/internal/solver"
)

const (
	defaultPort               = "8080"
	defaultBudget             = 500.0
	defaultStrategy           = solver.Dynamic
	defaultCostScale          = 1
	defaultMaxExhaustiveItems = 25
	defaultMaxTableCells      = 50_000_000
	defaultOutputDir          = "output"
	defaultLogLevel           = "info"
	defaultRateLimitRPS       = 25.0
	defaultRateLimitBurst     = 50
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	Budget               float64
	Strategy             solver.Strategy
	CostScale            int64
	Clean                bool
	CatalogFile          string
	MaxExhaustiveItems   int
	MaxTableCells        float64
	OutputDir            string
	LogLevel             string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
}

// Limits returns the solver guards configured for the driver.
func (c Config) Limits() Limits {
	return Limits{MaxExhaustiveItems: c.MaxExhaustiveItems, MaxTableCells: c.MaxTableCells}
}

// Limits bounds the catalog size and table size a driver accepts before
// invoking an exponential or pseudo-polynomial solver.
type Limits struct {
	MaxExhaustiveItems int
	MaxTableCells      float64
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	Budget               *float64      `yaml:"budget"`
	Strategy             string        `yaml:"strategy"`
	CostScale            int64         `yaml:"cost_scale"`
	Clean                *bool         `yaml:"clean"`
	CatalogFile          string        `yaml:"catalog_file"`
	MaxExhaustiveItems   int           `yaml:"max_exhaustive_items"`
	MaxTableCells        float64       `yaml:"max_table_cells"`
	OutputDir            string        `yaml:"output_dir"`
	LogLevel             string        `yaml:"log_level"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	Budget         *float64
	Strategy       *string
	CostScale      *int64
	Clean          *bool
	CatalogFile    *string
	OutputDir      *string
	LogLevel       *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables first so the YAML file can override them
	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		Budget:               defaultBudget,
		Strategy:             defaultStrategy,
		CostScale:            defaultCostScale,
		MaxExhaustiveItems:   defaultMaxExhaustiveItems,
		MaxTableCells:        defaultMaxTableCells,
		OutputDir:            defaultOutputDir,
		LogLevel:             defaultLogLevel,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         30 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.Budget != nil {
		cfg.Budget = *yamlCfg.Budget
	}
	if yamlCfg.Strategy != "" {
		strategy, err := solver.ParseStrategy(yamlCfg.Strategy)
		if err != nil {
			return err
		}
		cfg.Strategy = strategy
	}
	if yamlCfg.CostScale != 0 {
		cfg.CostScale = yamlCfg.CostScale
	}
	if yamlCfg.Clean != nil {
		cfg.Clean = *yamlCfg.Clean
	}
	if yamlCfg.CatalogFile != "" {
		cfg.CatalogFile = yamlCfg.CatalogFile
	}
	if yamlCfg.MaxExhaustiveItems > 0 {
		cfg.MaxExhaustiveItems = yamlCfg.MaxExhaustiveItems
	}
	if yamlCfg.MaxTableCells > 0 {
		cfg.MaxTableCells = yamlCfg.MaxTableCells
	}
	if yamlCfg.OutputDir != "" {
		cfg.OutputDir = yamlCfg.OutputDir
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	durations := []struct {
		raw    string
		target *time.Duration
	}{
		{yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", d.raw, err)
		}
		*d.target = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if raw := strings.TrimSpace(os.Getenv("BUDGET")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid BUDGET %q: %w", raw, err)
		}
		cfg.Budget = value
	}

	if raw := strings.TrimSpace(os.Getenv("STRATEGY")); raw != "" {
		strategy, err := solver.ParseStrategy(raw)
		if err != nil {
			return fmt.Errorf("invalid STRATEGY: %w", err)
		}
		cfg.Strategy = strategy
	}

	if raw := strings.TrimSpace(os.Getenv("COST_SCALE")); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.CostScale = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("MAX_EXHAUSTIVE_ITEMS")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MaxExhaustiveItems = value
		}
	}

	if path := strings.TrimSpace(os.Getenv("CATALOG_FILE")); path != "" {
		cfg.CatalogFile = path
	}

	if dir := strings.TrimSpace(os.Getenv("OUTPUT_DIR")); dir != "" {
		cfg.OutputDir = dir
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.Budget != nil {
		cfg.Budget = *overrides.Budget
	}

	if overrides.Strategy != nil && *overrides.Strategy != "" {
		strategy, err := solver.ParseStrategy(*overrides.Strategy)
		if err != nil {
			return fmt.Errorf("parse strategy: %w", err)
		}
		cfg.Strategy = strategy
	}

	if overrides.CostScale != nil {
		cfg.CostScale = *overrides.CostScale
	}

	if overrides.Clean != nil {
		cfg.Clean = *overrides.Clean
	}

	if overrides.CatalogFile != nil && *overrides.CatalogFile != "" {
		cfg.CatalogFile = *overrides.CatalogFile
	}

	if overrides.OutputDir != nil {
		cfg.OutputDir = *overrides.OutputDir
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.Budget < 0 {
		return fmt.Errorf("budget must be >= 0, got %v", cfg.Budget)
	}
	if cfg.CostScale < 1 {
		return fmt.Errorf("cost scale must be >= 1, got %d", cfg.CostScale)
	}
	if cfg.MaxExhaustiveItems < 1 {
		return fmt.Errorf("max exhaustive items must be >= 1")
	}
	if cfg.MaxTableCells < 1 {
		return fmt.Errorf("max table cells must be >= 1")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}
