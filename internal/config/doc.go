// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, CLI flags) with precedence: CLI flags > YAML config >
// Environment variables > Defaults. It exposes strongly typed settings, such as
// the budget, the solving strategy and the solver limits, to the rest of the
// application.
package config
