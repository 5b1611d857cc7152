// Package catalog defines the share records the solvers work on and the
// accounting helpers (aggregate cost and profit) shared by every strategy.
package catalog
