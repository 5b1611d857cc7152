// Package solver implements the share selection strategies: exhaustive
// enumeration, a greedy efficiency heuristic and dynamic programming. All of
// them maximise total profit under a total cost budget and are pure functions
// of their input.
package solver
