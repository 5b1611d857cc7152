// Package application wires storage, the solving engine, handlers, routers
// and the HTTP server together, and drives file-based runs that load a
// dataset, solve it and write a report. The main package stays focused on
// CLI parsing and orchestration.
package application
