// Package ingest turns share listings (tab-separated text or CSV files) into
// validated catalogs. Profit rates given in percent are resolved into absolute
// amounts, and costs can be rescaled to whole units for the dynamic solver.
package ingest
