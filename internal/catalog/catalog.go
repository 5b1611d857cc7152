package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidItem is returned when an item violates the catalog rules.
var ErrInvalidItem = errors.New("invalid item")

// Item is a purchasable share. Profit is the absolute amount earned after the
// holding period, never a percentage.
type Item struct {
	Name   string  `json:"name"`
	Cost   float64 `json:"cost"`
	Profit float64 `json:"profit"`
}

// Catalog is the ordered set of items available for a single solve.
// Items with the same name are still distinct: identity is the position.
type Catalog []Item

// Selection is a subset of a catalog.
type Selection []Item

// NewItem validates the fields and builds an Item.
func NewItem(name string, cost, profit float64) (Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Item{}, fmt.Errorf("%w: name must not be empty", ErrInvalidItem)
	}
	if err := checkAmount("cost", cost); err != nil {
		return Item{}, fmt.Errorf("%w: %s: %v", ErrInvalidItem, name, err)
	}
	if err := checkAmount("profit", profit); err != nil {
		return Item{}, fmt.Errorf("%w: %s: %v", ErrInvalidItem, name, err)
	}
	return Item{Name: name, Cost: cost, Profit: profit}, nil
}

func checkAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be finite, got %v", field, v)
	}
	if v < 0 {
		return fmt.Errorf("%s must be non-negative, got %v", field, v)
	}
	return nil
}

// Validate applies the NewItem rules to every item of the catalog.
func (c Catalog) Validate() error {
	for i, item := range c {
		if _, err := NewItem(item.Name, item.Cost, item.Profit); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a copy that shares no backing array with c.
func (c Catalog) Clone() Catalog {
	if len(c) == 0 {
		return Catalog{}
	}
	out := make(Catalog, len(c))
	copy(out, c)
	return out
}

// TotalCost sums the cost of items. It is zero for an empty slice.
func TotalCost(items []Item) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Cost
	}
	return total
}

// TotalProfit sums the profit of items. It is zero for an empty slice.
func TotalProfit(items []Item) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Profit
	}
	return total
}

// TotalCost returns the aggregate cost of the selection.
func (s Selection) TotalCost() float64 { return TotalCost(s) }

// TotalProfit returns the aggregate profit of the selection.
func (s Selection) TotalProfit() float64 { return TotalProfit(s) }

// Names lists the item names in selection order.
func (s Selection) Names() []string {
	names := make([]string, len(s))
	for i, item := range s {
		names[i] = item.Name
	}
	return names
}
