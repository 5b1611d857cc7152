package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eugenenazirov/share-selector/internal/catalog"
)

var (
	// ErrInvalidCatalog indicates the provided catalog violates validation rules.
	ErrInvalidCatalog = errors.New("catalog must contain valid items with non-negative cost and profit")
)

var defaultCatalog = catalog.Catalog{
	{Name: "Action-1", Cost: 20, Profit: 1},
	{Name: "Action-2", Cost: 30, Profit: 3},
	{Name: "Action-3", Cost: 50, Profit: 7.5},
	{Name: "Action-4", Cost: 70, Profit: 14},
	{Name: "Action-5", Cost: 60, Profit: 10.2},
	{Name: "Action-6", Cost: 80, Profit: 20},
	{Name: "Action-7", Cost: 22, Profit: 1.54},
	{Name: "Action-8", Cost: 26, Profit: 2.86},
	{Name: "Action-9", Cost: 48, Profit: 6.24},
	{Name: "Action-10", Cost: 34, Profit: 9.18},
}

// Storage provides access to the catalog the solvers run against.
type Storage interface {
	GetCatalog() (catalog.Catalog, error)
	SetCatalog(items catalog.Catalog) error
}

// MemoryStorage keeps the catalog in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu    sync.RWMutex
	items catalog.Catalog
}

// NewMemoryStorage initialises storage with a copy of the default catalog.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		items: defaultCatalog.Clone(),
	}
}

// DefaultCatalog returns a copy of the default catalog.
func DefaultCatalog() catalog.Catalog {
	return defaultCatalog.Clone()
}

// GetCatalog returns a defensive copy of the current catalog.
func (s *MemoryStorage) GetCatalog() (catalog.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.items.Clone(), nil
}

// SetCatalog validates and stores a copy of the provided catalog.
func (s *MemoryStorage) SetCatalog(items catalog.Catalog) error {
	if err := items.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	s.mu.Lock()
	s.items = items.Clone()
	s.mu.Unlock()

	return nil
}
