package storage

import (
	"errors"
	"sync"

	"github.com/eugenenazirov/tour-planner/internal/catalog"
)

var (
	// ErrCatalogNotLoaded indicates no catalog snapshot has been stored yet.
	ErrCatalogNotLoaded = errors.New("catalog has not been loaded")
	// ErrInvalidCatalog indicates a nil catalog was provided.
	ErrInvalidCatalog = errors.New("catalog must not be nil")
)

// Storage provides access to the catalog snapshot served to the optimizer.
type Storage interface {
	GetCatalog() (*catalog.Catalog, error)
	SetCatalog(c *catalog.Catalog) error
	ToursInRegion(regionID string) []*catalog.Tour
}

// MemoryStorage keeps the current catalog in-memory and guards access with a RWMutex.
// Snapshots are immutable, so readers keep a consistent view across a swap.
type MemoryStorage struct {
	mu      sync.RWMutex
	catalog *catalog.Catalog
}

// NewMemoryStorage initialises an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// GetCatalog returns the current catalog snapshot.
func (s *MemoryStorage) GetCatalog() (*catalog.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.catalog == nil {
		return nil, ErrCatalogNotLoaded
	}
	return s.catalog, nil
}

// SetCatalog replaces the current snapshot.
func (s *MemoryStorage) SetCatalog(c *catalog.Catalog) error {
	if c == nil {
		return ErrInvalidCatalog
	}

	s.mu.Lock()
	s.catalog = c
	s.mu.Unlock()

	return nil
}

// ToursInRegion lists the region's tours from the current snapshot, or nothing
// when no catalog is loaded.
func (s *MemoryStorage) ToursInRegion(regionID string) []*catalog.Tour {
	c, err := s.GetCatalog()
	if err != nil {
		return nil
	}
	return c.ToursInRegion(regionID)
}
