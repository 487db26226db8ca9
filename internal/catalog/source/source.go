// Package source opens the catalog provider selected by configuration.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/eugenenazirov/tour-planner/internal/catalog"
	"github.com/eugenenazirov/tour-planner/internal/catalog/postgres"
	"github.com/eugenenazirov/tour-planner/internal/catalog/sqlite"
	"github.com/eugenenazirov/tour-planner/internal/catalog/yamlfile"
)

// Supported provider kinds.
const (
	KindYAML     = "yaml"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

var (
	// ErrUnknownKind is returned for an unsupported provider kind.
	ErrUnknownKind = errors.New("unknown catalog source")
	// ErrReadOnly is returned when writing to a source that cannot be saved to.
	ErrReadOnly = errors.New("catalog source is read-only")
)

// Kinds lists the supported provider kinds.
func Kinds() []string {
	return []string{KindYAML, KindSQLite, KindPostgres}
}

// Saver is implemented by sources that can persist another provider's rows.
type Saver interface {
	Save(ctx context.Context, src catalog.Provider) error
}

// Handle is an opened provider together with its release function.
type Handle struct {
	catalog.Provider
	close func() error
}

// Close releases the underlying connection, if any.
func (h *Handle) Close() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// Saver returns the provider as a Saver, or ErrReadOnly.
func (h *Handle) Saver() (Saver, error) {
	s, ok := h.Provider.(Saver)
	if !ok {
		return nil, ErrReadOnly
	}
	return s, nil
}

// Open opens a provider of the given kind. SQL sources are migrated on open.
func Open(ctx context.Context, kind, dsn string) (*Handle, error) {
	switch kind {
	case KindYAML:
		p, err := yamlfile.Load(dsn)
		if err != nil {
			return nil, err
		}
		return &Handle{Provider: p}, nil
	case KindSQLite:
		store, err := sqlite.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &Handle{Provider: store, close: store.Close}, nil
	case KindPostgres:
		store, pool, err := postgres.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &Handle{Provider: store, close: func() error {
			pool.Close()
			return nil
		}}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
}
