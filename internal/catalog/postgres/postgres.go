// Package postgres serves the catalog from a Postgres database through a pgx
// connection pool. The schema is managed by the embedded goose migrations.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/eugenenazirov/tour-planner/internal/catalog"
	"github.com/eugenenazirov/tour-planner/migrations"
)

// db is the subset of *pgxpool.Pool and pgx.Tx the store needs. Tests pass a
// transaction that is rolled back afterwards.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store reads and writes catalog rows in Postgres.
type Store struct {
	db db
}

// New constructs a Store on an existing pool or transaction.
func New(db db) *Store {
	return &Store{db: db}
}

// Connect creates a pool for dsn, verifies connectivity and applies pending
// migrations. The caller closes the returned pool.
func Connect(ctx context.Context, dsn string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return New(pool), pool, nil
}

// Migrate applies pending migrations through a database/sql view of the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	if _, err := migrations.Up(ctx, goose.DialectPostgres, sqlDB); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

func (s *Store) Regions(ctx context.Context) ([]catalog.Region, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM regions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.Regions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Region, error) {
		var r catalog.Region
		err := row.Scan(&r.ID, &r.Name)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.Regions: scan: %w", err)
	}
	return out, nil
}

func (s *Store) Tours(ctx context.Context) ([]catalog.TourRow, error) {
	const q = `
		SELECT id, region_id, name, duration_days, cost
		FROM tours
		ORDER BY id`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.Tours: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.TourRow, error) {
		var t catalog.TourRow
		err := row.Scan(&t.ID, &t.RegionID, &t.Name, &t.DurationDays, &t.Cost)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.Tours: scan: %w", err)
	}
	return out, nil
}

func (s *Store) TourAttractions(ctx context.Context, tourID string) ([]string, error) {
	const q = `
		SELECT attraction_id
		FROM tour_attractions
		WHERE tour_id = @tour_id
		ORDER BY attraction_id`

	rows, err := s.db.Query(ctx, q, pgx.NamedArgs{"tour_id": tourID})
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.TourAttractions: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.TourAttractions: scan: %w", err)
	}
	return out, nil
}

func (s *Store) Attractions(ctx context.Context) ([]catalog.AttractionRow, error) {
	const q = `
		SELECT id, name, cultural_value
		FROM attractions
		ORDER BY id`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.Attractions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.AttractionRow, error) {
		var a catalog.AttractionRow
		err := row.Scan(&a.ID, &a.Name, &a.CulturalValue)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.Attractions: scan: %w", err)
	}
	return out, nil
}

// Save replaces the stored catalog with the rows of src in one transaction.
func (s *Store) Save(ctx context.Context, src catalog.Provider) error {
	regions, err := src.Regions(ctx)
	if err != nil {
		return fmt.Errorf("postgres.Store.Save: regions: %w", err)
	}
	tours, err := src.Tours(ctx)
	if err != nil {
		return fmt.Errorf("postgres.Store.Save: tours: %w", err)
	}
	attractions, err := src.Attractions(ctx)
	if err != nil {
		return fmt.Errorf("postgres.Store.Save: attractions: %w", err)
	}
	links := make(map[string][]string, len(tours))
	for _, t := range tours {
		ids, err := src.TourAttractions(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("postgres.Store.Save: links of %s: %w", t.ID, err)
		}
		links[t.ID] = ids
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres.Store.Save: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE tour_attractions, tours, attractions, regions`); err != nil {
		return fmt.Errorf("postgres.Store.Save: truncate: %w", err)
	}

	batch := &pgx.Batch{}
	for _, r := range regions {
		batch.Queue(`
			INSERT INTO regions (id, name) VALUES (@id, @name)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			pgx.NamedArgs{"id": r.ID, "name": r.Name})
	}
	for _, a := range attractions {
		batch.Queue(`
			INSERT INTO attractions (id, name, cultural_value) VALUES (@id, @name, @value)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, cultural_value = EXCLUDED.cultural_value`,
			pgx.NamedArgs{"id": a.ID, "name": a.Name, "value": a.CulturalValue})
	}
	for _, t := range tours {
		batch.Queue(`
			INSERT INTO tours (id, region_id, name, duration_days, cost)
			VALUES (@id, @region_id, @name, @days, @cost)
			ON CONFLICT (id) DO UPDATE SET region_id = EXCLUDED.region_id, name = EXCLUDED.name,
				duration_days = EXCLUDED.duration_days, cost = EXCLUDED.cost`,
			pgx.NamedArgs{"id": t.ID, "region_id": t.RegionID, "name": t.Name, "days": t.DurationDays, "cost": t.Cost})
		for _, id := range links[t.ID] {
			batch.Queue(`
				INSERT INTO tour_attractions (tour_id, attraction_id) VALUES (@tour_id, @attraction_id)
				ON CONFLICT DO NOTHING`,
				pgx.NamedArgs{"tour_id": t.ID, "attraction_id": id})
		}
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres.Store.Save: insert: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres.Store.Save: commit: %w", err)
	}
	return nil
}
