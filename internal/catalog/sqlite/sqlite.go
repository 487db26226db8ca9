// Package sqlite serves the catalog from an SQLite database using the pure Go
// modernc.org/sqlite driver. The schema is managed by the embedded goose
// migrations.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/eugenenazirov/tour-planner/internal/catalog"
	"github.com/eugenenazirov/tour-planner/migrations"
)

const memoryPath = ":memory:"

// Store reads and writes catalog rows in an SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the database at path, applies the connection pragmas and runs
// pending migrations. ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if path == memoryPath {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	if _, err := migrations.Up(ctx, goose.DialectSQLite3, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Regions(ctx context.Context) ([]catalog.Region, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM regions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.Regions: %w", err)
	}
	defer rows.Close()

	var out []catalog.Region
	for rows.Next() {
		var r catalog.Region
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("sqlite.Store.Regions: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite.Store.Regions: rows: %w", err)
	}
	return out, nil
}

func (s *Store) Tours(ctx context.Context) ([]catalog.TourRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, region_id, name, duration_days, cost
		FROM tours
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.Tours: %w", err)
	}
	defer rows.Close()

	var out []catalog.TourRow
	for rows.Next() {
		var t catalog.TourRow
		if err := rows.Scan(&t.ID, &t.RegionID, &t.Name, &t.DurationDays, &t.Cost); err != nil {
			return nil, fmt.Errorf("sqlite.Store.Tours: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite.Store.Tours: rows: %w", err)
	}
	return out, nil
}

func (s *Store) TourAttractions(ctx context.Context, tourID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT attraction_id
		FROM tour_attractions
		WHERE tour_id = ?
		ORDER BY attraction_id`, tourID)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.TourAttractions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite.Store.TourAttractions: scan: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite.Store.TourAttractions: rows: %w", err)
	}
	return out, nil
}

func (s *Store) Attractions(ctx context.Context) ([]catalog.AttractionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, cultural_value
		FROM attractions
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.Attractions: %w", err)
	}
	defer rows.Close()

	var out []catalog.AttractionRow
	for rows.Next() {
		var a catalog.AttractionRow
		if err := rows.Scan(&a.ID, &a.Name, &a.CulturalValue); err != nil {
			return nil, fmt.Errorf("sqlite.Store.Attractions: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite.Store.Attractions: rows: %w", err)
	}
	return out, nil
}

// Save replaces the stored catalog with the rows of src in one transaction.
func (s *Store) Save(ctx context.Context, src catalog.Provider) (err error) {
	regions, err := src.Regions(ctx)
	if err != nil {
		return fmt.Errorf("sqlite.Store.Save: regions: %w", err)
	}
	tours, err := src.Tours(ctx)
	if err != nil {
		return fmt.Errorf("sqlite.Store.Save: tours: %w", err)
	}
	attractions, err := src.Attractions(ctx)
	if err != nil {
		return fmt.Errorf("sqlite.Store.Save: attractions: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite.Store.Save: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"tour_attractions", "tours", "attractions", "regions"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("sqlite.Store.Save: clear %s: %w", table, err)
		}
	}

	for _, r := range regions {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO regions (id, name) VALUES (?, ?)`, r.ID, r.Name); err != nil {
			return fmt.Errorf("sqlite.Store.Save: region %s: %w", r.ID, err)
		}
	}
	for _, a := range attractions {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO attractions (id, name, cultural_value) VALUES (?, ?, ?)`,
			a.ID, a.Name, a.CulturalValue); err != nil {
			return fmt.Errorf("sqlite.Store.Save: attraction %s: %w", a.ID, err)
		}
	}
	for _, t := range tours {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO tours (id, region_id, name, duration_days, cost) VALUES (?, ?, ?, ?, ?)`,
			t.ID, t.RegionID, t.Name, t.DurationDays, t.Cost); err != nil {
			return fmt.Errorf("sqlite.Store.Save: tour %s: %w", t.ID, err)
		}

		var ids []string
		ids, err = src.TourAttractions(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("sqlite.Store.Save: links of %s: %w", t.ID, err)
		}
		for _, id := range ids {
			if _, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO tour_attractions (tour_id, attraction_id) VALUES (?, ?)`,
				t.ID, id); err != nil {
				return fmt.Errorf("sqlite.Store.Save: link %s/%s: %w", t.ID, id, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite.Store.Save: commit: %w", err)
	}
	return nil
}
