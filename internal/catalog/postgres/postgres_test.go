package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenenazirov/tour-planner/internal/catalog"
)

// newTxStore opens a store bound to a transaction that is rolled back when the
// test ends. Skipped unless TEST_DATABASE_URL is set.
func newTxStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })

	return New(tx)
}

func TestSaveAndLoadCatalog(t *testing.T) {
	ctx := context.Background()
	store := newTxStore(t)

	src := &catalog.StaticProvider{
		RegionRows: []catalog.Region{{ID: "R1", Name: "Tuscany"}},
		TourRows: []catalog.TourRow{
			{ID: "T2", RegionID: "R1", Name: "Siena", DurationDays: 3, Cost: 150},
			{ID: "T1", RegionID: "R1", Name: "Florence", DurationDays: 2, Cost: 100},
		},
		AttractionRows: []catalog.AttractionRow{
			{ID: "a1", Name: "Uffizi", CulturalValue: 5},
			{ID: "a2", Name: "Duomo", CulturalValue: 8},
		},
		Links: map[string][]string{"T1": {"a1"}, "T2": {"a2", "a2"}},
	}
	require.NoError(t, store.Save(ctx, src))

	c, err := catalog.Load(ctx, store, catalog.WithConcurrency(1))
	require.NoError(t, err)

	tours := c.ToursInRegion("R1")
	require.Len(t, tours, 2)
	assert.Equal(t, "T1", tours[0].ID)
	assert.Equal(t, 8, tours[1].CulturalValue())
	assert.Equal(t, catalog.Stats{Regions: 1, Tours: 2, Attractions: 2, Links: 2}, c.Stats())
}

func TestTourAttractionsForUnknownTourIsEmpty(t *testing.T) {
	store := newTxStore(t)

	ids, err := store.TourAttractions(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
