package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenenazirov/tour-planner/internal/catalog"
)

func openMemory(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), memoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fixture() *catalog.StaticProvider {
	return &catalog.StaticProvider{
		RegionRows: []catalog.Region{{ID: "R2", Name: "Umbria"}, {ID: "R1", Name: "Tuscany"}},
		TourRows: []catalog.TourRow{
			{ID: "T2", RegionID: "R1", Name: "Siena", DurationDays: 3, Cost: 150.5},
			{ID: "T1", RegionID: "R1", Name: "Florence", DurationDays: 2, Cost: 100},
		},
		AttractionRows: []catalog.AttractionRow{
			{ID: "a2", Name: "Duomo", CulturalValue: 8},
			{ID: "a1", Name: "Uffizi", CulturalValue: 5},
		},
		Links: map[string][]string{
			"T1": {"a1", "a1"},
			"T2": {"a2", "a1"},
		},
	}
}

func TestOpenRunsMigrationsOnEmptyDatabase(t *testing.T) {
	t.Parallel()

	store := openMemory(t)

	regions, err := store.Regions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, regions)

	ids, err := store.TourAttractions(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSaveAndReadBackOrderedByID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openMemory(t)
	require.NoError(t, store.Save(ctx, fixture()))

	regions, err := store.Regions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Region{{ID: "R1", Name: "Tuscany"}, {ID: "R2", Name: "Umbria"}}, regions)

	tours, err := store.Tours(ctx)
	require.NoError(t, err)
	require.Len(t, tours, 2)
	assert.Equal(t, "T1", tours[0].ID)
	assert.InDelta(t, 150.5, tours[1].Cost, 1e-9)

	attractions, err := store.Attractions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []catalog.AttractionRow{
		{ID: "a1", Name: "Uffizi", CulturalValue: 5},
		{ID: "a2", Name: "Duomo", CulturalValue: 8},
	}, attractions)

	links, err := store.TourAttractions(ctx, "T2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, links)

	links, err = store.TourAttractions(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, links)
}

func TestSaveReplacesPreviousCatalog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openMemory(t)
	require.NoError(t, store.Save(ctx, fixture()))

	replacement := &catalog.StaticProvider{
		RegionRows: []catalog.Region{{ID: "R9", Name: "Lazio"}},
	}
	require.NoError(t, store.Save(ctx, replacement))

	regions, err := store.Regions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Region{{ID: "R9", Name: "Lazio"}}, regions)

	tours, err := store.Tours(ctx)
	require.NoError(t, err)
	assert.Empty(t, tours)
}

func TestStoreLoadsIntoCatalog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Save(ctx, fixture()))

	c, err := catalog.Load(ctx, store, catalog.WithConcurrency(2))
	require.NoError(t, err)

	tours := c.ToursInRegion("R1")
	require.Len(t, tours, 2)
	assert.Equal(t, 13, tours[1].CulturalValue())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	again, err := reopened.Tours(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 2)
}
