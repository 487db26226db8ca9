package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sort"

	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Catalog is an immutable snapshot of regions, tours and attractions with the
// tour<->attraction relationship wired in both directions.
type Catalog struct {
	regions     []Region
	regionIndex map[string]int

	tours     []*Tour
	tourIndex map[string]*Tour

	attractions     []*Attraction
	attractionIndex map[string]*Attraction

	skippedLinks int
}

// LoadOption configures Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	concurrency int
}

// WithConcurrency bounds the number of concurrent TourAttractions calls.
// Values below 1 fall back to sequential loading.
func WithConcurrency(n int) LoadOption {
	return func(cfg *loadConfig) {
		cfg.concurrency = n
	}
}

// Load reads every entity from p and links tours with their attractions.
// Entities are ordered by ID whatever order p returns them in, so every
// provider yields the same search order. Relationship rows referencing unknown
// attractions are skipped and duplicate rows collapse into a single membership;
// both are counted in Stats().SkippedLinks.
func Load(ctx context.Context, p Provider, opts ...LoadOption) (*Catalog, error) {
	cfg := loadConfig{concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.concurrency < 1 {
		cfg.concurrency = 1
	}

	regions, err := p.Regions(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load regions: %w", err)
	}
	tourRows, err := p.Tours(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load tours: %w", err)
	}
	attractionRows, err := p.Attractions(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load attractions: %w", err)
	}

	c := newCatalog(regions, tourRows, attractionRows)

	links := make([][]string, len(c.tours))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for i, tour := range c.tours {
		g.Go(func() error {
			ids, err := p.TourAttractions(gctx, tour.ID)
			if err != nil {
				return fmt.Errorf("catalog: load attractions of tour %s: %w", tour.ID, err)
			}
			links[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, tour := range c.tours {
		seen := make(map[string]struct{}, len(links[i]))
		for _, id := range links[i] {
			c.link(tour, id, seen)
		}
	}
	c.sortLinks()

	return c, nil
}

func newCatalog(regions []Region, tourRows []TourRow, attractionRows []AttractionRow) *Catalog {
	c := &Catalog{
		regionIndex:     make(map[string]int, len(regions)),
		tourIndex:       make(map[string]*Tour, len(tourRows)),
		attractionIndex: make(map[string]*Attraction, len(attractionRows)),
	}

	for _, r := range regions {
		if idx, ok := c.regionIndex[r.ID]; ok {
			c.regions[idx] = r
			continue
		}
		c.regionIndex[r.ID] = len(c.regions)
		c.regions = append(c.regions, r)
	}

	for _, row := range tourRows {
		if existing, ok := c.tourIndex[row.ID]; ok {
			existing.RegionID = row.RegionID
			existing.Name = row.Name
			existing.DurationDays = row.DurationDays
			existing.Cost = row.Cost
			continue
		}
		t := &Tour{
			ID:           row.ID,
			RegionID:     row.RegionID,
			Name:         row.Name,
			DurationDays: row.DurationDays,
			Cost:         row.Cost,
		}
		c.tourIndex[row.ID] = t
		c.tours = append(c.tours, t)
	}

	for _, row := range attractionRows {
		if existing, ok := c.attractionIndex[row.ID]; ok {
			existing.Name = row.Name
			existing.CulturalValue = row.CulturalValue
			continue
		}
		a := &Attraction{
			ID:            row.ID,
			Name:          row.Name,
			CulturalValue: row.CulturalValue,
		}
		c.attractionIndex[row.ID] = a
		c.attractions = append(c.attractions, a)
	}

	slices.SortStableFunc(c.regions, func(a, b Region) int { return cmp.Compare(a.ID, b.ID) })
	for i, r := range c.regions {
		c.regionIndex[r.ID] = i
	}
	slices.SortStableFunc(c.tours, func(a, b *Tour) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortStableFunc(c.attractions, func(a, b *Attraction) int { return cmp.Compare(a.ID, b.ID) })

	return c
}

// link adds attractionID to tour unless it is unknown or already in seen.
func (c *Catalog) link(tour *Tour, attractionID string, seen map[string]struct{}) {
	a, ok := c.attractionIndex[attractionID]
	if !ok {
		c.skippedLinks++
		return
	}
	if _, dup := seen[attractionID]; dup {
		c.skippedLinks++
		return
	}
	seen[attractionID] = struct{}{}
	tour.attractions = append(tour.attractions, a)
	a.tours = append(a.tours, tour)
}

func (c *Catalog) sortLinks() {
	for _, t := range c.tours {
		sort.Slice(t.attractions, func(i, j int) bool {
			return t.attractions[i].ID < t.attractions[j].ID
		})
	}
	for _, a := range c.attractions {
		sort.Slice(a.tours, func(i, j int) bool {
			return a.tours[i].ID < a.tours[j].ID
		})
	}
}

// Regions returns all regions ordered by ID.
func (c *Catalog) Regions() []Region {
	out := make([]Region, len(c.regions))
	copy(out, c.regions)
	return out
}

// Region looks up a region by ID.
func (c *Catalog) Region(id string) (Region, bool) {
	idx, ok := c.regionIndex[id]
	if !ok {
		return Region{}, false
	}
	return c.regions[idx], true
}

// Tours returns all tours ordered by ID.
func (c *Catalog) Tours() []*Tour {
	out := make([]*Tour, len(c.tours))
	copy(out, c.tours)
	return out
}

// Tour looks up a tour by ID.
func (c *Catalog) Tour(id string) (*Tour, bool) {
	t, ok := c.tourIndex[id]
	return t, ok
}

// Attractions returns all attractions ordered by ID.
func (c *Catalog) Attractions() []*Attraction {
	out := make([]*Attraction, len(c.attractions))
	copy(out, c.attractions)
	return out
}

// Attraction looks up an attraction by ID.
func (c *Catalog) Attraction(id string) (*Attraction, bool) {
	a, ok := c.attractionIndex[id]
	return a, ok
}

// ToursInRegion returns the tours whose region is regionID ordered by ID.
// Unknown regions yield an empty slice.
func (c *Catalog) ToursInRegion(regionID string) []*Tour {
	var out []*Tour
	for _, t := range c.tours {
		if t.RegionID == regionID {
			out = append(out, t)
		}
	}
	return out
}

// Stats summarises the size of the catalog.
// SkippedLinks counts relationship rows dropped as unknown or duplicate.
type Stats struct {
	Regions      int `json:"regions"`
	Tours        int `json:"tours"`
	Attractions  int `json:"attractions"`
	Links        int `json:"links"`
	SkippedLinks int `json:"skippedLinks"`
}

// Stats returns entity counts for the catalog.
func (c *Catalog) Stats() Stats {
	links := 0
	for _, t := range c.tours {
		links += len(t.attractions)
	}
	return Stats{
		Regions:      len(c.regions),
		Tours:        len(c.tours),
		Attractions:  len(c.attractions),
		Links:        links,
		SkippedLinks: c.skippedLinks,
	}
}
