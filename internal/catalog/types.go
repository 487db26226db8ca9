package catalog

import "context"

// Region groups tours offered in the same geographic area.
type Region struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// TourRow is a tour as reported by a Provider, before relationships are wired.
type TourRow struct {
	ID           string  `yaml:"id"`
	RegionID     string  `yaml:"region_id"`
	Name         string  `yaml:"name"`
	DurationDays int     `yaml:"duration_days"`
	Cost         float64 `yaml:"cost"`
}

// AttractionRow is an attraction as reported by a Provider.
type AttractionRow struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	CulturalValue int    `yaml:"cultural_value"`
}

// Provider is the data source collaborator the catalog is loaded from.
// Implementations return rows in a stable order (by ID for SQL sources).
type Provider interface {
	Regions(ctx context.Context) ([]Region, error)
	Tours(ctx context.Context) ([]TourRow, error)
	// TourAttractions returns the attraction IDs linked to tourID. A nil or
	// empty slice means the tour has no attractions.
	TourAttractions(ctx context.Context, tourID string) ([]string, error)
	Attractions(ctx context.Context) ([]AttractionRow, error)
}

// Attraction is a point of interest carrying a cultural value score.
type Attraction struct {
	ID            string
	Name          string
	CulturalValue int

	tours []*Tour
}

// Tours returns the tours that include the attraction.
func (a *Attraction) Tours() []*Tour {
	out := make([]*Tour, len(a.tours))
	copy(out, a.tours)
	return out
}

// Tour is a bookable offering in a region.
type Tour struct {
	ID           string
	RegionID     string
	Name         string
	DurationDays int
	Cost         float64

	attractions []*Attraction
}

// Attractions returns the tour's attraction set ordered by attraction ID.
func (t *Tour) Attractions() []*Attraction {
	out := make([]*Attraction, len(t.attractions))
	copy(out, t.attractions)
	return out
}

// CulturalValue is the sum of the cultural values of the tour's attractions.
func (t *Tour) CulturalValue() int {
	total := 0
	for _, a := range t.attractions {
		total += a.CulturalValue
	}
	return total
}

