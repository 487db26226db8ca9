package catalog

import "context"

// StaticProvider serves catalog rows from memory. It backs the YAML source
// and is convenient in tests.
type StaticProvider struct {
	RegionRows     []Region
	TourRows       []TourRow
	AttractionRows []AttractionRow
	// Links maps a tour ID to the IDs of its attractions.
	Links map[string][]string
}

func (s *StaticProvider) Regions(_ context.Context) ([]Region, error) {
	return append([]Region(nil), s.RegionRows...), nil
}

func (s *StaticProvider) Tours(_ context.Context) ([]TourRow, error) {
	return append([]TourRow(nil), s.TourRows...), nil
}

func (s *StaticProvider) TourAttractions(_ context.Context, tourID string) ([]string, error) {
	ids, ok := s.Links[tourID]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), ids...), nil
}

func (s *StaticProvider) Attractions(_ context.Context) ([]AttractionRow, error) {
	return append([]AttractionRow(nil), s.AttractionRows...), nil
}
