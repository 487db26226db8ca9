// Package yamlfile reads a catalog fixture from a YAML document.
//
// Example:
//
//	regions:
//	  - id: TOS
//	    name: Toscana
//	attractions:
//	  - id: uffizi
//	    name: Galleria degli Uffizi
//	    cultural_value: 9
//	tours:
//	  - id: T1
//	    region_id: TOS
//	    name: Firenze classica
//	    duration_days: 2
//	    cost: 180
//	    attractions: [uffizi]
package yamlfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/tour-planner/internal/catalog"
)

type document struct {
	Regions     []catalog.Region        `yaml:"regions"`
	Attractions []catalog.AttractionRow `yaml:"attractions"`
	Tours       []tourEntry             `yaml:"tours"`
}

type tourEntry struct {
	catalog.TourRow `yaml:",inline"`
	Attractions     []string `yaml:"attractions"`
}

// Load reads and parses the YAML catalog at path.
func Load(path string) (*catalog.StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("yamlfile: read file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("yamlfile: %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*catalog.StaticProvider, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	p := &catalog.StaticProvider{
		RegionRows:     doc.Regions,
		AttractionRows: doc.Attractions,
		TourRows:       make([]catalog.TourRow, 0, len(doc.Tours)),
		Links:          make(map[string][]string, len(doc.Tours)),
	}
	for i, t := range doc.Tours {
		if t.ID == "" {
			return nil, fmt.Errorf("tour at position %d has no id", i)
		}
		p.TourRows = append(p.TourRows, t.TourRow)
		if len(t.Attractions) > 0 {
			p.Links[t.ID] = append(p.Links[t.ID], t.Attractions...)
		}
	}
	return p, nil
}
