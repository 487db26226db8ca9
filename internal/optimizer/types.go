package optimizer

import (
	"encoding/json"

	"github.com/eugenenazirov/tour-planner/internal/catalog"
)

type number interface {
	~int | ~float64
}

// Limit is an optional upper bound. The zero value is unbounded.
type Limit[T number] struct {
	max     T
	bounded bool
}

// Unbounded returns a limit that accepts every value.
func Unbounded[T number]() Limit[T] {
	return Limit[T]{}
}

// AtMost returns a limit that accepts values up to and including v.
func AtMost[T number](v T) Limit[T] {
	return Limit[T]{max: v, bounded: true}
}

// LimitFrom converts an optional pointer into a Limit.
func LimitFrom[T number](v *T) Limit[T] {
	if v == nil {
		return Unbounded[T]()
	}
	return AtMost(*v)
}

// Allows reports whether v is within the limit.
func (l Limit[T]) Allows(v T) bool {
	return !l.bounded || v <= l.max
}

// Value returns the bound and whether one is set.
func (l Limit[T]) Value() (T, bool) {
	return l.max, l.bounded
}

// MarshalJSON encodes an unbounded limit as null.
func (l Limit[T]) MarshalJSON() ([]byte, error) {
	if !l.bounded {
		return []byte("null"), nil
	}
	return json.Marshal(l.max)
}

// Limits bundles the duration and budget ceilings of a search.
type Limits struct {
	Days   Limit[int]     `json:"maxDays"`
	Budget Limit[float64] `json:"maxBudget"`
}

// Result is the best package found by a search.
type Result struct {
	RegionID   string
	Tours      []*catalog.Tour
	TotalDays  int
	TotalCost  float64
	TotalValue int

	// Limits are the bounds the search ran with.
	Limits Limits
	// Candidates lists the IDs of the tours considered, in search order.
	Candidates []string
	// Explored counts visited search nodes.
	Explored int
}

// TourIDs returns the IDs of the chosen tours.
func (r Result) TourIDs() []string {
	ids := make([]string, len(r.Tours))
	for i, t := range r.Tours {
		ids[i] = t.ID
	}
	return ids
}
