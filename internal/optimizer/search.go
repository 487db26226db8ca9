package optimizer

import (
	"context"
	"fmt"

	"github.com/eugenenazirov/tour-planner/internal/catalog"
)

const cancelCheckInterval = 1024

// candidate is a tour prepared for the search: its attraction set is mapped
// onto the bit positions of the current search.
type candidate struct {
	tour  *catalog.Tour
	days  int
	cost  float64
	value int
	set   attractionSet
}

// chosen is a persistent list of included tours, newest first.
type chosen struct {
	index int
	prev  *chosen
	size  int
}

func (c *chosen) push(index int) *chosen {
	size := 1
	if c != nil {
		size = c.size + 1
	}
	return &chosen{index: index, prev: c, size: size}
}

// frame is one pending node of the include/exclude tree.
type frame struct {
	index  int
	days   int
	cost   float64
	value  int
	used   attractionSet
	chosen *chosen
}

// Search finds the subset of tours with the highest total cultural value whose
// total duration and cost fit limits and whose attraction sets are pairwise
// disjoint. Tours are visited in the given order, the include branch before the
// exclude branch, and the first subset reaching a value is kept on ties.
func Search(ctx context.Context, tours []*catalog.Tour, limits Limits) (Result, error) {
	candidates := prepare(tours)

	result := Result{
		Tours:      []*catalog.Tour{},
		Limits:     limits,
		Candidates: make([]string, len(tours)),
	}
	for i, t := range tours {
		result.Candidates[i] = t.ID
	}

	var bestValue, bestDays int
	var bestCost float64
	var best *chosen

	width := 0
	if len(candidates) > 0 {
		width = len(candidates[0].set)
	}
	stack := []frame{{used: make(attractionSet, width)}}

	for len(stack) > 0 {
		if result.Explored%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, fmt.Errorf("%w after %d nodes: %w", ErrSearchAborted, result.Explored, err)
			}
		}

		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		result.Explored++

		if f.value > bestValue {
			bestValue = f.value
			bestCost = f.cost
			bestDays = f.days
			best = f.chosen
		}

		if f.index >= len(candidates) {
			continue
		}

		c := candidates[f.index]

		// pushed first so the include branch is fully explored before it
		stack = append(stack, frame{
			index:  f.index + 1,
			days:   f.days,
			cost:   f.cost,
			value:  f.value,
			used:   f.used,
			chosen: f.chosen,
		})

		days := f.days + c.days
		cost := f.cost + c.cost
		if limits.Days.Allows(days) && limits.Budget.Allows(cost) && f.used.disjoint(c.set) {
			stack = append(stack, frame{
				index:  f.index + 1,
				days:   days,
				cost:   cost,
				value:  f.value + c.value,
				used:   f.used.union(c.set),
				chosen: f.chosen.push(f.index),
			})
		}
	}

	result.Tours = snapshot(best, candidates)
	result.TotalValue = bestValue
	result.TotalCost = bestCost
	result.TotalDays = bestDays
	return result, nil
}

// prepare assigns every attraction reachable from tours a bit position and
// builds the per-tour attraction sets.
func prepare(tours []*catalog.Tour) []candidate {
	positions := make(map[string]int)
	for _, t := range tours {
		for _, a := range t.Attractions() {
			if _, ok := positions[a.ID]; !ok {
				positions[a.ID] = len(positions)
			}
		}
	}

	out := make([]candidate, len(tours))
	for i, t := range tours {
		set := newAttractionSet(len(positions))
		for _, a := range t.Attractions() {
			set.add(positions[a.ID])
		}
		out[i] = candidate{
			tour:  t,
			days:  t.DurationDays,
			cost:  t.Cost,
			value: t.CulturalValue(),
			set:   set,
		}
	}
	return out
}

func snapshot(list *chosen, candidates []candidate) []*catalog.Tour {
	if list == nil {
		return []*catalog.Tour{}
	}
	out := make([]*catalog.Tour, list.size)
	for node := list; node != nil; node = node.prev {
		out[node.size-1] = candidates[node.index].tour
	}
	return out
}
