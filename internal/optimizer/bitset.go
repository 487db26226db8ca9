package optimizer

import "math/bits"

// attractionSet is a copy-on-write bitset over the attractions of one search.
// union never mutates its receiver, so sibling branches can share a set.
type attractionSet []uint64

func newAttractionSet(size int) attractionSet {
	return make(attractionSet, (size+63)/64)
}

func (s attractionSet) add(i int) {
	s[i/64] |= 1 << (uint(i) % 64)
}

func (s attractionSet) disjoint(other attractionSet) bool {
	for i := range s {
		if s[i]&other[i] != 0 {
			return false
		}
	}
	return true
}

func (s attractionSet) union(other attractionSet) attractionSet {
	out := make(attractionSet, len(s))
	for i := range s {
		out[i] = s[i] | other[i]
	}
	return out
}

func (s attractionSet) count() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}
	return n
}
