// Package optimizer selects the tour package with the highest cultural value
// for a region under optional duration and budget ceilings, never counting an
// attraction twice. The search is exhaustive: every subset of the region's
// tours is reachable, pruned only by the three hard constraints.
package optimizer
