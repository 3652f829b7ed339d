package search

import (
	"cmp"
	"slices"
)

// SelectMedian picks the median candidate by average SOC. Ties are broken by
// capacity then parasitic consumption, so arrival order never changes the pick.
// Non-finite candidates are ignored.
func SelectMedian(candidates []Candidate) (Candidate, bool) {
	pool := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Finite() {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return Candidate{}, false
	}
	slices.SortFunc(pool, func(a, b Candidate) int {
		return cmp.Or(
			cmp.Compare(a.Average(), b.Average()),
			cmp.Compare(a.CapacityWh, b.CapacityWh),
			cmp.Compare(a.ParasiticConsumptionW, b.ParasiticConsumptionW),
		)
	})
	return pool[len(pool)/2], true
}
