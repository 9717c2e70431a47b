package services

import (
	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/geo"
)

// Selection is the outcome of candidate selection: a 0-based rank into the
// distance-sorted table and the estimated impact that earned it the spot.
type Selection struct {
	Rank              int
	EstimatedImpactKm float64
}

// SelectCandidate picks where the next center goes. sorted must already be
// ordered worst-served first.
//
// Without optimization the worst-served tract (rank 0) wins. With
// optimization the first window ranks are scored by EstimateImpact and the
// highest strictly positive estimate wins; earlier ranks win ties. When no
// candidate has a positive estimate, rank 0 is returned.
func SelectCandidate(sorted *domain.TractTable, optimized bool, window int, index *geo.Index) Selection {
	if !optimized || sorted.Len() == 0 {
		return Selection{}
	}

	w := min(window, sorted.Len())
	est := newImpactEstimator(sorted, index)

	best := Selection{}
	for r := 0; r < w; r++ {
		if imp := est.estimate(r); imp > best.EstimatedImpactKm {
			best = Selection{Rank: r, EstimatedImpactKm: imp}
		}
	}
	return best
}
