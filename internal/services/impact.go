package services

import (
	"math"
	"slices"

	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/geo"
)

// EstimateImpact estimates the aggregate benefit, in km, of placing a center
// at the centroid of table.At(candidate).
//
// For every tract the reduction is max(0, hdistance - haversine to the
// candidate); the estimate is the sum. No oracle calls are made, so this is a
// cheap proxy for ranking candidates, not a measurement.
func EstimateImpact(table *domain.TractTable, candidate int, index *geo.Index) float64 {
	return newImpactEstimator(table, index).estimate(candidate)
}

type impactEstimator struct {
	table *domain.TractTable
	index *geo.Index
	// Largest known hdistance; no tract farther than this from a candidate
	// can benefit from it.
	maxHDistanceKm float64
}

func newImpactEstimator(table *domain.TractTable, index *geo.Index) *impactEstimator {
	return &impactEstimator{
		table:          table,
		index:          index,
		maxHDistanceKm: maxHDistance(table),
	}
}

func (e *impactEstimator) estimate(candidate int) float64 {
	center := e.table.At(candidate).Centroid
	if !center.Valid() {
		return 0
	}

	total := 0.0
	for _, i := range e.reachable(center) {
		t := e.table.At(i)
		if !t.HasHDistance() {
			continue
		}
		d := geo.HaversineKm(t.Centroid.Lat, t.Centroid.Lon, center.Lat, center.Lon)
		if reduced := t.HDistanceKm - d; reduced > 0 {
			total += reduced
		}
	}
	return total
}

// reachable returns positional indexes, ascending, of the tracts that may
// lie within maxHDistanceKm of center.
func (e *impactEstimator) reachable(center domain.Coordinates) []int {
	if e.index == nil {
		return allPositions(e.table.Len())
	}
	if math.IsNaN(e.maxHDistanceKm) {
		return nil
	}
	return positionsOf(e.table, e.index.Within(center, e.maxHDistanceKm))
}

func maxHDistance(table *domain.TractTable) float64 {
	maxH := math.NaN()
	for i := 0; i < table.Len(); i++ {
		h := table.At(i).HDistanceKm
		if math.IsNaN(h) {
			continue
		}
		if math.IsNaN(maxH) || h > maxH {
			maxH = h
		}
	}
	return maxH
}

func allPositions(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// positionsOf maps GEOIDs to positional indexes in table order, so sums run
// in the same order as a full scan.
func positionsOf(table *domain.TractTable, geoids []string) []int {
	out := make([]int, 0, len(geoids))
	for _, g := range geoids {
		if _, i, ok := table.Lookup(g); ok {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return out
}
