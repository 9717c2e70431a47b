// Package geo holds the great-circle distance used as a free proxy for travel
// distance, and a spatial prefilter over tract centroids.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
)

const (
	EarthRadiusMi = 3963.0
	KmPerMile     = 1.60934
	EarthRadiusKm = EarthRadiusMi * KmPerMile
)

// HaversineKm returns the great-circle distance in km between two points given
// in degrees. NaN inputs yield NaN.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	// Rounding can push h a hair above 1 for antipodal points.
	return 2 * EarthRadiusMi * math.Asin(math.Sqrt(math.Min(h, 1))) * KmPerMile
}

// HaversineKmFrom returns the distance from every (lats[i], lons[i]) to one
// fixed point.
func HaversineKmFrom(lats, lons []float64, lat, lon float64) ([]float64, error) {
	if len(lats) != len(lons) {
		return nil, eris.Errorf("haversine: lats and lons differ in length (%d != %d)", len(lats), len(lons))
	}

	out := make([]float64, len(lats))
	for i := range lats {
		out[i] = HaversineKm(lats[i], lons[i], lat, lon)
	}
	return out, nil
}
