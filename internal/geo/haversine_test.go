package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineKmSamePoint(t *testing.T) {
	assert.Equal(t, 0.0, HaversineKm(41.8781, -87.6298, 41.8781, -87.6298))
}

func TestHaversineKmKnownDistance(t *testing.T) {
	// Chicago Loop to Springfield IL, about 288.8 km with a 3963 mi radius.
	d := HaversineKm(41.8781, -87.6298, 39.7817, -89.6501)
	assert.InDelta(t, 288.8, d, 0.5)

	// One degree of latitude is R * pi / 180.
	oneDeg := HaversineKm(40, -88, 41, -88)
	assert.InDelta(t, EarthRadiusKm*math.Pi/180, oneDeg, 1e-6)
}

func TestHaversineKmSymmetric(t *testing.T) {
	a := HaversineKm(42.11659, -90.05662, 42.07957, -90.12149)
	b := HaversineKm(42.07957, -90.12149, 42.11659, -90.05662)
	assert.InDelta(t, a, b, 1e-12)
}

func TestHaversineKmNaN(t *testing.T) {
	assert.True(t, math.IsNaN(HaversineKm(math.NaN(), -87, 41, -87)))
	assert.True(t, math.IsNaN(HaversineKm(41, -87, 41, math.NaN())))
}

func TestHaversineKmFrom(t *testing.T) {
	lats := []float64{41, 42, math.NaN()}
	lons := []float64{-88, -88, -88}

	out, err := HaversineKmFrom(lats, lons, 41, -88)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 0.0, out[0])
	assert.InDelta(t, EarthRadiusKm*math.Pi/180, out[1], 1e-6)
	assert.True(t, math.IsNaN(out[2]))

	_, err = HaversineKmFrom(lats, lons[:2], 41, -88)
	assert.Error(t, err)
}
