package geo

import (
	"math"

	"ece-placement-service/internal/domain"

	"github.com/dhconnelly/rtreego"
)

// Side length, in degrees, of the rect stored for each centroid.
const pointTolerance = 1e-9

// Padding, in degrees, added around every query box.
const boxPadding = 1e-6

type centroidItem struct {
	rect  rtreego.Rect
	geoid string
}

func (c *centroidItem) Bounds() rtreego.Rect { return c.rect }

// Index is an R-tree over tract centroids keyed by GEOID.
//
// Centroids do not move between table generations, so one index serves a
// whole optimizer run. Within returns a superset of the exact answer; callers
// still apply the haversine check.
type Index struct {
	tree *rtreego.Rtree
	size int
}

// NewIndex builds the index. Tracts with invalid centroids are left out.
func NewIndex(tracts []domain.Tract) *Index {
	// 2D (lon, lat), between 25 and 50 children per node.
	tree := rtreego.NewTree(2, 25, 50)
	size := 0
	for _, t := range tracts {
		if !t.Centroid.Valid() {
			continue
		}

		rect, err := rtreego.NewRect(rtreego.Point{t.Centroid.Lon, t.Centroid.Lat}, []float64{pointTolerance, pointTolerance})
		if err != nil {
			continue
		}
		tree.Insert(&centroidItem{rect: rect, geoid: t.GEOID})
		size++
	}

	return &Index{tree: tree, size: size}
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return ix.size
}

// Within returns the GEOIDs whose centroid may lie within radiusKm of center.
func (ix *Index) Within(center domain.Coordinates, radiusKm float64) []string {
	if ix == nil || !center.Valid() || math.IsNaN(radiusKm) || radiusKm < 0 {
		return nil
	}

	minLon, minLat, maxLon, maxLat := boundingBox(center, radiusKm)
	rect, err := rtreego.NewRect(
		rtreego.Point{minLon, minLat},
		[]float64{maxLon - minLon, maxLat - minLat},
	)
	if err != nil {
		return nil
	}

	hits := ix.tree.SearchIntersect(rect)
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*centroidItem).geoid)
	}
	return out
}

// boundingBox returns a lon/lat box that contains every point within radiusKm
// great-circle distance of center.
func boundingBox(center domain.Coordinates, radiusKm float64) (minLon, minLat, maxLon, maxLat float64) {
	delta := radiusKm / EarthRadiusKm
	if math.IsInf(delta, 1) || delta >= math.Pi {
		return -180 - boxPadding, -90 - boxPadding, 180 + boxPadding, 90 + boxPadding
	}

	dLat := delta * 180 / math.Pi
	minLat = center.Lat - dLat - boxPadding
	maxLat = center.Lat + dLat + boxPadding

	minLon, maxLon = -180-boxPadding, 180+boxPadding
	if minLat <= -90 || maxLat >= 90 {
		return minLon, minLat, maxLon, maxLat
	}

	s := math.Sin(delta) / math.Cos(center.Lat*math.Pi/180)
	if s >= 1 {
		return minLon, minLat, maxLon, maxLat
	}

	dLon := math.Asin(s) * 180 / math.Pi
	if center.Lon-dLon < -180 || center.Lon+dLon > 180 {
		// Crossing the antimeridian; the full band is still a superset.
		return minLon, minLat, maxLon, maxLat
	}

	return center.Lon - dLon - boxPadding, minLat, center.Lon + dLon + boxPadding, maxLat
}
