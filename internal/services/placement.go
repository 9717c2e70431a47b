package services

import (
	"context"
	"math"

	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/geo"
	"ece-placement-service/internal/platform/metrics"
	"ece-placement-service/internal/platform/obs"
	"ece-placement-service/internal/ports"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var ErrEmptyTable = eris.New("tract table is empty")

// PlacementEngine places one center at a time against a DistanceOracle.
type PlacementEngine struct {
	oracle ports.DistanceOracle
	cfg    EngineConfig
}

func NewPlacementEngine(oracle ports.DistanceOracle, cfg EngineConfig) *PlacementEngine {
	return &PlacementEngine{oracle: oracle, cfg: cfg.withDefaults()}
}

func (e *PlacementEngine) Config() EngineConfig { return e.cfg }

// PlaceCenter runs one greedy step: sort, select, query, commit.
//
// The returned table is a new generation; table itself is untouched. Oracle
// failures only reduce the set of tracts that benefit. The error is non-nil
// only for an empty table or a cancelled ctx.
func (e *PlacementEngine) PlaceCenter(ctx context.Context, table *domain.TractTable, optimized bool) (*domain.TractTable, domain.Placement, error) {
	return e.placeCenter(ctx, table, optimized, nil)
}

func (e *PlacementEngine) placeCenter(ctx context.Context, table *domain.TractTable, optimized bool, index *geo.Index) (next *domain.TractTable, p domain.Placement, err error) {
	defer obs.Time(ctx, "place center")(&err)

	if table == nil || table.Len() == 0 {
		return nil, domain.Placement{}, eris.Wrap(ErrEmptyTable, "place center")
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.Placement{}, err
	}

	sorted := table.SortedByDistance()
	sel := SelectCandidate(sorted, optimized, e.cfg.CandidateWindow, index)
	chosen := sorted.At(sel.Rank)

	p = domain.Placement{
		GEOID:             chosen.GEOID,
		Location:          chosen.Centroid,
		Rank:              sel.Rank,
		EstimatedImpactKm: sel.EstimatedImpactKm,
		Benefited:         []string{chosen.GEOID},
	}

	// The placement tract is never queried; it gets nominal values instead.
	self := chosen
	self.DistanceMin = lowerOrFill(chosen.DistanceMin, e.cfg.NominalMinutes)
	self.HDistanceKm = lowerOrFill(chosen.HDistanceKm, e.cfg.NominalKm)
	self.Population += e.cfg.PopulationBoost
	p.ImpactMin += gain(chosen.DistanceMin, self.DistanceMin)
	p.ImpactKm += gain(chosen.HDistanceKm, self.HDistanceKm)
	updates := []domain.Tract{self}

	queries, hav := e.buildQueries(sorted, sel.Rank, index)
	results, err := queryOracle(ctx, e.oracle, queries, e.cfg)
	if err != nil {
		return nil, domain.Placement{}, eris.Wrap(err, "place center: query oracle")
	}

	for i, q := range queries {
		if q.Skip {
			continue
		}
		p.Queried++
		r := results[i]
		if !r.OK() {
			p.Failed++
			continue
		}

		t := sorted.At(i)
		// A tract with no known distance cannot be shown to improve.
		if !t.HasDistance() || !(r.DurationMin < t.DistanceMin) {
			continue
		}

		u := t
		u.DistanceMin = r.DurationMin
		if hav[i] < t.HDistanceKm {
			u.HDistanceKm = hav[i]
		}
		p.ImpactMin += t.DistanceMin - u.DistanceMin
		p.ImpactKm += t.HDistanceKm - u.HDistanceKm
		p.Benefited = append(p.Benefited, t.GEOID)
		updates = append(updates, u)
	}

	next, err = table.Commit(updates)
	if err != nil {
		return nil, domain.Placement{}, eris.Wrap(err, "place center: commit")
	}

	mode := modeLabel(optimized)
	metrics.Placements.WithLabelValues(mode).Inc()
	metrics.PlacementImpactMinutes.Add(math.Max(0, p.ImpactMin))
	metrics.PlacementImpactKm.Add(math.Max(0, p.ImpactKm))

	zap.L().Info("placed center", append(obs.Fields(ctx),
		zap.String("geoid", p.GEOID),
		zap.String("mode", mode),
		zap.Int("rank", p.Rank),
		zap.Int("queried", p.Queried),
		zap.Int("failed", p.Failed),
		zap.Int("benefited", len(p.Benefited)),
		zap.Float64("impact_min", p.ImpactMin),
		zap.Float64("impact_km", p.ImpactKm),
	)...)

	return next, p, nil
}

// buildQueries returns one query per tract of sorted, in order. Only tracts
// whose haversine distance to the placement is below PruneFactor times their
// hdistance are left unskipped. hav holds those haversine distances.
func (e *PlacementEngine) buildQueries(sorted *domain.TractTable, rank int, index *geo.Index) ([]ports.DistanceQuery, []float64) {
	n := sorted.Len()
	dest := sorted.At(rank).Centroid
	queries := make([]ports.DistanceQuery, n)
	hav := make([]float64, n)

	for i := 0; i < n; i++ {
		queries[i] = ports.DistanceQuery{Origin: sorted.At(i).Centroid, Destination: dest, Skip: true}
		hav[i] = math.NaN()
	}
	if !dest.Valid() {
		return queries, hav
	}

	// A full scan measures every centroid in one pass; the index path only
	// measures what the index returns.
	var candidates []int
	var scanned []float64
	if index == nil {
		candidates = allPositions(n)
		scanned = centroidDistances(sorted, dest)
	} else if maxH := maxHDistance(sorted); !math.IsNaN(maxH) {
		candidates = positionsOf(sorted, index.Within(dest, e.cfg.PruneFactor*maxH))
	}

	for _, i := range candidates {
		if i == rank {
			continue
		}
		t := sorted.At(i)
		if !t.HasHDistance() || !t.Centroid.Valid() {
			continue
		}
		var d float64
		if scanned != nil {
			d = scanned[i]
		} else {
			d = geo.HaversineKm(t.Centroid.Lat, t.Centroid.Lon, dest.Lat, dest.Lon)
		}
		if d < e.cfg.PruneFactor*t.HDistanceKm {
			queries[i].Skip = false
			hav[i] = d
		}
	}
	return queries, hav
}

// centroidDistances returns the haversine distance from every centroid of
// table to dest, by position. It returns nil only if the columns disagree.
func centroidDistances(table *domain.TractTable, dest domain.Coordinates) []float64 {
	lats := make([]float64, table.Len())
	lons := make([]float64, table.Len())
	for i := range lats {
		c := table.At(i).Centroid
		lats[i], lons[i] = c.Lat, c.Lon
	}
	d, err := geo.HaversineKmFrom(lats, lons, dest.Lat, dest.Lon)
	if err != nil {
		return nil
	}
	return d
}

// lowerOrFill returns nominal unless current is already known to be lower.
func lowerOrFill(current, nominal float64) float64 {
	if math.IsNaN(current) || nominal < current {
		return nominal
	}
	return current
}

func gain(before, after float64) float64 {
	if math.IsNaN(before) || math.IsNaN(after) {
		return 0
	}
	return before - after
}

func modeLabel(optimized bool) string {
	if optimized {
		return "optimized"
	}
	return "unoptimized"
}
