package services

import (
	"context"

	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/geo"
	"ece-placement-service/internal/platform/obs"
	"ece-placement-service/internal/ports"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Optimizer places several centers in sequence, each step seeing the table
// left by the previous one.
type Optimizer struct {
	engine *PlacementEngine
}

func NewOptimizer(oracle ports.DistanceOracle, cfg EngineConfig) *Optimizer {
	return &Optimizer{engine: NewPlacementEngine(oracle, cfg)}
}

func (o *Optimizer) Config() EngineConfig { return o.engine.Config() }

// Run places centers one after another and folds the results.
//
// Centroids never move, so a single spatial index serves every step. A run
// with no centers, or over an empty table, returns an empty summary and the
// input table. If ctx is cancelled mid-run the placements made so far are
// returned with the error, alongside the last committed table.
func (o *Optimizer) Run(ctx context.Context, table *domain.TractTable, centers int, optimized bool) (_ *domain.TractTable, summary domain.RunSummary, err error) {
	summary = domain.NewRunSummary(uuid.NewString(), optimized)
	ctx = obs.WithRunID(ctx, summary.RunID)
	defer obs.Time(ctx, "optimizer run")(&err)

	if table == nil || table.Len() == 0 || centers <= 0 {
		return table, summary, nil
	}

	index := geo.NewIndex(table.Tracts())
	zap.L().Info("optimizer run started", append(obs.Fields(ctx),
		zap.Int("tracts", table.Len()),
		zap.Int("centers", centers),
		zap.Bool("optimized", optimized),
	)...)

	current := table
	for i := 0; i < centers; i++ {
		next, p, err := o.engine.placeCenter(ctx, current, optimized, index)
		if err != nil {
			return current, summary, eris.Wrapf(err, "optimizer run: center %d of %d", i+1, centers)
		}
		summary.Append(p)
		current = next
	}

	zap.L().Info("optimizer run finished", append(obs.Fields(ctx),
		zap.Int("placed", summary.Len()),
		zap.Float64("total_impact_min", summary.TotalImpactMin),
		zap.Float64("total_impact_km", summary.TotalImpactKm),
	)...)

	return current, summary, nil
}
