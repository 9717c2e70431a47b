package ports

import (
	"context"

	"ece-placement-service/internal/domain"
)

// Port: a boundary for loading and persisting tract-level data.
type TractRepository interface {
	// Retrieve all tracts available for optimization.
	ListTracts(ctx context.Context) ([]domain.Tract, error)
	// Replace stored tract state with the given generation.
	SaveTracts(ctx context.Context, table *domain.TractTable) error
}

// Port: records completed optimizer runs.
type RunStore interface {
	SaveRun(ctx context.Context, summary domain.RunSummary) error
	// Replace stored tract state with table and record summary in one
	// transaction; on error neither is written.
	SavePlacementRun(ctx context.Context, table *domain.TractTable, summary domain.RunSummary) error
}
