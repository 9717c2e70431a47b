package repositories

import (
	"context"
	"database/sql"

	"ece-placement-service/internal/ports"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tracts (
		geoid TEXT PRIMARY KEY,
		centroid_lat REAL NOT NULL,
		centroid_lon REAL NOT NULL,
		distance_min REAL,
		hdistance_km REAL,
		population REAL NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS distance_cache (
		mode TEXT NOT NULL,
		destination TEXT NOT NULL,
		origin TEXT NOT NULL,
		distance_km REAL NOT NULL,
		duration_min REAL NOT NULL,
		fetched_at INTEGER NOT NULL,
		PRIMARY KEY (mode, destination, origin)
	);`,
	`CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		optimized INTEGER NOT NULL,
		centers INTEGER NOT NULL,
		total_impact_km REAL NOT NULL,
		total_impact_min REAL NOT NULL,
		created_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS placements (
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		geoid TEXT NOT NULL,
		rank INTEGER NOT NULL,
		impact_km REAL NOT NULL,
		impact_min REAL NOT NULL,
		estimated_impact_km REAL NOT NULL,
		benefited TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);`,
}

// InitSchema creates the SQLite tables used by the repositories and caches.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return eris.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "init schema: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range sqliteSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "init schema: exec statement #%d", i+1)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "init schema: commit tx")
	}

	return nil
}

// SeedFromCSV loads tracts from a CSV file into an empty store. A store
// that already holds tracts is left alone so restarts keep the optimized
// state.
func SeedFromCSV(ctx context.Context, repo ports.TractRepository, csvPath string) error {
	existing, err := repo.ListTracts(ctx)
	if err != nil {
		return eris.Wrap(err, "seed tracts: count existing")
	}
	if len(existing) > 0 {
		zap.L().Info("tracts already seeded", zap.Int("rows", len(existing)))
		return nil
	}

	table, err := LoadTractsFile(csvPath)
	if err != nil {
		return eris.Wrap(err, "seed tracts")
	}

	if err := repo.SaveTracts(ctx, table); err != nil {
		return eris.Wrap(err, "seed tracts")
	}

	zap.L().Info("seeded tracts", zap.String("path", csvPath), zap.Int("rows", table.Len()))
	return nil
}
