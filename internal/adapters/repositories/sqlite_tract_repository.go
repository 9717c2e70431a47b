package repositories

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/platform/obs"

	"github.com/rotisserie/eris"
)

// SqliteTractRepository stores tracts and run history in SQLite.
// SQLite has no NaN; missing distances are stored as NULL.
type SqliteTractRepository struct {
	DB *sql.DB
}

func NewSqliteTractRepository(db *sql.DB) *SqliteTractRepository {
	return &SqliteTractRepository{DB: db}
}

// Retrieve all tracts ordered by GEOID.
func (r *SqliteTractRepository) ListTracts(ctx context.Context) (_ []domain.Tract, err error) {
	defer obs.Time(ctx, "tracts.ListTracts")(&err)

	if r.DB == nil {
		return nil, eris.New("list tracts: db is nil")
	}

	query := `
	SELECT geoid, centroid_lat, centroid_lon, distance_min, hdistance_km, population
	FROM tracts
	ORDER BY geoid;
	`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "list tracts: query tracts table")
	}
	defer rows.Close()

	tracts := make([]domain.Tract, 0)
	for rows.Next() {
		var t domain.Tract
		var dist, hdist sql.NullFloat64
		if err := rows.Scan(&t.GEOID, &t.Centroid.Lat, &t.Centroid.Lon, &dist, &hdist, &t.Population); err != nil {
			return nil, eris.Wrap(err, "list tracts: scan row")
		}
		t.DistanceMin = fromNull(dist)
		t.HDistanceKm = fromNull(hdist)
		tracts = append(tracts, t)
	}

	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "list tracts: row iteration")
	}

	return tracts, nil
}

// Replace all stored tracts with the given generation.
func (r *SqliteTractRepository) SaveTracts(ctx context.Context, table *domain.TractTable) (err error) {
	defer obs.Time(ctx, "tracts.SaveTracts")(&err)

	return r.inTx(ctx, "save tracts", func(tx *sql.Tx) error {
		return writeTracts(ctx, tx, table)
	})
}

// SaveRun records a completed run and its placements.
func (r *SqliteTractRepository) SaveRun(ctx context.Context, summary domain.RunSummary) (err error) {
	defer obs.Time(ctx, "tracts.SaveRun")(&err)

	if summary.RunID == "" {
		return eris.New("save run: run ID must not be empty")
	}
	return r.inTx(ctx, "save run", func(tx *sql.Tx) error {
		return writeRun(ctx, tx, summary)
	})
}

// SavePlacementRun replaces the tracts with table and records summary
// atomically.
func (r *SqliteTractRepository) SavePlacementRun(ctx context.Context, table *domain.TractTable, summary domain.RunSummary) (err error) {
	defer obs.Time(ctx, "tracts.SavePlacementRun")(&err)

	if summary.RunID == "" {
		return eris.New("save placement run: run ID must not be empty")
	}
	return r.inTx(ctx, "save placement run", func(tx *sql.Tx) error {
		if err := writeTracts(ctx, tx, table); err != nil {
			return err
		}
		return writeRun(ctx, tx, summary)
	})
}

func (r *SqliteTractRepository) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if r.DB == nil {
		return eris.Errorf("%s: db is nil", op)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "%s: begin tx", op)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return eris.Wrap(err, op)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "%s: commit tx", op)
	}
	return nil
}

func writeTracts(ctx context.Context, tx *sql.Tx, table *domain.TractTable) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tracts;`); err != nil {
		return eris.Wrap(err, "clear tracts table")
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO tracts (geoid, centroid_lat, centroid_lon, distance_min, hdistance_km, population)
	VALUES (?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return eris.Wrap(err, "prepare tract insert")
	}
	defer stmt.Close()

	for _, t := range table.Tracts() {
		if _, err := stmt.ExecContext(ctx,
			t.GEOID, t.Centroid.Lat, t.Centroid.Lon,
			toNull(t.DistanceMin), toNull(t.HDistanceKm), t.Population,
		); err != nil {
			return eris.Wrapf(err, "insert geoid=%q", t.GEOID)
		}
	}
	return nil
}

func writeRun(ctx context.Context, tx *sql.Tx, summary domain.RunSummary) error {
	if _, err := tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, optimized, centers, total_impact_km, total_impact_min, created_at)
	VALUES (?, ?, ?, ?, ?, ?);
	`, summary.RunID, summary.Optimized, summary.Len(), summary.TotalImpactKm, summary.TotalImpactMin, time.Now().Unix()); err != nil {
		return eris.Wrapf(err, "insert run %q", summary.RunID)
	}

	for i, p := range summary.Placements {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO placements (run_id, seq, geoid, rank, impact_km, impact_min, estimated_impact_km, benefited)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);
		`, summary.RunID, i, p.GEOID, p.Rank+1, p.ImpactKm, p.ImpactMin, p.EstimatedImpactKm, strings.Join(p.Benefited, ",")); err != nil {
			return eris.Wrapf(err, "insert placement %d", i)
		}
	}
	return nil
}

// RunRecord is a stored run header.
type RunRecord struct {
	RunID          string
	Optimized      bool
	Centers        int
	TotalImpactKm  float64
	TotalImpactMin float64
	CreatedAt      time.Time
}

// ListRuns returns stored runs, newest first.
func (r *SqliteTractRepository) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `
	SELECT run_id, optimized, centers, total_impact_km, total_impact_min, created_at
	FROM runs
	ORDER BY created_at DESC, run_id;
	`)
	if err != nil {
		return nil, eris.Wrap(err, "list runs: query runs table")
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		var rec RunRecord
		var created int64
		if err := rows.Scan(&rec.RunID, &rec.Optimized, &rec.Centers, &rec.TotalImpactKm, &rec.TotalImpactMin, &created); err != nil {
			return nil, eris.Wrap(err, "list runs: scan row")
		}
		rec.CreatedAt = time.Unix(created, 0)
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "list runs: row iteration")
	}
	return runs, nil
}

func toNull(f float64) sql.NullFloat64 {
	if math.IsNaN(f) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func fromNull(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}
