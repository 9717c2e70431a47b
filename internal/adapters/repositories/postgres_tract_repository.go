package repositories

import (
	"context"
	"math"

	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/platform/db"
	"ece-placement-service/internal/platform/obs"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

const srid = 4326

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tracts (
		geoid TEXT PRIMARY KEY,
		centroid BYTEA NOT NULL,
		distance_min DOUBLE PRECISION,
		hdistance_km DOUBLE PRECISION,
		population DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS distance_cache (
		mode TEXT NOT NULL,
		destination TEXT NOT NULL,
		origin TEXT NOT NULL,
		distance_km DOUBLE PRECISION NOT NULL,
		duration_min DOUBLE PRECISION NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (mode, destination, origin)
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		optimized BOOLEAN NOT NULL,
		centers INTEGER NOT NULL,
		total_impact_km DOUBLE PRECISION NOT NULL,
		total_impact_min DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS placements (
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		geoid TEXT NOT NULL,
		rank INTEGER NOT NULL,
		impact_km DOUBLE PRECISION NOT NULL,
		impact_min DOUBLE PRECISION NOT NULL,
		estimated_impact_km DOUBLE PRECISION NOT NULL,
		benefited TEXT[] NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

// InitPostgresSchema creates the Postgres tables.
func InitPostgresSchema(ctx context.Context, pool db.Pool) error {
	for i, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return eris.Wrapf(err, "init postgres schema: exec statement #%d", i+1)
		}
	}
	return nil
}

// PostgresTractRepository stores tracts in Postgres with centroids as EWKB
// points (SRID 4326). Postgres float8 holds NaN, so missing distances
// round-trip as NaN; NULL is also read as NaN.
type PostgresTractRepository struct {
	pool db.Pool
}

func NewPostgresTractRepository(pool db.Pool) *PostgresTractRepository {
	return &PostgresTractRepository{pool: pool}
}

func (r *PostgresTractRepository) ListTracts(ctx context.Context) (_ []domain.Tract, err error) {
	defer obs.Time(ctx, "tracts.pg.ListTracts")(&err)

	rows, err := r.pool.Query(ctx, `
	SELECT geoid, centroid, distance_min, hdistance_km, population
	FROM tracts
	ORDER BY geoid`)
	if err != nil {
		return nil, eris.Wrap(err, "list tracts: query tracts table")
	}
	defer rows.Close()

	tracts := make([]domain.Tract, 0)
	for rows.Next() {
		var t domain.Tract
		var centroid []byte
		var dist, hdist *float64
		if err := rows.Scan(&t.GEOID, &centroid, &dist, &hdist, &t.Population); err != nil {
			return nil, eris.Wrap(err, "list tracts: scan row")
		}
		c, err := decodePoint(centroid)
		if err != nil {
			return nil, eris.Wrapf(err, "list tracts: geoid=%q", t.GEOID)
		}
		t.Centroid = c
		t.DistanceMin = derefOrNaN(dist)
		t.HDistanceKm = derefOrNaN(hdist)
		tracts = append(tracts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "list tracts: row iteration")
	}

	return tracts, nil
}

func (r *PostgresTractRepository) SaveTracts(ctx context.Context, table *domain.TractTable) (err error) {
	defer obs.Time(ctx, "tracts.pg.SaveTracts")(&err)

	return r.inTx(ctx, "save tracts", func(tx pgx.Tx) error {
		return writePostgresTracts(ctx, tx, table)
	})
}

func (r *PostgresTractRepository) SaveRun(ctx context.Context, summary domain.RunSummary) (err error) {
	defer obs.Time(ctx, "tracts.pg.SaveRun")(&err)

	if summary.RunID == "" {
		return eris.New("save run: run ID must not be empty")
	}
	return r.inTx(ctx, "save run", func(tx pgx.Tx) error {
		return writePostgresRun(ctx, tx, summary)
	})
}

// SavePlacementRun rewrites the tracts and records summary in one
// transaction.
func (r *PostgresTractRepository) SavePlacementRun(ctx context.Context, table *domain.TractTable, summary domain.RunSummary) (err error) {
	defer obs.Time(ctx, "tracts.pg.SavePlacementRun")(&err)

	if summary.RunID == "" {
		return eris.New("save placement run: run ID must not be empty")
	}
	return r.inTx(ctx, "save placement run", func(tx pgx.Tx) error {
		if err := writePostgresTracts(ctx, tx, table); err != nil {
			return err
		}
		return writePostgresRun(ctx, tx, summary)
	})
}

func (r *PostgresTractRepository) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "%s: begin tx", op)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return eris.Wrap(err, op)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "%s: commit tx", op)
	}
	return nil
}

func writePostgresTracts(ctx context.Context, tx pgx.Tx, table *domain.TractTable) error {
	if _, err := tx.Exec(ctx, `DELETE FROM tracts`); err != nil {
		return eris.Wrap(err, "clear tracts table")
	}

	for _, t := range table.Tracts() {
		centroid, err := encodePoint(t.Centroid)
		if err != nil {
			return eris.Wrapf(err, "geoid=%q", t.GEOID)
		}
		if _, err := tx.Exec(ctx, `
		INSERT INTO tracts (geoid, centroid, distance_min, hdistance_km, population)
		VALUES ($1, $2, $3, $4, $5)`,
			t.GEOID, centroid, t.DistanceMin, t.HDistanceKm, t.Population,
		); err != nil {
			return eris.Wrapf(err, "insert geoid=%q", t.GEOID)
		}
	}
	return nil
}

func writePostgresRun(ctx context.Context, tx pgx.Tx, summary domain.RunSummary) error {
	if _, err := tx.Exec(ctx, `
	INSERT INTO runs (run_id, optimized, centers, total_impact_km, total_impact_min)
	VALUES ($1, $2, $3, $4, $5)`,
		summary.RunID, summary.Optimized, summary.Len(), summary.TotalImpactKm, summary.TotalImpactMin,
	); err != nil {
		return eris.Wrapf(err, "insert run %q", summary.RunID)
	}

	for i, p := range summary.Placements {
		if _, err := tx.Exec(ctx, `
		INSERT INTO placements (run_id, seq, geoid, rank, impact_km, impact_min, estimated_impact_km, benefited)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			summary.RunID, i, p.GEOID, p.Rank+1, p.ImpactKm, p.ImpactMin, p.EstimatedImpactKm, p.Benefited,
		); err != nil {
			return eris.Wrapf(err, "insert placement %d", i)
		}
	}
	return nil
}

func encodePoint(c domain.Coordinates) ([]byte, error) {
	p := geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat}).SetSRID(srid)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "encode centroid")
	}
	return data, nil
}

func decodePoint(data []byte) (domain.Coordinates, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return domain.Coordinates{}, eris.Wrap(err, "decode centroid")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return domain.Coordinates{}, eris.Errorf("decode centroid: want point, got %T", g)
	}
	return domain.Coordinates{Lon: p.X(), Lat: p.Y()}, nil
}

func derefOrNaN(f *float64) float64 {
	if f == nil {
		return math.NaN()
	}
	return *f
}
