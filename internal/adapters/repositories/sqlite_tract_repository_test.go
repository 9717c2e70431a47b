package repositories

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/platform/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSqliteDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, InitSchema(context.Background(), conn))
	return conn
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	conn := newSqliteDB(t)
	assert.NoError(t, InitSchema(context.Background(), conn))
	assert.Error(t, InitSchema(context.Background(), nil))
}

func TestSqliteTractRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSqliteTractRepository(newSqliteDB(t))

	table, err := domain.NewTractTable([]domain.Tract{
		{GEOID: "B", Centroid: domain.Coordinates{Lat: 41.9, Lon: -87.7}, DistanceMin: 20, HDistanceKm: 8, Population: 10},
		{GEOID: "A", Centroid: domain.Coordinates{Lat: 41.8, Lon: -87.6}, DistanceMin: math.NaN(), HDistanceKm: math.NaN()},
	})
	require.NoError(t, err)
	require.NoError(t, repo.SaveTracts(ctx, table))

	got, err := repo.ListTracts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "A", got[0].GEOID)
	assert.True(t, math.IsNaN(got[0].DistanceMin))
	assert.True(t, math.IsNaN(got[0].HDistanceKm))
	assert.Equal(t, "B", got[1].GEOID)
	assert.Equal(t, 20.0, got[1].DistanceMin)
	assert.Equal(t, 10.0, got[1].Population)

	// Saving replaces rather than merges.
	smaller, err := domain.NewTractTable([]domain.Tract{table.At(0)})
	require.NoError(t, err)
	require.NoError(t, repo.SaveTracts(ctx, smaller))
	got, err = repo.ListTracts(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSqliteTractRepositorySaveRun(t *testing.T) {
	ctx := context.Background()
	conn := newSqliteDB(t)
	repo := NewSqliteTractRepository(conn)

	summary := domain.NewRunSummary("run-1", true)
	summary.Append(domain.Placement{GEOID: "B", Rank: 0, Benefited: []string{"B", "A"}, ImpactKm: 9.9, ImpactMin: 23})
	summary.Append(domain.Placement{GEOID: "A", Rank: 3, Benefited: []string{"A"}, ImpactKm: 1, ImpactMin: 5})
	require.NoError(t, repo.SaveRun(ctx, summary))

	runs, err := repo.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.True(t, runs[0].Optimized)
	assert.Equal(t, 2, runs[0].Centers)
	assert.InDelta(t, 10.9, runs[0].TotalImpactKm, 1e-9)

	var rank int
	var benefited string
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT rank, benefited FROM placements WHERE run_id = ? AND seq = 0`, "run-1").Scan(&rank, &benefited))
	assert.Equal(t, 1, rank)
	assert.Equal(t, "B,A", benefited)

	assert.Error(t, repo.SaveRun(ctx, summary), "duplicate run ID")
	assert.Error(t, repo.SaveRun(ctx, domain.NewRunSummary("", false)))
}

func TestSqliteSavePlacementRunIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewSqliteTractRepository(newSqliteDB(t))

	first, err := domain.NewTractTable([]domain.Tract{
		{GEOID: "A", Centroid: domain.Coordinates{Lat: 41.8, Lon: -87.6}, DistanceMin: 10, HDistanceKm: 5},
		{GEOID: "B", Centroid: domain.Coordinates{Lat: 41.9, Lon: -87.7}, DistanceMin: 1, HDistanceKm: 0.1},
	})
	require.NoError(t, err)
	summary := domain.NewRunSummary("run-1", false)
	summary.Append(domain.Placement{GEOID: "B", Benefited: []string{"B"}, ImpactKm: 7.9, ImpactMin: 19})
	require.NoError(t, repo.SavePlacementRun(ctx, first, summary))

	// Reusing the run ID fails after the tracts were rewritten inside the
	// transaction; the rewrite must not survive.
	second, err := domain.NewTractTable([]domain.Tract{
		{GEOID: "Z", Centroid: domain.Coordinates{Lat: 40.0, Lon: -89.0}, DistanceMin: 3, HDistanceKm: 2},
	})
	require.NoError(t, err)
	assert.Error(t, repo.SavePlacementRun(ctx, second, summary))

	got, err := repo.ListTracts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].GEOID)
	assert.Equal(t, 1.0, got[1].DistanceMin)

	runs, err := repo.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Centers)

	assert.Error(t, repo.SavePlacementRun(ctx, second, domain.NewRunSummary("", false)))
}

func TestSeedFromCSV(t *testing.T) {
	ctx := context.Background()
	conn := newSqliteDB(t)
	path := filepath.Join(t.TempDir(), "tracts.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	require.NoError(t, SeedFromCSV(ctx, NewSqliteTractRepository(conn), path))
	got, err := NewSqliteTractRepository(conn).ListTracts(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// A populated table is left alone.
	other := strings.Replace(sampleCSV, "17019000100", "17019000200", 1)
	require.NoError(t, os.WriteFile(path, []byte(other), 0o644))
	require.NoError(t, SeedFromCSV(ctx, NewSqliteTractRepository(conn), path))
	got, err = NewSqliteTractRepository(conn).ListTracts(ctx)
	require.NoError(t, err)
	geoids := make([]string, 0, len(got))
	for _, tr := range got {
		geoids = append(geoids, tr.GEOID)
	}
	assert.Contains(t, geoids, "17019000100")
	assert.NotContains(t, geoids, "17019000200")
}

func TestSeedFromCSVMissingFile(t *testing.T) {
	conn := newSqliteDB(t)
	assert.Error(t, SeedFromCSV(context.Background(), NewSqliteTractRepository(conn), filepath.Join(t.TempDir(), "nope.csv")))
}
