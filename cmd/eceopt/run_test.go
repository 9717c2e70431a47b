package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ece-placement-service/internal/adapters/distance"
	"ece-placement-service/internal/adapters/repositories"
	"ece-placement-service/internal/api/dto"
	"ece-placement-service/internal/config"
	"ece-placement-service/internal/platform/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const tractsCSV = `GEOID,centroid_lat,centroid_lon,distance_min_imp,hdistance_min,population
A,41.00,-88.0,10,5,100
B,41.05,-88.0,30,8,200
C,41.10,-88.0,25,9,300
D,41.50,-88.0,NaN,NaN,0
`

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "app.db")},
		Cache: config.CacheConfig{Backend: config.CacheNone},
		Oracle: config.OracleConfig{
			Provider:        distance.ProviderEstimate,
			Mode:            "driving",
			Concurrency:     2,
			CallTimeoutSecs: 5,
			Circuity:        1.3,
		},
		Optimizer: config.OptimizerConfig{
			Centers:         2,
			Optimized:       true,
			CandidateWindow: 150,
			PruneFactor:     1.5,
			NominalMinutes:  1,
			NominalKm:       0.1,
			PopulationBoost: 50,
		},
	}
}

func writeInput(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "tracts.csv")
	require.NoError(t, os.WriteFile(path, []byte(tractsCSV), 0o644))
	return path
}

func TestRunOptionsValidate(t *testing.T) {
	ok := runOptions{Input: "x.csv", Centers: 1, Format: "json"}
	assert.NoError(t, ok.validate())

	tests := map[string]runOptions{
		"no source":   {Centers: 1, Format: "json"},
		"two sources": {Input: "x.csv", FromStore: true, Centers: 1, Format: "json"},
		"no centers":  {Input: "x.csv", Format: "json"},
		"bad format":  {Input: "x.csv", Centers: 1, Format: "xml"},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, opts.validate())
		})
	}
}

func TestRunPlacementFromCSV(t *testing.T) {
	output := filepath.Join(t.TempDir(), "final.csv")
	opts := runOptions{Input: writeInput(t), Centers: 2, Optimized: false, Output: output, Format: "json"}

	var out bytes.Buffer
	require.NoError(t, runPlacement(context.Background(), testConfig(t), opts, &out))

	var report dto.RunSummaryResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Len(t, report.Placements, 2)
	assert.Equal(t, "B", report.Placements[0].GEOID)
	assert.Equal(t, 1, report.Ranks[0])
	assert.False(t, report.Persisted)

	final, err := repositories.LoadTractsFile(output)
	require.NoError(t, err)
	b, _, ok := final.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, 1.0, b.DistanceMin)
	assert.Equal(t, 250.0, b.Population)
}

func TestRunPlacementPersistsAndLists(t *testing.T) {
	cfg := testConfig(t)
	opts := runOptions{Input: writeInput(t), Centers: 1, Optimized: true, Format: "yaml", Persist: true}

	var out bytes.Buffer
	require.NoError(t, runPlacement(context.Background(), cfg, opts, &out))

	var report dto.RunSummaryResponse
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &report))
	assert.True(t, report.Persisted)
	require.Len(t, report.Placements, 1)

	// The persisted table now feeds --from-store runs.
	out.Reset()
	opts = runOptions{FromStore: true, Centers: 1, Format: "json"}
	require.NoError(t, runPlacement(context.Background(), cfg, opts, &out))

	conn, err := db.OpenSQLite(cfg.Store.SQLitePath)
	require.NoError(t, err)
	defer conn.Close()
	runs, err := repositories.NewSqliteTractRepository(conn).ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].RunID)
	assert.Equal(t, 1, runs[0].Centers)
}

func TestRunPlacementEmptyStore(t *testing.T) {
	opts := runOptions{FromStore: true, Centers: 1, Format: "json"}
	err := runPlacement(context.Background(), testConfig(t), opts, &bytes.Buffer{})
	assert.ErrorContains(t, err, "no tracts")
}

func TestRunPlacementMissingInput(t *testing.T) {
	opts := runOptions{Input: filepath.Join(t.TempDir(), "missing.csv"), Centers: 1, Format: "json"}
	assert.Error(t, runPlacement(context.Background(), testConfig(t), opts, &bytes.Buffer{}))
}

func TestWriteReportYAML(t *testing.T) {
	report := dto.RunSummaryResponse{RunID: "r1", Ranks: []int{3}, TotalImpactMin: 12.5}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, report, "yaml"))
	assert.Contains(t, buf.String(), "run_id: r1")
	assert.Contains(t, buf.String(), "total_impact_min: 12.5")
}

func TestFormatRunsList(t *testing.T) {
	runs := []repositories.RunRecord{
		{RunID: "run-1", Optimized: true, Centers: 3, TotalImpactMin: 41.25, TotalImpactKm: 9.5, CreatedAt: time.Date(2025, 6, 15, 10, 30, 0, 0, time.Local)},
		{RunID: "run-2", Centers: 1},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "IMPACT_MIN")
	assert.Contains(t, output, "run-1")
	assert.Contains(t, output, "optimized")
	assert.Contains(t, output, "unoptimized")
	assert.Contains(t, output, "2025-06-15 10:30")
}
