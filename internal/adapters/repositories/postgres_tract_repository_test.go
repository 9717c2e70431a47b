package repositories

import (
	"context"
	"errors"
	"math"
	"testing"

	"ece-placement-service/internal/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

func ptr(f float64) *float64 { return &f }

func TestEncodeDecodePoint(t *testing.T) {
	c := domain.Coordinates{Lat: 41.8781, Lon: -87.6298}
	data, err := encodePoint(c)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, srid, g.SRID())

	got, err := decodePoint(data)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestDecodePointRejectsOtherGeometries(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})
	data, err := ewkb.Marshal(line, ewkb.NDR)
	require.NoError(t, err)

	_, err = decodePoint(data)
	assert.ErrorContains(t, err, "want point")

	_, err = decodePoint([]byte{0x01})
	assert.Error(t, err)
}

func TestPostgresListTracts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a, err := encodePoint(domain.Coordinates{Lat: 41.8, Lon: -87.6})
	require.NoError(t, err)
	b, err := encodePoint(domain.Coordinates{Lat: 40.1, Lon: -88.2})
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"geoid", "centroid", "distance_min", "hdistance_km", "population"}).
		AddRow("A", a, ptr(12.5), ptr(3.1), 4500.0).
		AddRow("B", b, (*float64)(nil), (*float64)(nil), 0.0)
	mock.ExpectQuery(`SELECT geoid, centroid, distance_min, hdistance_km, population`).WillReturnRows(rows)

	tracts, err := NewPostgresTractRepository(mock).ListTracts(context.Background())
	require.NoError(t, err)
	require.Len(t, tracts, 2)

	assert.Equal(t, domain.Coordinates{Lat: 41.8, Lon: -87.6}, tracts[0].Centroid)
	assert.Equal(t, 12.5, tracts[0].DistanceMin)
	assert.Equal(t, 4500.0, tracts[0].Population)
	assert.True(t, math.IsNaN(tracts[1].DistanceMin))
	assert.True(t, math.IsNaN(tracts[1].HDistanceKm))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListTractsBadCentroid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"geoid", "centroid", "distance_min", "hdistance_km", "population"}).
		AddRow("A", []byte("garbage"), ptr(1), ptr(1), 0.0)
	mock.ExpectQuery(`SELECT geoid`).WillReturnRows(rows)

	_, err = NewPostgresTractRepository(mock).ListTracts(context.Background())
	assert.ErrorContains(t, err, `geoid="A"`)
}

func TestPostgresSaveTracts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	table, err := domain.NewTractTable([]domain.Tract{
		{GEOID: "A", Centroid: domain.Coordinates{Lat: 41.8, Lon: -87.6}, DistanceMin: 12.5, HDistanceKm: 3.1, Population: 10},
		{GEOID: "B", Centroid: domain.Coordinates{Lat: 40.1, Lon: -88.2}, DistanceMin: math.NaN(), HDistanceKm: math.NaN()},
	})
	require.NoError(t, err)
	centroidA, err := encodePoint(table.At(0).Centroid)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM tracts`).WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectExec(`INSERT INTO tracts`).
		WithArgs("A", centroidA, 12.5, 3.1, 10.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// NaN never compares equal, so the missing distances are matched loosely.
	mock.ExpectExec(`INSERT INTO tracts`).
		WithArgs("B", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 0.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, NewPostgresTractRepository(mock).SaveTracts(context.Background(), table))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveTractsRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	table, err := domain.NewTractTable([]domain.Tract{
		{GEOID: "A", Centroid: domain.Coordinates{Lat: 41.8, Lon: -87.6}, DistanceMin: 1, HDistanceKm: 1},
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM tracts`).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO tracts`).
		WithArgs("A", pgxmock.AnyArg(), 1.0, 1.0, 0.0).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewPostgresTractRepository(mock).SaveTracts(context.Background(), table)
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	summary := domain.NewRunSummary("run-1", false)
	summary.Append(domain.Placement{GEOID: "B", Rank: 0, Benefited: []string{"B", "A"}, ImpactKm: 9.5, ImpactMin: 23, EstimatedImpactKm: 11})

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", false, 1, 9.5, 23.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO placements`).
		WithArgs("run-1", 0, "B", 1, 9.5, 23.0, 11.0, []string{"B", "A"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, NewPostgresTractRepository(mock).SaveRun(context.Background(), summary))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, NewPostgresTractRepository(mock).SaveRun(context.Background(), domain.NewRunSummary("", true)))
}

func TestPostgresSavePlacementRunRollsBackTracts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	table, err := domain.NewTractTable([]domain.Tract{
		{GEOID: "B", Centroid: domain.Coordinates{Lat: 41.9, Lon: -87.7}, DistanceMin: 1, HDistanceKm: 0.1, Population: 150},
	})
	require.NoError(t, err)
	summary := domain.NewRunSummary("run-1", true)
	summary.Append(domain.Placement{GEOID: "B", Benefited: []string{"B"}, ImpactKm: 7.9, ImpactMin: 19})

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM tracts`).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO tracts`).
		WithArgs("B", pgxmock.AnyArg(), 1.0, 0.1, 150.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", true, 1, 7.9, 19.0).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))
	mock.ExpectRollback()

	err = NewPostgresTractRepository(mock).SavePlacementRun(context.Background(), table, summary)
	assert.ErrorContains(t, err, "duplicate key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSavePlacementRunCommitsOnce(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	table, err := domain.NewTractTable([]domain.Tract{
		{GEOID: "B", Centroid: domain.Coordinates{Lat: 41.9, Lon: -87.7}, DistanceMin: 1, HDistanceKm: 0.1},
	})
	require.NoError(t, err)
	summary := domain.NewRunSummary("run-2", false)
	summary.Append(domain.Placement{GEOID: "B", Benefited: []string{"B"}, ImpactKm: 2, ImpactMin: 3, EstimatedImpactKm: 4})

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM tracts`).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO tracts`).
		WithArgs("B", pgxmock.AnyArg(), 1.0, 0.1, 0.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-2", false, 1, 2.0, 3.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO placements`).
		WithArgs("run-2", 0, "B", 1, 2.0, 3.0, 4.0, []string{"B"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, NewPostgresTractRepository(mock).SavePlacementRun(context.Background(), table, summary))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitPostgresSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for range postgresSchema {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	}
	require.NoError(t, InitPostgresSchema(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}
