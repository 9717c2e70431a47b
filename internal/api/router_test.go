package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"ece-placement-service/internal/adapters/distance"
	"ece-placement-service/internal/api/dto"
	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/platform/metrics"
	"ece-placement-service/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu      sync.Mutex
	tracts  []domain.Tract
	saved   *domain.TractTable
	runs    []domain.RunSummary
	listErr error
	saveErr error
}

func (m *memRepo) ListTracts(context.Context) ([]domain.Tract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.Tract(nil), m.tracts...), nil
}

func (m *memRepo) SaveTracts(_ context.Context, table *domain.TractTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = table
	m.tracts = table.Tracts()
	return nil
}

func (m *memRepo) SaveRun(_ context.Context, s domain.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, s)
	return nil
}

func (m *memRepo) SavePlacementRun(_ context.Context, table *domain.TractTable, s domain.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = table
	m.tracts = table.Tracts()
	m.runs = append(m.runs, s)
	return nil
}

func newRepo() *memRepo {
	return &memRepo{tracts: []domain.Tract{
		{GEOID: "A", Centroid: domain.Coordinates{Lat: 41.00, Lon: -88.0}, DistanceMin: 10, HDistanceKm: 5},
		{GEOID: "B", Centroid: domain.Coordinates{Lat: 41.05, Lon: -88.0}, DistanceMin: 30, HDistanceKm: 8},
		{GEOID: "C", Centroid: domain.Coordinates{Lat: 41.50, Lon: -88.0}, DistanceMin: math.NaN(), HDistanceKm: math.NaN()},
	}}
}

func newServer(t *testing.T, repo *memRepo) *httptest.Server {
	t.Helper()
	opt := services.NewOptimizer(distance.NewEstimateOracle(), services.DefaultEngineConfig())
	srv := httptest.NewServer(NewRouter(repo, repo, opt))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/placements", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newServer(t, newRepo())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newServer(t, newRepo())

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.RegisterDefault()
	srv := newServer(t, newRepo())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `http_requests_total{method="GET",path="/health",status="200"}`)
}

func TestListTracts(t *testing.T) {
	srv := newServer(t, newRepo())

	resp, err := http.Get(srv.URL + "/tracts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body dto.ListTractsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 3, body.Total)
	require.Len(t, body.Tracts, 3)
	assert.Equal(t, "B", body.Tracts[0].GEOID)
	assert.Equal(t, "A", body.Tracts[1].GEOID)
	assert.Equal(t, "C", body.Tracts[2].GEOID)
	assert.Nil(t, body.Tracts[2].DistanceMin)
	require.NotNil(t, body.Tracts[0].DistanceMin)
	assert.Equal(t, 30.0, *body.Tracts[0].DistanceMin)
}

func TestListTractsLimit(t *testing.T) {
	srv := newServer(t, newRepo())

	resp, err := http.Get(srv.URL + "/tracts?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body dto.ListTractsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 3, body.Total)
	require.Len(t, body.Tracts, 1)
	assert.Equal(t, "B", body.Tracts[0].GEOID)

	for _, bad := range []string{"abc", "-1"} {
		resp, err := http.Get(srv.URL + "/tracts?limit=" + bad)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
	}
}

func TestListTractsRepoError(t *testing.T) {
	repo := newRepo()
	repo.listErr = errors.New("db down")
	srv := newServer(t, repo)

	resp, err := http.Get(srv.URL + "/tracts")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCreatePlacementsPersists(t *testing.T) {
	repo := newRepo()
	srv := newServer(t, repo)

	resp := post(t, srv, `{"centers":1,"optimized":false,"persist":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body dto.RunSummaryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.RunID)
	assert.True(t, body.Persisted)
	assert.Equal(t, []int{1}, body.Ranks)
	require.Len(t, body.Placements, 1)
	assert.Equal(t, "B", body.Placements[0].GEOID)
	assert.Equal(t, 1, body.Placements[0].Rank)
	assert.Equal(t, "B", body.Placements[0].Benefited[0])
	assert.Greater(t, body.TotalImpactMin, 0.0)

	require.NotNil(t, repo.saved)
	b, _, ok := repo.saved.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, 1.0, b.DistanceMin)
	require.Len(t, repo.runs, 1)
	assert.Equal(t, body.RunID, repo.runs[0].RunID)
}

func TestCreatePlacementsDryRun(t *testing.T) {
	repo := newRepo()
	srv := newServer(t, repo)

	resp := post(t, srv, `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body dto.RunSummaryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Placements, 1)
	assert.False(t, body.Persisted)
	assert.Nil(t, repo.saved)
	assert.Empty(t, repo.runs)
}

func TestCreatePlacementsRejectsBadRequests(t *testing.T) {
	srv := newServer(t, newRepo())

	tests := map[string]string{
		"invalid json":  `{"centers":`,
		"unknown field": `{"centers":1,"hub":"x"}`,
		"trailing data": `{"centers":1}{"centers":2}`,
		"too many":      `{"centers":51}`,
		"negative":      `{"centers":-1}`,
		"wrong type":    `{"centers":"two"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			resp := post(t, srv, body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCreatePlacementsRepoError(t *testing.T) {
	repo := newRepo()
	repo.listErr = errors.New("db down")
	srv := newServer(t, repo)

	resp := post(t, srv, `{"centers":2}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCreatePlacementsSaveErrorLeavesTractsUntouched(t *testing.T) {
	repo := newRepo()
	repo.saveErr = errors.New("duplicate run")
	srv := newServer(t, repo)

	resp := post(t, srv, `{"centers":1,"persist":true}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Nil(t, repo.saved)
	assert.Empty(t, repo.runs)
	b := repo.tracts[1]
	assert.Equal(t, "B", b.GEOID)
	assert.Equal(t, 30.0, b.DistanceMin)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newServer(t, newRepo())

	resp, err := http.Get(srv.URL + "/placements")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/health", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
