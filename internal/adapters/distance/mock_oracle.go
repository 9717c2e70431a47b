package distance

import (
	"context"
	"fmt"
	"sync"

	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/ports"
)

type MockPair struct {
	From, To domain.Coordinates
	Km       float64
	Minutes  float64
}

// MockOracle answers from a fixed table of pairs and records every call.
// Unknown pairs fail unless a fallback is set.
type MockOracle struct {
	mu       sync.Mutex
	m        map[string]ports.DistanceResult
	fallback func(origin, destination domain.Coordinates) (ports.DistanceResult, error)
	calls    []ports.DistanceQuery
}

func NewMockOracle(pairs []MockPair) *MockOracle {
	m := make(map[string]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		m[pairKey(p.From, p.To)] = ports.DistanceResult{DistanceKm: p.Km, DurationMin: p.Minutes, Status: ports.StatusOK}
	}
	return &MockOracle{m: m}
}

// WithFallback answers pairs missing from the table with fn.
func (p *MockOracle) WithFallback(fn func(origin, destination domain.Coordinates) (ports.DistanceResult, error)) *MockOracle {
	p.fallback = fn
	return p
}

func (p *MockOracle) GetDistance(ctx context.Context, origin, destination domain.Coordinates, opts ports.TravelOptions) (ports.DistanceResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, ports.DistanceQuery{Origin: origin, Destination: destination})
	r, ok := p.m[pairKey(origin, destination)]
	fallback := p.fallback
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ports.DistanceResult{}, err
	}
	if ok {
		return r, nil
	}
	if fallback != nil {
		return fallback(origin, destination)
	}
	return ports.DistanceResult{}, fmt.Errorf("missing pair %q -> %q", origin.Key(), destination.Key())
}

// Calls returns the lookups made so far, in arrival order.
func (p *MockOracle) Calls() []ports.DistanceQuery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.DistanceQuery(nil), p.calls...)
}

func (p *MockOracle) Reset() {
	p.mu.Lock()
	p.calls = nil
	p.mu.Unlock()
}

// MockMatrixOracle is a MockOracle that also serves batches.
type MockMatrixOracle struct {
	*MockOracle
	mu      sync.Mutex
	batches int
	err     error
}

func NewMockMatrixOracle(pairs []MockPair) *MockMatrixOracle {
	return &MockMatrixOracle{MockOracle: NewMockOracle(pairs)}
}

// FailBatches makes every batch call return err.
func (p *MockMatrixOracle) FailBatches(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *MockMatrixOracle) GetDistances(ctx context.Context, queries []ports.DistanceQuery, opts ports.TravelOptions) ([]ports.DistanceResult, error) {
	p.mu.Lock()
	p.batches++
	err := p.err
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]ports.DistanceResult, len(queries))
	for i, q := range queries {
		if q.Skip {
			out[i] = ports.DistanceResult{Status: ports.StatusSkipped}
			continue
		}
		r, err := p.GetDistance(ctx, q.Origin, q.Destination, opts)
		if err != nil {
			out[i] = ports.DistanceResult{Status: ports.StatusFailed}
			continue
		}
		out[i] = r
	}
	return out, nil
}

func (p *MockMatrixOracle) Batches() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.batches
}

func pairKey(from, to domain.Coordinates) string {
	return from.Key() + "|" + to.Key()
}
