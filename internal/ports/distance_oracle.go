package ports

import (
	"context"
	"time"

	"ece-placement-service/internal/domain"

	"github.com/rotisserie/eris"
)

// ErrNoRoute is returned when the oracle answered but found no route.
var ErrNoRoute = eris.New("no route between locations")

type TravelMode string

const (
	TravelDriving   TravelMode = "driving"
	TravelWalking   TravelMode = "walking"
	TravelBicycling TravelMode = "bicycling"
	TravelTransit   TravelMode = "transit"
)

// Context for a travel lookup. A zero ArrivalTime means "no preference".
type TravelOptions struct {
	Mode        TravelMode
	ArrivalTime time.Time
}

type DistanceStatus int

const (
	StatusOK DistanceStatus = iota
	StatusFailed
	StatusSkipped
)

func (s DistanceStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Real travel distance and duration between two locations.
// Only results with StatusOK carry meaningful numbers.
type DistanceResult struct {
	DistanceKm  float64
	DurationMin float64
	Status      DistanceStatus
}

func (r DistanceResult) OK() bool { return r.Status == StatusOK }

// One origin/destination pair. Skipped queries never consume a request.
type DistanceQuery struct {
	Origin      domain.Coordinates
	Destination domain.Coordinates
	Skip        bool
}

// Contract for retrieving real travel distance and duration between locations.
type DistanceOracle interface {
	// Return travel distance and duration from origin to destination.
	GetDistance(ctx context.Context, origin, destination domain.Coordinates, opts TravelOptions) (DistanceResult, error)
}

// Optional extension of DistanceOracle that supports batched lookups.
type DistanceMatrixOracle interface {
	DistanceOracle
	// Return one result per query, in query order. Per-pair failures are
	// reported as StatusFailed; an error means the whole batch failed.
	GetDistances(ctx context.Context, queries []DistanceQuery, opts TravelOptions) ([]DistanceResult, error)
}
