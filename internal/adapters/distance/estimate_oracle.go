package distance

import (
	"context"

	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/ports"

	"github.com/rotisserie/eris"
	"github.com/umahmood/haversine"
)

// Free-flow speeds by travel mode, km/h.
var defaultSpeedsKph = map[ports.TravelMode]float64{
	ports.TravelDriving:   40,
	ports.TravelWalking:   5,
	ports.TravelBicycling: 15,
	ports.TravelTransit:   20,
}

// EstimateOracle answers offline from great-circle distance scaled by a
// circuity factor, at a constant speed per mode. It never calls out and is
// meant for dry runs and tests.
type EstimateOracle struct {
	circuity float64
	speeds   map[ports.TravelMode]float64
}

type EstimateOption func(*EstimateOracle)

// WithCircuity sets the road-to-crow-flies ratio. Defaults to 1.3.
func WithCircuity(f float64) EstimateOption {
	return func(e *EstimateOracle) {
		if f >= 1 {
			e.circuity = f
		}
	}
}

// WithSpeed overrides the speed used for mode.
func WithSpeed(mode ports.TravelMode, kph float64) EstimateOption {
	return func(e *EstimateOracle) {
		if kph > 0 {
			e.speeds[mode] = kph
		}
	}
}

func NewEstimateOracle(opts ...EstimateOption) *EstimateOracle {
	e := &EstimateOracle{circuity: 1.3, speeds: make(map[ports.TravelMode]float64, len(defaultSpeedsKph))}
	for m, s := range defaultSpeedsKph {
		e.speeds[m] = s
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *EstimateOracle) GetDistance(ctx context.Context, origin, destination domain.Coordinates, opts ports.TravelOptions) (ports.DistanceResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.DistanceResult{}, err
	}
	if !origin.Valid() || !destination.Valid() {
		return ports.DistanceResult{}, eris.Errorf("estimate: invalid coordinates %q -> %q", origin.Key(), destination.Key())
	}

	mode := normalizeMode(opts.Mode)
	speed, ok := e.speeds[mode]
	if !ok {
		return ports.DistanceResult{}, eris.Errorf("estimate: unsupported travel mode %q", mode)
	}

	_, km := haversine.Distance(
		haversine.Coord{Lat: origin.Lat, Lon: origin.Lon},
		haversine.Coord{Lat: destination.Lat, Lon: destination.Lon},
	)
	road := km * e.circuity
	return ports.DistanceResult{
		DistanceKm:  road,
		DurationMin: road / speed * 60,
		Status:      ports.StatusOK,
	}, nil
}
