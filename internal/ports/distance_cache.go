package ports

import "context"

// Port: persistent storage of previously fetched oracle answers.
//
// Keys are coordinate keys (domain.Coordinates.Key). Lookups are shaped like
// the optimizer's access pattern: many origins travelling to one destination.
type DistanceCache interface {
	// Return cached results for the given origins; misses are absent from the map.
	GetMany(ctx context.Context, mode TravelMode, destination string, origins []string) (map[string]DistanceResult, error)
	// Store results keyed by origin.
	PutMany(ctx context.Context, mode TravelMode, destination string, results map[string]DistanceResult) error
}
