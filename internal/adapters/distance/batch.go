package distance

import (
	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/ports"
)

// destinationGroup is a run of active queries sharing one destination.
type destinationGroup struct {
	destination domain.Coordinates
	// Positions in the original query slice.
	positions []int
}

// groupByDestination collects non-skipped queries by destination, in order
// of first appearance.
func groupByDestination(queries []ports.DistanceQuery) []destinationGroup {
	var groups []destinationGroup
	byKey := make(map[string]int)
	for i, q := range queries {
		if q.Skip {
			continue
		}
		k := q.Destination.Key()
		g, ok := byKey[k]
		if !ok {
			g = len(groups)
			byKey[k] = g
			groups = append(groups, destinationGroup{destination: q.Destination})
		}
		groups[g].positions = append(groups[g].positions, i)
	}
	return groups
}

func chunk(positions []int, size int) [][]int {
	if size <= 0 {
		size = len(positions)
	}
	var out [][]int
	for len(positions) > size {
		out = append(out, positions[:size])
		positions = positions[size:]
	}
	if len(positions) > 0 {
		out = append(out, positions)
	}
	return out
}

// initResults returns one result per query: skipped or, until filled in,
// failed.
func initResults(queries []ports.DistanceQuery) []ports.DistanceResult {
	out := make([]ports.DistanceResult, len(queries))
	for i, q := range queries {
		if q.Skip {
			out[i] = ports.DistanceResult{Status: ports.StatusSkipped}
			continue
		}
		out[i] = ports.DistanceResult{Status: ports.StatusFailed}
	}
	return out
}

// single adapts a one-query batch to the GetDistance contract.
func single(results []ports.DistanceResult, err error) (ports.DistanceResult, error) {
	if err != nil {
		return ports.DistanceResult{}, err
	}
	if len(results) != 1 || !results[0].OK() {
		return ports.DistanceResult{}, ports.ErrNoRoute
	}
	return results[0], nil
}

func normalizeMode(m ports.TravelMode) ports.TravelMode {
	if m == "" {
		return ports.TravelDriving
	}
	return m
}
