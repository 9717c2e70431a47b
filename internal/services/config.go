package services

import (
	"time"

	"ece-placement-service/internal/ports"
)

// EngineConfig holds the tunables of the placement engine.
//
// CandidateWindow and PruneFactor are empirical values from the Illinois
// study; other datasets may need different ones.
type EngineConfig struct {
	// Number of worst-served tracts scanned by the optimized selector.
	CandidateWindow int
	// A tract is re-queried when its haversine distance to the new center is
	// below PruneFactor times its current haversine distance.
	PruneFactor float64
	// Distance assigned to the tract that receives the new center.
	NominalMinutes float64
	NominalKm      float64
	// Population added to the tract that receives the new center.
	PopulationBoost float64

	// Maximum in-flight oracle calls when the oracle has no batch endpoint.
	Concurrency int
	// Deadline for a single oracle call; a timeout counts as a failure.
	CallTimeout time.Duration
	Travel      ports.TravelOptions
}

// DefaultEngineConfig returns the values used by the original study.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CandidateWindow: 150,
		PruneFactor:     1.5,
		NominalMinutes:  1,
		NominalKm:       0.1,
		PopulationBoost: 50,
		Concurrency:     4,
		CallTimeout:     10 * time.Second,
		Travel: ports.TravelOptions{
			Mode:        ports.TravelDriving,
			ArrivalTime: time.Date(2024, 4, 11, 9, 0, 0, 0, time.Local),
		},
	}
}

func (c EngineConfig) withDefaults() EngineConfig {
	d := DefaultEngineConfig()
	if c.CandidateWindow <= 0 {
		c.CandidateWindow = d.CandidateWindow
	}
	if c.PruneFactor <= 0 {
		c.PruneFactor = d.PruneFactor
	}
	if c.NominalMinutes <= 0 {
		c.NominalMinutes = d.NominalMinutes
	}
	if c.NominalKm <= 0 {
		c.NominalKm = d.NominalKm
	}
	if c.PopulationBoost < 0 {
		c.PopulationBoost = 0
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	if c.Travel.Mode == "" {
		c.Travel.Mode = ports.TravelDriving
	}
	return c
}
