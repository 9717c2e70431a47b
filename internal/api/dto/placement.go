package dto

import (
	"math"

	"ece-placement-service/internal/domain"
)

type PlacementRequest struct {
	Centers   int  `json:"centers"`
	Optimized bool `json:"optimized"`
	Persist   bool `json:"persist"`
}

type PlacementResponse struct {
	GEOID             string   `json:"geoid" yaml:"geoid"`
	Lat               float64  `json:"lat" yaml:"lat"`
	Lon               float64  `json:"lon" yaml:"lon"`
	Rank              int      `json:"rank" yaml:"rank"`
	ImpactKm          float64  `json:"impact_km" yaml:"impact_km"`
	ImpactMin         float64  `json:"impact_min" yaml:"impact_min"`
	EstimatedImpactKm float64  `json:"estimated_impact_km" yaml:"estimated_impact_km"`
	Benefited         []string `json:"benefited" yaml:"benefited"`
	Queried           int      `json:"queried" yaml:"queried"`
	Failed            int      `json:"failed" yaml:"failed"`
}

// RunSummaryResponse is shared by the HTTP API and the CLI report.
// Ranks are 1-based.
type RunSummaryResponse struct {
	RunID          string              `json:"run_id" yaml:"run_id"`
	Optimized      bool                `json:"optimized" yaml:"optimized"`
	Persisted      bool                `json:"persisted" yaml:"persisted"`
	Ranks          []int               `json:"ranks" yaml:"ranks"`
	ImpactsKm      []float64           `json:"impacts_km" yaml:"impacts_km"`
	ImpactsMin     []float64           `json:"impacts_min" yaml:"impacts_min"`
	Benefited      [][]string          `json:"benefited" yaml:"benefited"`
	TotalImpactKm  float64             `json:"total_impact_km" yaml:"total_impact_km"`
	TotalImpactMin float64             `json:"total_impact_min" yaml:"total_impact_min"`
	Placements     []PlacementResponse `json:"placements" yaml:"placements"`
}

func NewRunSummaryResponse(s domain.RunSummary, persisted bool) RunSummaryResponse {
	res := RunSummaryResponse{
		RunID:          s.RunID,
		Optimized:      s.Optimized,
		Persisted:      persisted,
		Ranks:          s.Ranks,
		ImpactsKm:      s.ImpactsKm,
		ImpactsMin:     s.ImpactsMin,
		Benefited:      s.Benefited,
		TotalImpactKm:  s.TotalImpactKm,
		TotalImpactMin: s.TotalImpactMin,
		Placements:     make([]PlacementResponse, 0, len(s.Placements)),
	}
	for _, p := range s.Placements {
		res.Placements = append(res.Placements, PlacementResponse{
			GEOID:             p.GEOID,
			Lat:               p.Location.Lat,
			Lon:               p.Location.Lon,
			Rank:              p.Rank + 1,
			ImpactKm:          p.ImpactKm,
			ImpactMin:         p.ImpactMin,
			EstimatedImpactKm: p.EstimatedImpactKm,
			Benefited:         p.Benefited,
			Queried:           p.Queried,
			Failed:            p.Failed,
		})
	}
	return res
}

func NewTractResponse(t domain.Tract) TractResponse {
	return TractResponse{
		GEOID:       t.GEOID,
		Lat:         t.Centroid.Lat,
		Lon:         t.Centroid.Lon,
		DistanceMin: finite(t.DistanceMin),
		HDistanceKm: finite(t.HDistanceKm),
		Population:  t.Population,
	}
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
