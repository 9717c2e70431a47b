package domain

// Represents the outcome of placing one new childcare center.
// A Placement is produced by a single step of the optimizer and is never
// modified afterwards.
type Placement struct {
	GEOID    string
	Location Coordinates
	// 0-based position of the chosen tract in the worst-served ordering.
	Rank int
	// GEOIDs whose nearest-center distance improved, placement tract first.
	Benefited []string
	ImpactKm  float64
	ImpactMin float64

	EstimatedImpactKm float64
	Queried           int
	Failed            int
}

// Represents the folded result of a multi-center run.
// The parallel slices keep the order in which centers were placed.
type RunSummary struct {
	RunID     string
	Optimized bool

	// 1-based ranks, for human-facing output.
	Ranks          []int
	ImpactsKm      []float64
	ImpactsMin     []float64
	Benefited      [][]string
	TotalImpactKm  float64
	TotalImpactMin float64

	Placements []Placement
}

func NewRunSummary(runID string, optimized bool) RunSummary {
	return RunSummary{
		RunID:      runID,
		Optimized:  optimized,
		Ranks:      []int{},
		ImpactsKm:  []float64{},
		ImpactsMin: []float64{},
		Benefited:  [][]string{},
		Placements: []Placement{},
	}
}

// Append folds one placement into the summary.
func (s *RunSummary) Append(p Placement) {
	s.Ranks = append(s.Ranks, p.Rank+1)
	s.ImpactsKm = append(s.ImpactsKm, p.ImpactKm)
	s.ImpactsMin = append(s.ImpactsMin, p.ImpactMin)
	s.Benefited = append(s.Benefited, append([]string(nil), p.Benefited...))
	s.TotalImpactKm += p.ImpactKm
	s.TotalImpactMin += p.ImpactMin
	s.Placements = append(s.Placements, p)
}

func (s RunSummary) Len() int { return len(s.Placements) }
