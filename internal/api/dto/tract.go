package dto

// Distances are null when the tract has no known value; JSON has no NaN.
type TractResponse struct {
	GEOID       string   `json:"geoid" yaml:"geoid"`
	Lat         float64  `json:"lat" yaml:"lat"`
	Lon         float64  `json:"lon" yaml:"lon"`
	DistanceMin *float64 `json:"distance_min" yaml:"distance_min"`
	HDistanceKm *float64 `json:"hdistance_km" yaml:"hdistance_km"`
	Population  float64  `json:"population" yaml:"population"`
}

type ListTractsResponse struct {
	Generation int             `json:"generation"`
	Total      int             `json:"total"`
	Tracts     []TractResponse `json:"tracts"`
}
