package domain

import (
	"math"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	ErrEmptyGEOID     = eris.New("tract GEOID must be non-empty")
	ErrDuplicateGEOID = eris.New("duplicate tract GEOID")
	ErrUnknownTract   = eris.New("unknown tract GEOID")
	ErrNonMonotonic   = eris.New("tract distance may not increase")
)

// Represents one census tract, the unit of analysis.
// Missing numeric values are NaN and are carried through unchanged.
type Tract struct {
	GEOID    string
	Centroid Coordinates
	// Real travel time to the nearest childcare center, in minutes (distance_min_imp).
	DistanceMin float64
	// Haversine distance to the nearest childcare center, in km (hdistance_min).
	HDistanceKm float64
	Population  float64
}

// HasDistance reports whether the real distance is known.
func (t Tract) HasDistance() bool { return !math.IsNaN(t.DistanceMin) }

// HasHDistance reports whether the haversine distance is known.
func (t Tract) HasHDistance() bool { return !math.IsNaN(t.HDistanceKm) }

// TractTable is one immutable generation of the tract collection.
//
// Every mutation produces a new generation; accessors return copies so that
// callers never alias the backing slice of an earlier or later generation.
type TractTable struct {
	tracts     []Tract
	index      map[string]int
	generation int
}

// NewTractTable builds generation zero from the given tracts.
func NewTractTable(tracts []Tract) (*TractTable, error) {
	own := make([]Tract, len(tracts))
	for i, t := range tracts {
		t.GEOID = strings.TrimSpace(t.GEOID)
		if t.GEOID == "" {
			return nil, eris.Wrapf(ErrEmptyGEOID, "new tract table: row %d", i+1)
		}
		own[i] = t
	}

	index, err := buildIndex(own)
	if err != nil {
		return nil, eris.Wrap(err, "new tract table")
	}

	return &TractTable{tracts: own, index: index}, nil
}

func buildIndex(tracts []Tract) (map[string]int, error) {
	index := make(map[string]int, len(tracts))
	for i, t := range tracts {
		if _, ok := index[t.GEOID]; ok {
			return nil, eris.Wrapf(ErrDuplicateGEOID, "GEOID %q", t.GEOID)
		}
		index[t.GEOID] = i
	}
	return index, nil
}

func (t *TractTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.tracts)
}

// At returns the tract at positional index i.
func (t *TractTable) At(i int) Tract { return t.tracts[i] }

// Tracts returns a copy of the tracts in positional order.
func (t *TractTable) Tracts() []Tract {
	if t == nil {
		return []Tract{}
	}
	return slices.Clone(t.tracts)
}

// Lookup returns the tract with the given GEOID and its positional index.
func (t *TractTable) Lookup(geoid string) (Tract, int, bool) {
	if t == nil {
		return Tract{}, -1, false
	}
	i, ok := t.index[geoid]
	if !ok {
		return Tract{}, -1, false
	}
	return t.tracts[i], i, true
}

// Generation counts how many times this table has been derived from the
// original load.
func (t *TractTable) Generation() int { return t.generation }

// SortedByDistance returns a new generation ordered by DistanceMin descending,
// with missing distances last. Ties keep their current relative order.
func (t *TractTable) SortedByDistance() *TractTable {
	sorted := slices.Clone(t.tracts)
	slices.SortStableFunc(sorted, func(a, b Tract) int {
		aMissing, bMissing := !a.HasDistance(), !b.HasDistance()
		switch {
		case aMissing && bMissing:
			return 0
		case aMissing:
			return 1
		case bMissing:
			return -1
		case a.DistanceMin > b.DistanceMin:
			return -1
		case a.DistanceMin < b.DistanceMin:
			return 1
		}
		return 0
	})

	// GEOIDs were unique already; rebuilding cannot fail.
	index, _ := buildIndex(sorted)
	return &TractTable{tracts: sorted, index: index, generation: t.generation + 1}
}

// Commit applies all updates at once and returns the next generation.
//
// Updates are matched by GEOID. A known distance may only shrink or stay the
// same; a missing distance may be filled in.
func (t *TractTable) Commit(updates []Tract) (*TractTable, error) {
	next := slices.Clone(t.tracts)
	for _, u := range updates {
		i, ok := t.index[u.GEOID]
		if !ok {
			return nil, eris.Wrapf(ErrUnknownTract, "commit tracts: GEOID %q", u.GEOID)
		}

		old := next[i]
		if increases(old.DistanceMin, u.DistanceMin) {
			return nil, eris.Wrapf(ErrNonMonotonic, "commit tracts: GEOID %q distance_min %v -> %v", u.GEOID, old.DistanceMin, u.DistanceMin)
		}
		if increases(old.HDistanceKm, u.HDistanceKm) {
			return nil, eris.Wrapf(ErrNonMonotonic, "commit tracts: GEOID %q hdistance_km %v -> %v", u.GEOID, old.HDistanceKm, u.HDistanceKm)
		}

		next[i] = u
	}

	return &TractTable{tracts: next, index: t.index, generation: t.generation + 1}, nil
}

func increases(old, updated float64) bool {
	if math.IsNaN(old) {
		return false
	}
	// Losing a known value counts as an increase.
	return math.IsNaN(updated) || updated > old
}
