package repositories

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"ece-placement-service/internal/domain"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

var requiredColumns = []string{"GEOID", "centroid_lat", "centroid_lon", "distance_min_imp", "hdistance_min"}

// tractRecord is one row of the tract CSV. Distances may be blank or "NaN".
type tractRecord struct {
	GEOID       string   `csv:"GEOID"`
	CentroidLat float64  `csv:"centroid_lat"`
	CentroidLon float64  `csv:"centroid_lon"`
	DistanceMin csvFloat `csv:"distance_min_imp"`
	HDistanceKm csvFloat `csv:"hdistance_min"`
	Population  csvFloat `csv:"population"`
}

// csvFloat reads blank, "NaN" and "nan" as NaN and writes NaN as "NaN".
type csvFloat float64

func (f *csvFloat) UnmarshalCSV(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || strings.EqualFold(s, "nan") {
		*f = csvFloat(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = csvFloat(v)
	return nil
}

func (f csvFloat) MarshalCSV() ([]byte, error) {
	if math.IsNaN(float64(f)) {
		return []byte("NaN"), nil
	}
	return []byte(strconv.FormatFloat(float64(f), 'f', -1, 64)), nil
}

// ReadTractsCSV parses tracts from r. Extra columns are ignored; a missing
// population column means zero population.
func ReadTractsCSV(r io.Reader) (*domain.TractTable, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, eris.New("read tracts csv: missing header")
		}
		return nil, eris.Wrap(err, "read tracts csv: header")
	}

	header := dec.Header()
	for _, col := range requiredColumns {
		if !slices.Contains(header, col) {
			return nil, eris.Errorf("read tracts csv: missing column %q", col)
		}
	}
	hasPopulation := slices.Contains(header, "population")

	var tracts []domain.Tract
	for {
		var rec tractRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "read tracts csv: row %d", len(tracts)+2)
		}

		pop := float64(rec.Population)
		if !hasPopulation || math.IsNaN(pop) {
			pop = 0
		}
		tracts = append(tracts, domain.Tract{
			GEOID:       rec.GEOID,
			Centroid:    domain.Coordinates{Lat: rec.CentroidLat, Lon: rec.CentroidLon},
			DistanceMin: float64(rec.DistanceMin),
			HDistanceKm: float64(rec.HDistanceKm),
			Population:  pop,
		})
	}

	table, err := domain.NewTractTable(tracts)
	if err != nil {
		return nil, eris.Wrap(err, "read tracts csv")
	}
	return table, nil
}

// WriteTractsCSV writes the table in the same layout ReadTractsCSV accepts.
func WriteTractsCSV(w io.Writer, table *domain.TractTable) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	records := make([]tractRecord, 0, table.Len())
	for _, t := range table.Tracts() {
		records = append(records, tractRecord{
			GEOID:       t.GEOID,
			CentroidLat: t.Centroid.Lat,
			CentroidLon: t.Centroid.Lon,
			DistanceMin: csvFloat(t.DistanceMin),
			HDistanceKm: csvFloat(t.HDistanceKm),
			Population:  csvFloat(t.Population),
		})
	}
	if len(records) == 0 {
		if err := enc.EncodeHeader(tractRecord{}); err != nil {
			return eris.Wrap(err, "write tracts csv: header")
		}
	} else if err := enc.Encode(records); err != nil {
		return eris.Wrap(err, "write tracts csv")
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "write tracts csv: flush")
}

// LoadTractsFile reads a tract CSV from disk.
func LoadTractsFile(path string) (*domain.TractTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "load tracts: open %q", path)
	}
	defer f.Close()

	return ReadTractsCSV(f)
}
