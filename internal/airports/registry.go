package airports

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/yegors/geofs-atc/internal/physics"
)

var (
	// ErrUnknownFrequency is returned when a code is not in the registry
	ErrUnknownFrequency = errors.New("unknown frequency")
	// ErrEmptyRegistry is returned by Nearest when there is nothing to scan
	ErrEmptyRegistry = errors.New("airport registry is empty")
)

// Airport is one entry of the static registry
type Airport struct {
	Code        string  `json:"code"`
	Name        string  `json:"name,omitempty"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	ElevationFt float64 `json:"elevation_ft"`
}

// DisplayName renders "Name (CODE)", or just the code when no name is known
func (a Airport) DisplayName() string {
	if a.Name == "" {
		return a.Code
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Code)
}

// Fix is the locator result: an airport and where it sits relative to the aircraft
type Fix struct {
	Airport    Airport `json:"airport"`
	DistanceKm float64 `json:"distance_km"`
	BearingDeg float64 `json:"bearing_deg"` // from the aircraft to the airport, true
}

// Code is a shorthand for Fix.Airport.Code
func (f Fix) Code() string { return f.Airport.Code }

// Registry is a read-only, insertion-ordered set of airports. Safe for
// concurrent use because nothing mutates it after construction.
type Registry struct {
	airports []Airport
	index    map[string]int
}

// NewRegistry builds a registry from records in the given order. Duplicate
// codes keep their first position and take the later record's values.
func NewRegistry(records []Airport) *Registry {
	r := &Registry{
		airports: make([]Airport, 0, len(records)),
		index:    make(map[string]int, len(records)),
	}
	for _, a := range records {
		a.Code = NormalizeCode(a.Code)
		if a.Code == "" {
			continue
		}
		if i, ok := r.index[a.Code]; ok {
			r.airports[i] = a
			continue
		}
		r.index[a.Code] = len(r.airports)
		r.airports = append(r.airports, a)
	}
	return r
}

// NormalizeCode trims and upper-cases user input before lookups
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Len returns the number of airports
func (r *Registry) Len() int { return len(r.airports) }

// All returns a copy of the airports in registry order
func (r *Registry) All() []Airport {
	out := make([]Airport, len(r.airports))
	copy(out, r.airports)
	return out
}

// Lookup returns the airport for a (case-insensitive) code
func (r *Registry) Lookup(code string) (Airport, error) {
	i, ok := r.index[NormalizeCode(code)]
	if !ok {
		return Airport{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, code)
	}
	return r.airports[i], nil
}

// Nearest scans the registry in order and returns the closest airport.
// The comparison is strict so the first of several equidistant airports wins.
func (r *Registry) Nearest(lat, lon float64) (Fix, error) {
	if len(r.airports) == 0 {
		return Fix{}, ErrEmptyRegistry
	}

	best := -1
	bestDist := 0.0
	for i, a := range r.airports {
		d := physics.HaversineKm(lat, lon, a.Lat, a.Lon)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}

	a := r.airports[best]
	return Fix{
		Airport:    a,
		DistanceKm: bestDist,
		BearingDeg: physics.InitialBearing(lat, lon, a.Lat, a.Lon),
	}, nil
}

// Fix reports the distance to a specific airport, nearest or not
func (r *Registry) Fix(code string, lat, lon float64) (Fix, error) {
	a, err := r.Lookup(code)
	if err != nil {
		return Fix{}, err
	}
	return Fix{
		Airport:    a,
		DistanceKm: physics.HaversineKm(lat, lon, a.Lat, a.Lon),
		BearingDeg: physics.InitialBearing(lat, lon, a.Lat, a.Lon),
	}, nil
}

// LoadOptions filters the CSV while loading
type LoadOptions struct {
	Types    []string // keep only these OurAirports types (empty = all)
	ICAOOnly bool     // keep only four-letter alphabetic idents
}

// LoadFile reads an OurAirports CSV and an optional metadata JSON
func LoadFile(csvPath, metadataPath string, opts LoadOptions) (*Registry, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open airports db: %w", err)
	}
	defer f.Close()

	records, err := ParseCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", csvPath, err)
	}

	if metadataPath != "" {
		mf, err := os.Open(metadataPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open airport metadata: %w", err)
		}
		defer mf.Close()

		meta, err := ParseMetadata(mf)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", metadataPath, err)
		}
		ApplyMetadata(records, meta)
	}

	return NewRegistry(records), nil
}

// ParseCSV reads OurAirports rows. Columns are located by header name so
// trimmed exports with fewer columns still load.
func ParseCSV(r io.Reader, opts LoadOptions) ([]Airport, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"ident", "latitude_deg", "longitude_deg"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	keepType := make(map[string]bool, len(opts.Types))
	for _, t := range opts.Types {
		keepType[t] = true
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []Airport
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		code := NormalizeCode(field(rec, "ident"))
		if code == "" {
			continue
		}
		if opts.ICAOOnly && !isICAO(code) {
			continue
		}
		if len(keepType) > 0 && !keepType[field(rec, "type")] {
			continue
		}

		lat, err := strconv.ParseFloat(field(rec, "latitude_deg"), 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(field(rec, "longitude_deg"), 64)
		if err != nil {
			continue
		}
		// Elevation might be empty
		elev, _ := strconv.ParseFloat(field(rec, "elevation_ft"), 64)

		out = append(out, Airport{
			Code:        code,
			Name:        field(rec, "name"),
			Lat:         lat,
			Lon:         lon,
			ElevationFt: elev,
		})
	}
	return out, nil
}

// Metadata maps ICAO codes to extra airport details
type Metadata map[string]struct {
	Name string `json:"name"`
}

// ParseMetadata decodes a {"KJFK": {"name": "..."}} document
func ParseMetadata(r io.Reader) (Metadata, error) {
	var m Metadata
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// ApplyMetadata overrides record names in place
func ApplyMetadata(records []Airport, meta Metadata) {
	for i := range records {
		if m, ok := meta[NormalizeCode(records[i].Code)]; ok && m.Name != "" {
			records[i].Name = m.Name
		}
	}
}

func isICAO(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
