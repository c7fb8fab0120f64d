package weather

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the weather client configuration
type Config struct {
	APIBaseURL            string
	RequestTimeoutSeconds int
	MaxRetries            int
	CacheExpiryMinutes    int
	CacheSize             int
}

// DefaultConfig returns the default weather configuration
func DefaultConfig() Config {
	return Config{
		APIBaseURL:            "https://aviationweather.gov/api/data",
		RequestTimeoutSeconds: 10,
		MaxRetries:            2,
		CacheExpiryMinutes:    15,
		CacheSize:             64,
	}
}

// METAR is one observation from the aviationweather.gov JSON API.
// Wind direction and visibility are polymorphic there ("VRB", "10+").
type METAR struct {
	ICAO       string   `json:"icaoId"`
	ReportTime string   `json:"reportTime"`
	Temp       *float64 `json:"temp"`
	Dewpoint   *float64 `json:"dewp"`
	WindDir    any      `json:"wdir"`
	WindSpeed  *float64 `json:"wspd"`
	WindGust   *float64 `json:"wgst"`
	Visibility any      `json:"visib"`
	Altimeter  *float64 `json:"altim"`
	Raw        string   `json:"rawOb"`
	Name       string   `json:"name"`
	FlightCat  string   `json:"fltCat"`

	FetchedAt time.Time `json:"-"`
}

// WindDirection returns the wind direction as text ("220" or "VRB")
func (m *METAR) WindDirection() string {
	switch v := m.WindDir.(type) {
	case float64:
		return strconv.Itoa(int(v))
	case string:
		return v
	default:
		return ""
	}
}

// VisibilityText returns the reported visibility in statute miles as text
func (m *METAR) VisibilityText() string {
	switch v := m.Visibility.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return ""
	}
}

// Summary renders a short plain-text description for the controller prompt
func (m *METAR) Summary() string {
	if m.Raw != "" {
		return m.Raw
	}
	s := m.ICAO
	if dir := m.WindDirection(); dir != "" && m.WindSpeed != nil {
		s += fmt.Sprintf(" wind %s at %.0fkt", dir, *m.WindSpeed)
	}
	if t, ok := m.Temperature(); ok {
		s += fmt.Sprintf(" temp %.0fC", t)
	}
	return s
}
