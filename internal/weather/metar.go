package weather

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reTGroup   = regexp.MustCompile(`T([01])(\d{3})`)
	reTempDewp = regexp.MustCompile(`\s(M)?(\d{2})/(?:M)?\d{2}`)
)

// Temperature returns the observed temperature in Celsius, preferring the
// decoded field and falling back to the raw report.
func (m *METAR) Temperature() (float64, bool) {
	if m.Temp != nil {
		return *m.Temp, true
	}
	return ParseTemperature(m.Raw)
}

// ParseTemperature extracts the temperature in Celsius from a raw METAR string.
// Standard Format: "22/M05" (22°C, Dewpoint -5°C) or "M02/M10" (-2°C / -10°C)
// Also supports RMK T-group: "T00561050" (Precise Temp: 5.6°C)
func ParseTemperature(raw string) (float64, bool) {
	// T s ttt s ddd (s=sign 0=pos,1=neg; ttt=temp*10)
	if strings.Contains(raw, "RMK") {
		if matches := reTGroup.FindStringSubmatch(raw); len(matches) == 3 {
			if val, err := strconv.ParseFloat(matches[2], 64); err == nil {
				val = val / 10.0
				if matches[1] == "1" {
					val = -val
				}
				return val, true
			}
		}
	}

	if matches := reTempDewp.FindStringSubmatch(raw); len(matches) == 3 {
		if val, err := strconv.ParseFloat(matches[2], 64); err == nil {
			if matches[1] == "M" {
				val = -val
			}
			return val, true
		}
	}

	return 0, false
}
