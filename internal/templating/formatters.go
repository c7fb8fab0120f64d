package templating

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/yegors/geofs-atc/internal/physics"
)

// BuildIntroView formats the controller introduction data
func BuildIntroView(d IntroData) IntroView {
	return IntroView{
		ControllerName:   d.Controller.FullName(),
		ControllerAge:    d.Controller.Age,
		ControllerGender: d.Controller.Gender,
		AirportName:      d.Airport.DisplayName(),
		AirportLat:       formatCoord(d.Airport.Lat),
		AirportLon:       formatCoord(d.Airport.Lon),
		PilotName:        d.Pilot.DisplayName,
		PilotCallsign:    d.Pilot.Callsign,
		LicensedSince:    d.Pilot.LicensedSince,
	}
}

// BuildUpdateView formats a telemetry snapshot for the situational update
func BuildUpdateView(d UpdateData) UpdateView {
	s := d.Snapshot
	now := d.Time
	if now.IsZero() {
		now = time.Now()
	}

	v := UpdateView{
		Aircraft:    s.Aircraft,
		Lat:         formatCoord(s.Lat),
		Lon:         formatCoord(s.Lon),
		OnGround:    s.GroundContact,
		Distance:    FormatDistance(d.Fix.DistanceKm, s.GroundContact),
		AltitudeMSL: fmt.Sprintf("%.0f", s.AltitudeFt),
		AltitudeAGL: fmt.Sprintf("%.0f", physics.GroundAltitudeFt(s.AltitudeFt, s.GroundElevationFt)),
		Movement:    FormatMovement(s.GroundContact, s.KIAS, s.HeadingDeg),
		Wind:        FormatWind(s.HeadingDeg, s.WindFromDeg, s.WindSpeedKts),
		Temperature: fmt.Sprintf("%.0f°C", s.TemperatureC),
		Season:      s.Season,
		Snow:        s.Snow,
		Time:        now.UTC().Format("15:04") + " UTC",
	}

	if s.GroundContact {
		v.GroundPhrase = "on the ground"
	} else {
		v.GroundPhrase = "in the air"
	}

	if d.Fix.DistanceKm > 1 {
		// Fix bearing points from the aircraft to the airport
		v.Bearing = CompassPoint(physics.NormalizeHeading(d.Fix.BearingDeg+180)) + " of the airport"
	}

	if v.Season == "" {
		v.Season = SeasonFor(now, s.Lat)
	}
	if s.Night {
		v.DayNight = "night"
	} else {
		v.DayNight = "day"
	}

	if ap := d.Fix.Airport; ap.Code != "" {
		decl := physics.CalculateMagneticVariation(ap.Lat, ap.Lon, ap.ElevationFt, now)
		v.Variation = FormatVariation(decl)
		if !s.GroundContact {
			v.MagHeading = fmt.Sprintf("%03.0f", roundHeading(physics.TrueToMagnetic(s.HeadingDeg, decl)))
		}
	}
	v.Climb = FormatClimb(s.GroundContact, s.VerticalSpeedFpm)

	if d.METAR != nil {
		v.METAR = d.METAR.Summary()
	}

	return v
}

// FormatClimb describes vertical speed in the air. Anything under 100 ft/min
// counts as level flight.
func FormatClimb(onGround bool, fpm float64) string {
	switch {
	case onGround || math.Abs(fpm) < 100:
		return ""
	case fpm > 0:
		return fmt.Sprintf("climbing at %.0f ft/min", fpm)
	default:
		return fmt.Sprintf("descending at %.0f ft/min", -fpm)
	}
}

// FormatVariation renders a declination as whole degrees east or west
func FormatVariation(declination float64) string {
	deg := int(math.Round(math.Abs(declination)))
	switch {
	case deg == 0:
		return "0°"
	case declination > 0:
		return fmt.Sprintf("%d°E", deg)
	default:
		return fmt.Sprintf("%d°W", deg)
	}
}

// FormatDistance bands the distance to the airport. Within a kilometre the
// aircraft is "at" the airport on the ground and "above" it in the air.
func FormatDistance(km float64, onGround bool) string {
	switch {
	case km > 1:
		return fmt.Sprintf("%.1f km (%.1f nm) away from the airport", km, physics.KmToNM(km))
	case onGround:
		return "at the airport"
	default:
		return "above the airport"
	}
}

// FormatMovement bands speed: stationary or taxiing on the ground, flying otherwise
func FormatMovement(onGround bool, kias, heading float64) string {
	if onGround {
		if kias > 1 {
			return fmt.Sprintf("moving at %.0fkts", kias)
		}
		return "stationary"
	}
	return fmt.Sprintf("flying at %.0fkts, heading %03.0f", kias, roundHeading(heading))
}

// roundHeading rounds to a whole degree in [0, 360)
func roundHeading(h float64) float64 {
	h = physics.NormalizeHeading(math.Round(h))
	if h == 0 {
		return 0 // drops negative zero
	}
	return h
}

// FormatWind describes the wind both absolutely and relative to the aircraft
func FormatWind(heading, windFrom, speed float64) string {
	if speed < 1 {
		return "calm"
	}

	rw := physics.ComputeRelativeWind(heading, windFrom, speed)
	abs := fmt.Sprintf("from %03.0f at %.0fkts", roundHeading(windFrom), speed)

	var along string
	switch {
	case rw.HeadwindKts >= 1:
		along = fmt.Sprintf("%.0fkts headwind", rw.HeadwindKts)
	case rw.HeadwindKts <= -1:
		along = fmt.Sprintf("%.0fkts tailwind", -rw.HeadwindKts)
	}

	var cross string
	switch {
	case rw.CrosswindKts >= 1:
		cross = fmt.Sprintf("%.0fkts crosswind from the right", rw.CrosswindKts)
	case rw.CrosswindKts <= -1:
		cross = fmt.Sprintf("%.0fkts crosswind from the left", -rw.CrosswindKts)
	}

	rel := fmt.Sprintf("coming from the aircraft's %d o'clock", physics.ClockPosition(rw.AngleDeg))
	switch {
	case along != "" && cross != "":
		rel += ", " + along + " and " + cross
	case along != "":
		rel += ", " + along
	case cross != "":
		rel += ", " + cross
	}

	return abs + " (" + rel + ")"
}

var compassPoints = []string{"north", "north-east", "east", "south-east", "south", "south-west", "west", "north-west"}

// CompassPoint names the 8-wind direction for a bearing
func CompassPoint(bearing float64) string {
	i := int(math.Round(physics.NormalizeHeading(bearing)/45)) % 8
	return compassPoints[i]
}

// SeasonFor derives the meteorological season, flipped south of the equator
func SeasonFor(t time.Time, lat float64) string {
	seasons := [4]string{"winter", "spring", "summer", "autumn"}
	// Dec-Feb = 0, Mar-May = 1, Jun-Aug = 2, Sep-Nov = 3
	idx := (int(t.Month()) % 12) / 3
	if lat < 0 {
		idx = (idx + 2) % 4
	}
	return seasons[idx]
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
