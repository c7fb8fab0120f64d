package templating

import (
	"time"

	"github.com/yegors/geofs-atc/internal/airports"
	"github.com/yegors/geofs-atc/internal/controllers"
	"github.com/yegors/geofs-atc/internal/telemetry"
	"github.com/yegors/geofs-atc/internal/weather"
)

// Template names
const (
	IntroTemplate  = "intro.tmpl"
	UpdateTemplate = "update.tmpl"
)

// IntroData is the raw input for the controller introduction
type IntroData struct {
	Controller controllers.Persona
	Airport    airports.Airport
	Pilot      telemetry.PilotProfile
}

// UpdateData is the raw input for a situational update
type UpdateData struct {
	Snapshot telemetry.Snapshot
	Fix      airports.Fix
	METAR    *weather.METAR // nil when unavailable or disabled
	Time     time.Time
}

// IntroView is what intro.tmpl sees
type IntroView struct {
	ControllerName   string
	ControllerAge    int
	ControllerGender string
	AirportName      string
	AirportLat       string
	AirportLon       string
	PilotName        string
	PilotCallsign    string
	LicensedSince    string
}

// UpdateView is what update.tmpl sees
type UpdateView struct {
	Aircraft     string
	Lat          string
	Lon          string
	OnGround     bool
	GroundPhrase string // "on the ground" / "in the air"
	Distance     string // "12.3 km away from the airport" / "at the airport" / "above the airport"
	Bearing      string // "north-east of the airport"
	AltitudeMSL  string
	AltitudeAGL  string
	Movement     string // "stationary" / "moving at 12kts" / "flying at 120kts, heading 270"
	Wind         string // absolute and relative
	Variation    string // magnetic variation at the airport, "13°E"
	MagHeading   string // magnetic heading in the air, "257"
	Climb        string // "climbing at 800 ft/min", empty when level or on the ground
	Temperature  string
	Season       string
	DayNight     string
	Snow         bool
	METAR        string
	Time         string
}
