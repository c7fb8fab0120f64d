package telemetry

import (
	"strings"
	"time"
)

// Snapshot is the subset of host-game state the add-on reads. The overlay
// copies these fields out of the game runtime and posts them as-is; nothing
// here is validated beyond JSON decoding.
type Snapshot struct {
	Lat               float64 `json:"lat"`
	Lon               float64 `json:"lon"`
	GroundContact     bool    `json:"ground_contact"`
	AltitudeFt        float64 `json:"altitude_ft"`         // above sea level
	GroundElevationFt float64 `json:"ground_elevation_ft"` // terrain under the aircraft
	KIAS              float64 `json:"kias"`
	HeadingDeg        float64 `json:"heading_deg"`
	VerticalSpeedFpm  float64 `json:"vertical_speed_fpm,omitempty"`

	// Environment
	WindFromDeg  float64 `json:"wind_from_deg"`
	WindSpeedKts float64 `json:"wind_speed_kts"`
	TemperatureC float64 `json:"temperature_c"`
	Season       string  `json:"season,omitempty"`
	Night        bool    `json:"night"`
	Snow         bool    `json:"snow"`

	Aircraft string `json:"aircraft"` // aircraft record name, e.g. "Cessna 172"
	User     User   `json:"user"`

	ReceivedAt time.Time `json:"received_at"`
}

// User is the host's local user record
type User struct {
	ID        int64  `json:"id"` // 0 means not logged in
	Callsign  string `json:"callsign"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Created   string `json:"created"` // account creation date as the host reports it
}

// PilotProfile is derived from the user record on every call and never stored
type PilotProfile struct {
	Callsign      string `json:"callsign"`
	DisplayName   string `json:"display_name"`
	LicensedSince string `json:"licensed_since"`
}

// Guest holds the defaults used for anonymous players
type Guest struct {
	Callsign string
	Name     string
}

// Profile derives the pilot identity. Anonymous users (id 0) get the guest
// callsign and name, licensed today.
func (u User) Profile(guest Guest, now time.Time) PilotProfile {
	if u.ID == 0 {
		return PilotProfile{
			Callsign:      guest.Callsign,
			DisplayName:   guest.Name,
			LicensedSince: now.UTC().Format(time.DateOnly),
		}
	}

	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = guest.Name
	}
	return PilotProfile{
		Callsign:      u.Callsign,
		DisplayName:   name,
		LicensedSince: u.Created,
	}
}

// CallsignOr returns the radio callsign for banners
func (u User) CallsignOr(guest Guest) string {
	if u.ID == 0 || u.Callsign == "" {
		return guest.Callsign
	}
	return u.Callsign
}
