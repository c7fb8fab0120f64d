package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	EarthRadiusKm = 6371.0  // Mean Earth radius used for great-circle distances
	KmPerNM       = 1.852   // Kilometres per nautical mile
	FeetPerMeter  = 3.28084 // Feet per metre

	// GroundClearanceFt is subtracted from the sea-level altitude when deriving
	// height above ground, so an aircraft sitting on its gear reads zero.
	GroundClearanceFt = 50.0
)

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// HaversineKm returns the great-circle distance in kilometres between two
// points given in decimal degrees.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// KmToNM converts kilometres to nautical miles
func KmToNM(km float64) float64 {
	return km / KmPerNM
}

// InitialBearing returns the true course in degrees [0, 360) from point 1 to point 2
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRad(lat1)
	phi2 := toRad(lat2)
	dLon := toRad(lon2 - lon1)

	y := math.Sin(dLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)
	return NormalizeHeading(toDeg(math.Atan2(y, x)))
}

// NormalizeHeading wraps a heading into [0, 360)
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// GroundAltitudeFt returns the height above ground in feet, floored at zero
func GroundAltitudeFt(seaAltitudeFt, groundElevationFt float64) float64 {
	return math.Max(seaAltitudeFt-groundElevationFt-GroundClearanceFt, 0)
}

// ------------------------------------------------------------------------------------------------
// WIND
// ------------------------------------------------------------------------------------------------

// Vector2D represents a 2D vector (magnitude, direction)
type Vector2D struct {
	X float64 // East component
	Y float64 // North component
}

// HeadingToVector converts a heading (degrees) and magnitude to X/Y components
func HeadingToVector(headingDeg float64, magnitude float64) Vector2D {
	rad := (90 - headingDeg) * math.Pi / 180 // Convert compass heading to math angle
	return Vector2D{
		X: magnitude * math.Cos(rad),
		Y: magnitude * math.Sin(rad),
	}
}

// RelativeWind describes the wind as felt by an aircraft on a given heading
type RelativeWind struct {
	// AngleDeg is the direction the wind comes from, relative to the nose,
	// in (-180, 180]. Positive is from the right.
	AngleDeg float64
	// HeadwindKts is positive for a headwind and negative for a tailwind
	HeadwindKts float64
	// CrosswindKts is positive when the wind comes from the right
	CrosswindKts float64
}

// ComputeRelativeWind resolves a wind (direction it blows FROM, speed in knots)
// against the aircraft heading.
func ComputeRelativeWind(headingDeg, windFromDeg, windSpeedKts float64) RelativeWind {
	angle := NormalizeHeading(windFromDeg - headingDeg)
	if angle > 180 {
		angle -= 360
	}

	// Project the wind onto the aircraft axes. The wind vector points
	// where the air comes from, so a wind from the nose is a headwind.
	wind := HeadingToVector(windFromDeg, windSpeedKts)
	nose := HeadingToVector(headingDeg, 1)
	right := HeadingToVector(headingDeg+90, 1)

	return RelativeWind{
		AngleDeg:     angle,
		HeadwindKts:  wind.X*nose.X + wind.Y*nose.Y,
		CrosswindKts: wind.X*right.X + wind.Y*right.Y,
	}
}

// ClockPosition converts a relative angle into the "o'clock" phrasing pilots
// use (12 is the nose, 3 the right wing).
func ClockPosition(relativeDeg float64) int {
	h := int(math.Round(NormalizeHeading(relativeDeg)/30)) % 12
	if h == 0 {
		return 12
	}
	return h
}

// CalculateMagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt / FeetPerMeter

	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Return 0 for safety if calculation fails
		return 0.0
	}

	return mag.D()
}

// TrueToMagnetic converts a true heading to a magnetic heading using the declination
func TrueToMagnetic(trueHeading, declination float64) float64 {
	return NormalizeHeading(trueHeading - declination)
}
