package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKmSymmetricAndZero(t *testing.T) {
	points := [][2]float64{
		{40.6413, -73.7781},
		{40.7769, -73.8740},
		{-33.9461, 151.1772},
		{51.4775, -0.4614},
		{0, 179.9},
		{0, -179.9},
	}

	for _, a := range points {
		assert.Equal(t, 0.0, HaversineKm(a[0], a[1], a[0], a[1]))
		for _, b := range points {
			ab := HaversineKm(a[0], a[1], b[0], b[1])
			ba := HaversineKm(b[0], b[1], a[0], a[1])
			assert.InDelta(t, ab, ba, 1e-9)
		}
	}
}

func TestHaversineKmKnownDistance(t *testing.T) {
	// JFK to LHR is roughly 5540 km
	d := HaversineKm(40.6413, -73.7781, 51.4700, -0.4543)
	assert.InDelta(t, 5540, d, 15)

	// Across the antimeridian stays short
	assert.Less(t, HaversineKm(0, 179.9, 0, -179.9), 25.0)
}

func TestInitialBearing(t *testing.T) {
	assert.InDelta(t, 0, InitialBearing(0, 0, 1, 0), 1e-9)
	assert.InDelta(t, 90, InitialBearing(0, 0, 0, 1), 1e-9)
	assert.InDelta(t, 180, InitialBearing(1, 0, 0, 0), 1e-9)
	assert.InDelta(t, 270, InitialBearing(0, 1, 0, 0), 1e-9)
}

func TestGroundAltitudeFtNeverNegative(t *testing.T) {
	assert.Equal(t, 0.0, GroundAltitudeFt(1000, 960))
	assert.Equal(t, 0.0, GroundAltitudeFt(0, 500))
	assert.Equal(t, 450.0, GroundAltitudeFt(1500, 1000))
}

func TestComputeRelativeWind(t *testing.T) {
	tests := []struct {
		name      string
		heading   float64
		windFrom  float64
		speed     float64
		angle     float64
		headwind  float64
		crosswind float64
	}{
		{"straight headwind", 90, 90, 20, 0, 20, 0},
		{"straight tailwind", 90, 270, 20, 180, -20, 0},
		{"from the right", 0, 90, 10, 90, 0, 10},
		{"from the left", 0, 270, 10, -90, 0, -10},
		{"wraps north", 350, 10, 10, 20, 9.397, 3.420},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := ComputeRelativeWind(tt.heading, tt.windFrom, tt.speed)
			assert.InDelta(t, tt.angle, rw.AngleDeg, 1e-6)
			assert.InDelta(t, tt.headwind, rw.HeadwindKts, 1e-3)
			assert.InDelta(t, tt.crosswind, rw.CrosswindKts, 1e-3)
		})
	}
}

func TestClockPosition(t *testing.T) {
	assert.Equal(t, 12, ClockPosition(0))
	assert.Equal(t, 3, ClockPosition(90))
	assert.Equal(t, 6, ClockPosition(180))
	assert.Equal(t, 9, ClockPosition(-90))
	assert.Equal(t, 12, ClockPosition(350))
}

func TestNormalizeHeading(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeHeading(360))
	assert.Equal(t, 350.0, NormalizeHeading(-10))
	assert.Equal(t, 10.0, NormalizeHeading(730))
}

func TestTrueToMagnetic(t *testing.T) {
	// 13 degrees west declination: magnetic reads higher than true
	assert.InDelta(t, 103, TrueToMagnetic(90, -13), 1e-9)
	assert.InDelta(t, 355, TrueToMagnetic(5, 10), 1e-9)
}
