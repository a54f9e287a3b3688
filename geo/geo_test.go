package geo

import (
	"math"
	"testing"
)

func TestDistanceSymmetric(t *testing.T) {
	points := [][4]float64{
		{37.7749, -122.4194, 37.7750, -122.4195},
		{51.5074, -0.1278, 48.8566, 2.3522},
		{-33.8688, 151.2093, 35.6762, 139.6503},
		{0, 0, 0, 180},
		{90, 0, -90, 0},
	}

	for _, p := range points {
		ab := DistanceKm(p[0], p[1], p[2], p[3])
		ba := DistanceKm(p[2], p[3], p[0], p[1])
		if ab < 0 {
			t.Errorf("DistanceKm(%v) = %v, want >= 0", p, ab)
		}
		diff := math.Abs(ab - ba)
		if ab > 0 && diff/ab > 1e-9 {
			t.Errorf("DistanceKm not symmetric for %v: %v vs %v", p, ab, ba)
		}
	}
}

func TestDistanceIdenticalPoints(t *testing.T) {
	if d := DistanceKm(51.5074, -0.1278, 51.5074, -0.1278); d != 0 {
		t.Errorf("DistanceKm(A, A) = %v, want 0", d)
	}
	// antipodal-ish points must not produce NaN from rounding
	if d := DistanceKm(0, 0, 0, 180); math.IsNaN(d) {
		t.Error("DistanceKm produced NaN for antipodal points")
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// one block apart in San Francisco
	d := DistanceKm(37.7749, -122.4194, 37.7750, -122.4195)
	if d < 0.01 || d > 0.02 {
		t.Errorf("DistanceKm = %v, want ~0.013", d)
	}

	// London to Paris, roughly 344km
	d = DistanceKm(51.5074, -0.1278, 48.8566, 2.3522)
	if d < 330 || d > 350 {
		t.Errorf("London-Paris = %v, want ~344", d)
	}
}

func TestBearingRange(t *testing.T) {
	points := [][4]float64{
		{0, 0, 10, 0},
		{0, 0, -10, 0},
		{0, 0, 0, 10},
		{0, 0, 0, -10},
		{51.5, -0.1, 48.8, 2.3},
		{37.7, -122.4, 37.8, -122.4},
	}
	for _, p := range points {
		b := BearingDegrees(p[0], p[1], p[2], p[3])
		if b < 0 || b >= 360 {
			t.Errorf("BearingDegrees(%v) = %v, want [0, 360)", p, b)
		}
	}
}

func TestBearingCardinal(t *testing.T) {
	// due north
	if b := BearingDegrees(0, 0, 10, 0); math.Abs(b) > 1e-9 {
		t.Errorf("north bearing = %v, want 0", b)
	}
	// due east
	if b := BearingDegrees(0, 0, 0, 10); math.Abs(b-90) > 1e-9 {
		t.Errorf("east bearing = %v, want 90", b)
	}
	// due south
	if b := BearingDegrees(0, 0, -10, 0); math.Abs(b-180) > 1e-9 {
		t.Errorf("south bearing = %v, want 180", b)
	}
}

func TestBearingToCompass(t *testing.T) {
	tests := []struct {
		bearing float64
		want    string
	}{
		{0, "N"},
		{11, "N"},
		{12, "NNE"},
		{22.5, "NNE"},
		{45, "NE"},
		{90, "E"},
		{135, "SE"},
		{180, "S"},
		{225, "SW"},
		{270, "W"},
		{315, "NW"},
		{348.75, "N"},
		{359.9, "N"},
		{360, "N"},
	}
	for _, tt := range tests {
		if got := BearingToCompass(tt.bearing); got != tt.want {
			t.Errorf("BearingToCompass(%v) = %q, want %q", tt.bearing, got, tt.want)
		}
	}
}

func TestIsValidCoordinate(t *testing.T) {
	valid := [][2]float64{
		{0, 0}, {90, 180}, {-90, -180}, {51.5, -0.1},
	}
	for _, p := range valid {
		if !IsValidCoordinate(p[0], p[1]) {
			t.Errorf("IsValidCoordinate(%v, %v) = false, want true", p[0], p[1])
		}
	}

	invalid := [][2]float64{
		{91, 0}, {-91, 0}, {0, 181}, {0, -181}, {0, 200},
		{math.NaN(), 0}, {0, math.NaN()}, {math.Inf(1), 0}, {0, math.Inf(-1)},
	}
	for _, p := range invalid {
		if IsValidCoordinate(p[0], p[1]) {
			t.Errorf("IsValidCoordinate(%v, %v) = true, want false", p[0], p[1])
		}
	}
}

func TestGeohash(t *testing.T) {
	// known value: London
	if h := Geohash(51.5074, -0.1278, 6); h != "gcpvj0" {
		t.Errorf("Geohash(London, 6) = %q, want gcpvj0", h)
	}
	// nearby points share a coarse cell
	if Cell(37.7749, -122.4194) != Cell(37.7750, -122.4195) {
		t.Error("adjacent points should share a precision-6 cell")
	}
}
