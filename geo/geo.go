// Package geo provides great-circle math for proximity checks.
package geo

import "math"

// EarthRadiusKm is the mean radius used for haversine distances.
const EarthRadiusKm = 6371

var compassLabels = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

func toRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// DistanceKm calculates the haversine distance between two points in km.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// clamp against floating error before the inverse trig
	if a < 0 {
		a = 0
	} else if a > 1 {
		a = 1
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// BearingDegrees calculates the initial bearing from point 1 to point 2
// in degrees, normalized to [0, 360).
func BearingDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	dLon := toRad(lon2 - lon1)
	y := math.Sin(dLon) * math.Cos(toRad(lat2))
	x := math.Cos(toRad(lat1))*math.Sin(toRad(lat2)) -
		math.Sin(toRad(lat1))*math.Cos(toRad(lat2))*math.Cos(dLon)
	bearing := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// BearingToCompass converts a bearing into one of 16 compass labels.
// Sectors are 22.5 degrees wide with nearest rounding, so 360 wraps to N.
func BearingToCompass(bearing float64) string {
	index := int(math.Round(bearing/22.5)) % 16
	if index < 0 {
		index += 16
	}
	return compassLabels[index]
}

// IsValidCoordinate reports whether lat/lon are finite and in range.
func IsValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
