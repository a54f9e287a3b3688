package geo

// Geohash encodes a coordinate as a base32 cell identifier. At
// precision 6 a cell is roughly 1.2km x 0.6km; precision 7 drops to
// ~150m squares.
func Geohash(lat, lon float64, precision int) string {
	const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

	minLat, maxLat := -90.0, 90.0
	minLon, maxLon := -180.0, 180.0

	var hash []byte
	var bit int
	var ch byte
	// bits alternate between longitude and latitude halvings
	even := true

	for len(hash) < precision {
		if even {
			mid := (minLon + maxLon) / 2
			if lon >= mid {
				ch |= 1 << (4 - bit)
				minLon = mid
			} else {
				maxLon = mid
			}
		} else {
			mid := (minLat + maxLat) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				minLat = mid
			} else {
				maxLat = mid
			}
		}
		even = !even

		bit++
		if bit == 5 {
			hash = append(hash, base32[ch])
			bit = 0
			ch = 0
		}
	}

	return string(hash)
}

// Cell returns the ~1km geohash cell for a location. Used for coarse
// bucketing in logs so exact coordinates never appear there.
func Cell(lat, lon float64) string {
	return Geohash(lat, lon, 6)
}
