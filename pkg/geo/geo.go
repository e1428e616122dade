package geo

import "math"

const EarthRadiusMetres = 6371000.0

// MetresPerDegreeLat is the length of one degree of latitude on the haversine sphere.
// Using the same radius as Haversine keeps degree windows conservative.
const MetresPerDegreeLat = EarthRadiusMetres * math.Pi / 180

// minCosLatitude stops longitude conversions blowing up near the poles
const minCosLatitude = 1e-6

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// Haversine returns the great-circle distance in metres between two coordinates
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	deltaLat := toRadians(lat2 - lat1)
	deltaLon := toRadians(lon2 - lon1)

	sinLat := math.Sin(deltaLat / 2)
	sinLon := math.Sin(deltaLon / 2)

	a := sinLat*sinLat + math.Cos(lat1Rad)*math.Cos(lat2Rad)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMetres * c
}

func Clamp(value, lower, upper float64) float64 {
	if value < lower {
		return lower
	}
	if value > upper {
		return upper
	}
	return value
}

// Lerp is exact at both ends, t=0 gives a and t=1 gives b
func Lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// Smoothstep eases p (clamped to [0,1]) with 3p^2 - 2p^3
func Smoothstep(p float64) float64 {
	p = Clamp(p, 0, 1)
	return p * p * (3 - 2*p)
}

// NormalizeBearing wraps a bearing into [0, 360)
func NormalizeBearing(bearing float64) float64 {
	bearing = math.Mod(bearing, 360)
	if bearing < 0 {
		bearing += 360
	}
	if bearing >= 360 {
		bearing = 0
	}
	return bearing
}

// LerpAngle interpolates between two bearings along the shortest arc
func LerpAngle(a, b, t float64) float64 {
	a = NormalizeBearing(a)
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return NormalizeBearing(b)
	}

	diff := NormalizeBearing(b) - a

	if diff > 180 {
		diff -= 360
	} else if diff < -180 {
		diff += 360
	}

	return NormalizeBearing(a + diff*t)
}

// BearingDifference calculates the smallest angle between two bearings
func BearingDifference(b1, b2 float64) float64 {
	diff := math.Abs(NormalizeBearing(b1) - NormalizeBearing(b2))
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

func MetresToLatDegrees(metres float64) float64 {
	return metres / MetresPerDegreeLat
}

// MetresToLonDegrees converts a distance to degrees of longitude at the given latitude
func MetresToLonDegrees(metres float64, latitude float64) float64 {
	cosLat := math.Cos(toRadians(latitude))
	if cosLat < minCosLatitude {
		cosLat = minCosLatitude
	}
	return metres / (MetresPerDegreeLat * cosLat)
}
