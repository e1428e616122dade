package geo

import "math"

// Bounds is a latitude/longitude bounding box
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// EmptyBounds returns bounds that any call to Extend will overwrite
func EmptyBounds() Bounds {
	return Bounds{
		MinLat: math.Inf(1),
		MaxLat: math.Inf(-1),
		MinLon: math.Inf(1),
		MaxLon: math.Inf(-1),
	}
}

func (b *Bounds) Extend(lat, lon float64) {
	b.MinLat = math.Min(b.MinLat, lat)
	b.MaxLat = math.Max(b.MaxLat, lat)
	b.MinLon = math.Min(b.MinLon, lon)
	b.MaxLon = math.Max(b.MaxLon, lon)
}

func (b Bounds) IsEmpty() bool {
	return b.MinLat > b.MaxLat || b.MinLon > b.MaxLon
}

func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

func (b Bounds) Center() (float64, float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// BoundsOf derives the bounding box of a set of [lat, lon] points
func BoundsOf(points [][2]float64) Bounds {
	bounds := EmptyBounds()
	for _, point := range points {
		bounds.Extend(point[0], point[1])
	}
	return bounds
}
