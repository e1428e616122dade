package ctdf

import (
	"math"

	"github.com/travigo/transitsound/pkg/geo"
)

// Location is a GeoJSON style point. Coordinates are longitude then latitude.
type Location struct {
	Type        string    `json:"type" yaml:"type"`
	Coordinates []float64 `json:"coordinates" yaml:"coordinates"`
}

func NewLocation(lat, lon float64) *Location {
	return &Location{
		Type:        "Point",
		Coordinates: []float64{lon, lat},
	}
}

func (l *Location) Latitude() float64 {
	if l == nil || len(l.Coordinates) < 2 {
		return math.NaN()
	}
	return l.Coordinates[1]
}

func (l *Location) Longitude() float64 {
	if l == nil || len(l.Coordinates) < 2 {
		return math.NaN()
	}
	return l.Coordinates[0]
}

func (l *Location) Valid() bool {
	return l != nil && ValidCoordinates(l.Latitude(), l.Longitude())
}

// Distance in metres between two locations
func (l *Location) Distance(other *Location) float64 {
	return geo.Haversine(l.Latitude(), l.Longitude(), other.Latitude(), other.Longitude())
}

// ValidCoordinates rejects NaN, out of range and null island positions
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return !(lat == 0 && lon == 0)
}
