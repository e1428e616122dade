package gtfs

import (
	"strconv"
	"strings"
)

// Stop is a row of stops.txt
type Stop struct {
	ID           string `csv:"stop_id"`
	Code         string `csv:"stop_code"`
	Name         string `csv:"stop_name"`
	Description  string `csv:"stop_desc"`
	Latitude     string `csv:"stop_lat"`
	Longitude    string `csv:"stop_lon"`
	ZoneID       string `csv:"zone_id"`
	Type         string `csv:"location_type"`
	Parent       string `csv:"parent_station"`
	PlatformCode string `csv:"platform_code"`
}

// IsBoardingPoint is true for stops and platforms, the only location types
// vehicles actually arrive at
func (s *Stop) IsBoardingPoint() bool {
	return s.Type == "" || s.Type == "0"
}

// Coordinates parses the stop position, ok is false if either is missing
func (s *Stop) Coordinates() (lat float64, lon float64, ok bool) {
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(s.Latitude), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(s.Longitude), 64)

	return lat, lon, latErr == nil && lonErr == nil
}
