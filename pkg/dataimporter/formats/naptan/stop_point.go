package naptan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulcager/osgridref"
)

// StopPoint is a row of the NaPTAN Stops.csv export
type StopPoint struct {
	AtcoCode   string `csv:"ATCOCode"`
	NaptanCode string `csv:"NaptanCode"`
	CommonName string `csv:"CommonName"`
	Indicator  string `csv:"Indicator"`
	Street     string `csv:"Street"`
	Easting    string `csv:"Easting"`
	Northing   string `csv:"Northing"`
	Longitude  string `csv:"Longitude"`
	Latitude   string `csv:"Latitude"`
	StopType   string `csv:"StopType"`
	Status     string `csv:"Status"`
}

// Active excludes stops NaPTAN marks as deleted or inactive
func (s *StopPoint) Active() bool {
	status := strings.ToLower(strings.TrimSpace(s.Status))
	return status == "" || status == "active" || status == "act"
}

// Coordinates uses the WGS84 columns, falling back to converting the OS grid
// easting and northing when they're missing
func (s *StopPoint) Coordinates() (float64, float64, error) {
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(s.Latitude), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(s.Longitude), 64)
	if latErr == nil && lonErr == nil && lat != 0 && lon != 0 {
		return lat, lon, nil
	}

	// Only bother converting the OSGridRef if lat/lon isnt set and easting/northing is set
	if s.Easting == "" || s.Northing == "" {
		return 0, 0, fmt.Errorf("stop %s has no location", s.AtcoCode)
	}

	gridRef, err := osgridref.ParseOsGridRef(fmt.Sprintf("%s,%s", strings.TrimSpace(s.Easting), strings.TrimSpace(s.Northing)))
	if err != nil {
		return 0, 0, fmt.Errorf("stop %s grid reference: %w", s.AtcoCode, err)
	}

	lat, lon = gridRef.ToLatLon()

	return lat, lon, nil
}

func (s *StopPoint) DisplayName() string {
	if s.Indicator == "" {
		return s.CommonName
	}
	return fmt.Sprintf("%s (%s)", s.CommonName, s.Indicator)
}
