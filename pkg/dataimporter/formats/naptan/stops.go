package naptan

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitsound/pkg/ctdf"
)

// LoadStops reads NaPTAN Stops.csv into stops
func LoadStops(reader io.Reader) ([]*ctdf.Stop, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	var records []*StopPoint
	if err := gocsv.UnmarshalCSV(csvReader, &records); err != nil {
		return nil, fmt.Errorf("parse naptan stops: %w", err)
	}

	stops := make([]*ctdf.Stop, 0, len(records))
	for _, record := range records {
		if record.AtcoCode == "" || !record.Active() {
			continue
		}

		lat, lon, err := record.Coordinates()
		if err != nil {
			log.Debug().Err(err).Msg("Skipping NaPTAN stop")
			continue
		}
		if !ctdf.ValidCoordinates(lat, lon) {
			continue
		}

		stop := &ctdf.Stop{
			PrimaryIdentifier: record.AtcoCode,
			PrimaryName:       record.DisplayName(),
			Type:              record.StopType,
			Location:          ctdf.NewLocation(lat, lon),
			OtherIdentifiers:  map[string]string{},
		}
		if record.NaptanCode != "" {
			stop.OtherIdentifiers["NaptanCode"] = record.NaptanCode
		}

		stops = append(stops, stop)
	}

	log.Debug().Int("stops", len(stops)).Int("rows", len(records)).Msg("Parsed NaPTAN stops")

	return stops, nil
}
