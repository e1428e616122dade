package gtfs

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitsound/pkg/ctdf"
)

const stopsFileName = "stops.txt"

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// LoadStops reads a stops.txt file and returns the boarding points in it
func LoadStops(reader io.Reader) ([]*ctdf.Stop, error) {
	buffered := bufio.NewReader(reader)
	if prefix, err := buffered.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		buffered.Discard(len(byteOrderMark))
	}

	// Allow us to ignore those naughty records that have missing columns
	csvReader := csv.NewReader(buffered)
	csvReader.FieldsPerRecord = -1

	var records []*Stop
	if err := gocsv.UnmarshalCSV(csvReader, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", stopsFileName, err)
	}

	stops := make([]*ctdf.Stop, 0, len(records))
	skipped := 0
	for _, record := range records {
		lat, lon, ok := record.Coordinates()
		if !ok || !record.IsBoardingPoint() || record.ID == "" || !ctdf.ValidCoordinates(lat, lon) {
			skipped++
			continue
		}

		stop := &ctdf.Stop{
			PrimaryIdentifier: record.ID,
			PrimaryName:       record.Name,
			Type:              "stop",
			Location:          ctdf.NewLocation(lat, lon),
			OtherIdentifiers:  map[string]string{},
		}
		if record.Code != "" {
			stop.OtherIdentifiers["StopCode"] = record.Code
		}
		if record.Parent != "" {
			stop.OtherIdentifiers["ParentStation"] = record.Parent
		}

		stops = append(stops, stop)
	}

	log.Debug().Int("stops", len(stops)).Int("skipped", skipped).Msg("Parsed GTFS stops")

	return stops, nil
}

// LoadStopsFromArchive finds stops.txt inside a GTFS schedule zip
func LoadStopsFromArchive(body []byte) ([]*ctdf.Stop, error) {
	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("open gtfs archive: %w", err)
	}

	for _, zipFile := range archive.File {
		if path.Base(zipFile.Name) != stopsFileName {
			continue
		}

		file, err := zipFile.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in archive: %w", zipFile.Name, err)
		}
		defer file.Close()

		return LoadStops(file)
	}

	return nil, fmt.Errorf("no %s in gtfs archive", stopsFileName)
}
