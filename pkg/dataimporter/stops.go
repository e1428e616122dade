package dataimporter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transitsound/pkg/ctdf"
	"github.com/travigo/transitsound/pkg/dataimporter/formats"
	"github.com/travigo/transitsound/pkg/dataimporter/formats/gtfs"
	"github.com/travigo/transitsound/pkg/dataimporter/formats/naptan"
)

var ErrNoStops = errors.New("stop dataset contained no usable stops")

// LoadStopsFile reads the stop dataset at path. GTFS datasets may be either a
// bare stops.txt or a schedule zip.
func LoadStopsFile(path string, format string) ([]*ctdf.Stop, error) {
	datasetFormat, err := formats.Parse(format)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stop dataset: %w", err)
	}
	defer file.Close()

	stops, err := LoadStops(file, datasetFormat, strings.EqualFold(filepath.Ext(path), ".zip"))
	if err != nil {
		return nil, err
	}

	log.Info().Str("path", path).Str("format", string(datasetFormat)).Int("stops", len(stops)).Msg("Loaded stop dataset")

	return stops, nil
}

func LoadStops(reader io.Reader, format formats.Format, archive bool) ([]*ctdf.Stop, error) {
	var stops []*ctdf.Stop
	var err error

	switch format {
	case formats.FormatGTFS:
		if archive {
			var body []byte
			if body, err = io.ReadAll(reader); err != nil {
				return nil, fmt.Errorf("read gtfs archive: %w", err)
			}
			stops, err = gtfs.LoadStopsFromArchive(body)
		} else {
			stops, err = gtfs.LoadStops(reader)
		}
	case formats.FormatNaPTAN:
		stops, err = naptan.LoadStops(reader)
	default:
		return nil, fmt.Errorf("unsupported stop dataset format %q", format)
	}

	if err != nil {
		return nil, err
	}
	if len(stops) == 0 {
		return nil, ErrNoStops
	}

	return stops, nil
}

// LoadStopsBytes is LoadStops over an in-memory dataset
func LoadStopsBytes(body []byte, format formats.Format, archive bool) ([]*ctdf.Stop, error) {
	return LoadStops(bytes.NewReader(body), format, archive)
}
