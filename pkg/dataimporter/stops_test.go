package dataimporter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/transitsound/pkg/dataimporter/formats"
)

func TestLoadStopsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stops.txt")
	require.NoError(t, os.WriteFile(path, []byte("stop_id,stop_name,stop_lat,stop_lon\n5000,Courtenay Place,-41.2935,174.7814\n"), 0o644))

	stops, err := LoadStopsFile(path, "gtfs")
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.Equal(t, "5000", stops[0].PrimaryIdentifier)
}

func TestLoadStops_Empty(t *testing.T) {
	_, err := LoadStopsBytes([]byte("stop_id,stop_name,stop_lat,stop_lon\n"), formats.FormatGTFS, false)
	assert.ErrorIs(t, err, ErrNoStops)
}

func TestLoadStopsFile_UnknownFormat(t *testing.T) {
	_, err := LoadStopsFile("unused", "kml")
	assert.Error(t, err)
}

func TestLoadStopsFile_Missing(t *testing.T) {
	_, err := LoadStopsFile(filepath.Join(t.TempDir(), "missing.txt"), "naptan")
	assert.Error(t, err)
}
