package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/transitsound/pkg/routeid"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "transitsound.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestDefaultNeedsStops(t *testing.T) {
	config := Default()
	assert.Error(t, config.Validate())

	config.Stops.Path = "stops.txt"
	assert.NoError(t, config.Validate())
	assert.Equal(t, config.Engine.DisplayLag, config.Sonification.PlaybackDelay)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
stops:
  path: data/stops.txt
engine:
  display_lag: 45s
  arrival:
    proximity_threshold: 80
poller:
  vehicles_url: https://example.com/vehicles
  format: gtfs-rt
routes:
  strategy: passthrough
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "data/stops.txt", config.Stops.Path)
	assert.Equal(t, 45*time.Second, config.Engine.DisplayLag)
	assert.Equal(t, 80.0, config.Engine.Arrival.ProximityThreshold)
	assert.Equal(t, 20.0, config.Engine.Arrival.ApproachThreshold)
	assert.Equal(t, 30*time.Second, config.Engine.InterpolationTolerance)
	assert.Equal(t, "gtfs-rt", config.Poller.Format)
	assert.Equal(t, 10*time.Second, config.Poller.Interval)
	assert.True(t, config.PollingEnabled())

	normalizer, err := config.Normalizer()
	require.NoError(t, err)
	assert.Equal(t, routeid.ID("100"), normalizer.Normalize("100"))
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
stops:
  path: data/stops.txt
`)

	t.Setenv("TRAVIGO_STOPS_FORMAT", "naptan")
	t.Setenv("TRAVIGO_DISPLAY_LAG", "2m")
	t.Setenv("TRAVIGO_GRID_SIZE", "not-a-number")
	t.Setenv("TRAVIGO_REDIS_ENABLED", "true")
	t.Setenv("TRAVIGO_API_LISTEN", ":9000")

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "naptan", config.Stops.Format)
	assert.Equal(t, 2*time.Minute, config.Engine.DisplayLag)
	assert.Equal(t, 50, config.Engine.GridSize)
	assert.True(t, config.Redis.Enabled)
	assert.Equal(t, ":9000", config.API.Listen)
	assert.False(t, config.PollingEnabled())
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
stops:
  path: data/stops.txt
poller:
  format: xml
`)
	_, err := Load(path)
	assert.Error(t, err)

	path = writeConfig(t, `
stops:
  path: data/stops.txt
routes:
  strategy: expr
`)
	_, err = Load(path)
	assert.Error(t, err)

	path = writeConfig(t, `
stops:
  path: data/stops.txt
engine:
  tick_interval: 0s
`)
	_, err = Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
