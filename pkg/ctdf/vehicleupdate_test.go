package ctdf

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawID_NumberOrString(t *testing.T) {
	var vehicles []VehicleUpdate
	err := json.Unmarshal([]byte(`[
		{"vehicle_id":"B1","route_id":100,"lat":-41.3,"lon":174.78,"timestamp":1714564800000},
		{"vehicle_id":"B2","route_id":"N10","lat":-41.3,"lon":174.78,"bearing":90,"timestamp":1714564800000},
		{"vehicle_id":"B3","route_id":null,"lat":-41.3,"lon":174.78,"timestamp":1714564800000}
	]`), &vehicles)
	require.NoError(t, err)
	require.Len(t, vehicles, 3)

	assert.Equal(t, RawID("100"), vehicles[0].RouteID)
	assert.Equal(t, RawID("N10"), vehicles[1].RouteID)
	assert.Equal(t, RawID(""), vehicles[2].RouteID)

	assert.Nil(t, vehicles[0].Bearing)
	assert.Equal(t, 90.0, vehicles[1].BearingOrZero())
}

func TestRawID_Invalid(t *testing.T) {
	var id RawID
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &id))
}

func TestUnixTime(t *testing.T) {
	assert.Equal(t, time.Unix(1714564800, 0), UnixTime(1714564800))
	assert.Equal(t, time.UnixMilli(1714564800123), UnixTime(1714564800123))
}

func TestVehicleUpdate_Valid(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name   string
		update VehicleUpdate
		valid  bool
	}{
		{"ok", VehicleUpdate{VehicleID: "B1", Latitude: -41.3, Longitude: 174.78}, true},
		{"missing id", VehicleUpdate{Latitude: -41.3, Longitude: 174.78}, false},
		{"null island", VehicleUpdate{VehicleID: "B1"}, false},
		{"out of range", VehicleUpdate{VehicleID: "B1", Latitude: 91, Longitude: 174.78}, false},
		{"nan", VehicleUpdate{VehicleID: "B1", Latitude: nan, Longitude: 174.78}, false},
		{"nan bearing", VehicleUpdate{VehicleID: "B1", Latitude: -41.3, Longitude: 174.78, Bearing: &nan}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.valid, test.update.Valid())
		})
	}
}

func TestUpdateBatch_Decode(t *testing.T) {
	batch, err := NewUpdateBatch(time.Unix(100, 0), []VehicleUpdate{
		{VehicleID: "B1", RouteID: "10", Latitude: -41.3, Longitude: 174.78, Timestamp: 100000},
	}, []StopDelayUpdate{
		{StopID: "5000", RouteID: "10", Delay: 45, Timestamp: 100},
	})
	require.NoError(t, err)
	assert.True(t, batch.HasVehicles())

	vehicles, err := batch.DecodeVehicles()
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "B1", vehicles[0].VehicleID)

	delays, err := batch.DecodeDelays()
	require.NoError(t, err)
	require.Len(t, delays, 1)
	assert.Equal(t, 45, delays[0].Delay)
}

func TestUpdateBatch_Empty(t *testing.T) {
	batch := UpdateBatch{Buses: json.RawMessage("null")}
	assert.False(t, batch.HasVehicles())

	vehicles, err := batch.DecodeVehicles()
	assert.NoError(t, err)
	assert.Nil(t, vehicles)

	delays, err := batch.DecodeDelays()
	assert.NoError(t, err)
	assert.Nil(t, delays)
}

func TestLocation(t *testing.T) {
	a := NewLocation(-41.30, 174.78)
	b := NewLocation(-41.29, 174.78)

	assert.Equal(t, -41.30, a.Latitude())
	assert.Equal(t, 174.78, a.Longitude())
	assert.True(t, a.Valid())
	assert.InDelta(t, 1112, a.Distance(b), 2)

	var missing *Location
	assert.False(t, missing.Valid())
}
