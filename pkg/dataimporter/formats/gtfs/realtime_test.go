package gtfs

import (
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func TestDecodeRealtime(t *testing.T) {
	now := time.Unix(1714564800, 0)

	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("entity-1"),
				Vehicle: &gtfs.VehiclePosition{
					Trip:      &gtfs.TripDescriptor{RouteId: proto.String("100")},
					Vehicle:   &gtfs.VehicleDescriptor{Id: proto.String("B1")},
					Position:  &gtfs.Position{Latitude: proto.Float32(-41.3), Longitude: proto.Float32(174.78), Bearing: proto.Float32(90)},
					Timestamp: proto.Uint64(uint64(now.Add(-10 * time.Second).Unix())),
				},
			},
			{
				Id: proto.String("entity-2"),
				Vehicle: &gtfs.VehiclePosition{
					Position:  &gtfs.Position{Latitude: proto.Float32(-41.3), Longitude: proto.Float32(174.78)},
					Timestamp: proto.Uint64(uint64(now.Add(-time.Hour).Unix())),
				},
			},
			{
				Id: proto.String("entity-3"),
				Vehicle: &gtfs.VehiclePosition{
					Position: &gtfs.Position{Latitude: proto.Float32(-41.29), Longitude: proto.Float32(174.77)},
				},
			},
			{
				Id: proto.String("entity-4"),
				TripUpdate: &gtfs.TripUpdate{
					Trip: &gtfs.TripDescriptor{RouteId: proto.String("14")},
					StopTimeUpdate: []*gtfs.TripUpdate_StopTimeUpdate{
						{
							StopId:  proto.String("5000"),
							Arrival: &gtfs.TripUpdate_StopTimeEvent{Delay: proto.Int32(120), Time: proto.Int64(now.Add(time.Minute).Unix())},
						},
						{
							StopId:    proto.String("5016"),
							Departure: &gtfs.TripUpdate_StopTimeEvent{Delay: proto.Int32(-30)},
						},
						{
							StopId:  proto.String("5020"),
							Arrival: &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(now.Unix())},
						},
					},
				},
			},
		},
	}

	body, err := proto.Marshal(feed)
	require.NoError(t, err)

	vehicles, delays, err := DecodeRealtime(body, now)
	require.NoError(t, err)

	require.Len(t, vehicles, 2)
	assert.Equal(t, "B1", vehicles[0].VehicleID)
	assert.EqualValues(t, "100", vehicles[0].RouteID)
	assert.InDelta(t, -41.3, vehicles[0].Latitude, 1e-5)
	require.NotNil(t, vehicles[0].Bearing)
	assert.Equal(t, 90.0, *vehicles[0].Bearing)
	assert.Equal(t, now.Add(-10*time.Second).UnixMilli(), vehicles[0].Timestamp)

	assert.Equal(t, "entity-3", vehicles[1].VehicleID)
	assert.Nil(t, vehicles[1].Bearing)
	assert.Equal(t, now.UnixMilli(), vehicles[1].Timestamp)

	require.Len(t, delays, 2)
	assert.Equal(t, "5000", delays[0].StopID)
	assert.Equal(t, 120, delays[0].Delay)
	assert.Equal(t, now.Add(time.Minute).Unix(), delays[0].Timestamp)
	assert.Equal(t, -30, delays[1].Delay)
	assert.Equal(t, now.Unix(), delays[1].Timestamp)
}

func TestDecodeRealtime_Invalid(t *testing.T) {
	_, _, err := DecodeRealtime([]byte("definitely not protobuf"), time.Now())
	assert.Error(t, err)
}
