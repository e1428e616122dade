package gtfs

import (
	"fmt"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitsound/pkg/ctdf"
	"google.golang.org/protobuf/proto"
)

// maxVehicleAge skips vehicles that haven't reported in a long time
const maxVehicleAge = 20 * time.Minute

// DecodeRealtime converts a GTFS-RT feed into vehicle updates from its
// VehiclePosition entities and stop delays from its TripUpdate entities
func DecodeRealtime(body []byte, now time.Time) ([]ctdf.VehicleUpdate, []ctdf.StopDelayUpdate, error) {
	feed := gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, &feed); err != nil {
		return nil, nil, fmt.Errorf("parse GTFS-RT protobuf: %w", err)
	}

	feedTime := now
	if timestamp := feed.GetHeader().GetTimestamp(); timestamp != 0 {
		feedTime = time.Unix(int64(timestamp), 0)
	}

	var vehicles []ctdf.VehicleUpdate
	var delays []ctdf.StopDelayUpdate
	stale := 0

	for _, entity := range feed.GetEntity() {
		if vehiclePosition := entity.GetVehicle(); vehiclePosition != nil {
			vehicle, ok := vehicleUpdate(entity.GetId(), vehiclePosition, feedTime)
			if !ok {
				continue
			}
			if now.Sub(vehicle.Time()) > maxVehicleAge {
				stale++
				continue
			}
			vehicles = append(vehicles, vehicle)
		}

		if tripUpdate := entity.GetTripUpdate(); tripUpdate != nil {
			delays = append(delays, stopDelays(tripUpdate, feedTime)...)
		}
	}

	log.Debug().
		Int("vehicles", len(vehicles)).
		Int("delays", len(delays)).
		Int("stale", stale).
		Msg("Decoded GTFS-RT feed")

	return vehicles, delays, nil
}

func vehicleUpdate(entityID string, vehiclePosition *gtfs.VehiclePosition, feedTime time.Time) (ctdf.VehicleUpdate, bool) {
	position := vehiclePosition.GetPosition()
	if position == nil {
		return ctdf.VehicleUpdate{}, false
	}

	vehicleID := vehiclePosition.GetVehicle().GetId()
	if vehicleID == "" {
		vehicleID = entityID
	}

	recordedAt := feedTime
	if timestamp := vehiclePosition.GetTimestamp(); timestamp != 0 {
		recordedAt = time.Unix(int64(timestamp), 0)
	}

	update := ctdf.VehicleUpdate{
		VehicleID: vehicleID,
		RouteID:   ctdf.RawID(vehiclePosition.GetTrip().GetRouteId()),
		Latitude:  float64(position.GetLatitude()),
		Longitude: float64(position.GetLongitude()),
		Timestamp: recordedAt.UnixMilli(),
	}
	if position.Bearing != nil {
		bearing := float64(position.GetBearing())
		update.Bearing = &bearing
	}

	return update, true
}

func stopDelays(tripUpdate *gtfs.TripUpdate, feedTime time.Time) []ctdf.StopDelayUpdate {
	routeID := ctdf.RawID(tripUpdate.GetTrip().GetRouteId())

	updatedAt := feedTime
	if timestamp := tripUpdate.GetTimestamp(); timestamp != 0 {
		updatedAt = time.Unix(int64(timestamp), 0)
	}

	var delays []ctdf.StopDelayUpdate
	for _, stopTimeUpdate := range tripUpdate.GetStopTimeUpdate() {
		if stopTimeUpdate.GetStopId() == "" {
			continue
		}

		event := stopTimeUpdate.GetArrival()
		if event == nil {
			event = stopTimeUpdate.GetDeparture()
		}
		if event == nil || event.Delay == nil {
			continue
		}

		effective := updatedAt
		if event.GetTime() != 0 {
			effective = time.Unix(event.GetTime(), 0)
		}

		delays = append(delays, ctdf.StopDelayUpdate{
			StopID:    stopTimeUpdate.GetStopId(),
			RouteID:   routeID,
			Delay:     int(event.GetDelay()),
			Timestamp: effective.Unix(),
		})
	}

	return delays
}
