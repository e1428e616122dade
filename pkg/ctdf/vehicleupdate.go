package ctdf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// RawID is an identifier that upstream feeds send as either a JSON number or a
// JSON string. It always holds the textual form.
type RawID string

func (r *RawID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RawID(s)
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("identifier is neither string nor number: %w", err)
	}
	*r = RawID(number.String())

	return nil
}

// millisecondThreshold separates unix second timestamps from millisecond ones
const millisecondThreshold = 1_000_000_000_000

// UnixTime converts a feed timestamp in unix seconds or milliseconds
func UnixTime(value int64) time.Time {
	if value >= millisecondThreshold || value <= -millisecondThreshold {
		return time.UnixMilli(value)
	}
	return time.Unix(value, 0)
}

type VehicleUpdate struct {
	VehicleID string   `json:"vehicle_id"`
	RouteID   RawID    `json:"route_id"`
	Latitude  float64  `json:"lat"`
	Longitude float64  `json:"lon"`
	Bearing   *float64 `json:"bearing,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

func (v *VehicleUpdate) Valid() bool {
	if strings.TrimSpace(v.VehicleID) == "" {
		return false
	}
	if v.Bearing != nil && (math.IsNaN(*v.Bearing) || math.IsInf(*v.Bearing, 0)) {
		return false
	}
	return ValidCoordinates(v.Latitude, v.Longitude)
}

func (v *VehicleUpdate) Time() time.Time {
	return UnixTime(v.Timestamp)
}

func (v *VehicleUpdate) BearingOrZero() float64 {
	if v.Bearing == nil {
		return 0
	}
	return *v.Bearing
}

type StopDelayUpdate struct {
	StopID    string `json:"stop_id"`
	RouteID   RawID  `json:"route_id"`
	Delay     int    `json:"delay"`
	Timestamp int64  `json:"timestamp"`
}

func (s *StopDelayUpdate) Valid() bool {
	return strings.TrimSpace(s.StopID) != ""
}

func (s *StopDelayUpdate) Time() time.Time {
	return UnixTime(s.Timestamp)
}

// UpdateBatch is one poll of the upstream feeds. The vehicle and delay payloads
// are kept raw so they can be cached and replayed without re-encoding.
type UpdateBatch struct {
	Timestamp  time.Time       `json:"timestamp"`
	Buses      json.RawMessage `json:"buses,omitempty"`
	Updates    json.RawMessage `json:"updates,omitempty"`
	Historical bool            `json:"historical,omitempty"`
}

func NewUpdateBatch(timestamp time.Time, vehicles []VehicleUpdate, delays []StopDelayUpdate) (UpdateBatch, error) {
	batch := UpdateBatch{Timestamp: timestamp}

	var err error
	if vehicles != nil {
		if batch.Buses, err = json.Marshal(vehicles); err != nil {
			return batch, fmt.Errorf("encode vehicles: %w", err)
		}
	}
	if delays != nil {
		if batch.Updates, err = json.Marshal(delays); err != nil {
			return batch, fmt.Errorf("encode delay updates: %w", err)
		}
	}

	return batch, nil
}

// HasVehicles reports whether the batch carried a vehicle payload at all
func (b *UpdateBatch) HasVehicles() bool {
	return len(bytes.TrimSpace(b.Buses)) > 0 && !bytes.Equal(bytes.TrimSpace(b.Buses), []byte("null"))
}

func (b *UpdateBatch) DecodeVehicles() ([]VehicleUpdate, error) {
	if !b.HasVehicles() {
		return nil, nil
	}

	var vehicles []VehicleUpdate
	if err := json.Unmarshal(b.Buses, &vehicles); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	return vehicles, nil
}

func (b *UpdateBatch) DecodeDelays() ([]StopDelayUpdate, error) {
	payload := bytes.TrimSpace(b.Updates)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, nil
	}

	var delays []StopDelayUpdate
	if err := json.Unmarshal(payload, &delays); err != nil {
		return nil, fmt.Errorf("decode delay updates: %w", err)
	}
	return delays, nil
}
