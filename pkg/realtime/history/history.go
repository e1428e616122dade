// Package history keeps a short, bounded window of reported positions for
// every tracked vehicle and interpolates a smooth position between them.
package history

import (
	"time"

	"github.com/travigo/transitsound/pkg/geo"
	"github.com/travigo/transitsound/pkg/routeid"
	"golang.org/x/exp/slices"
)

// Sample is one reported state of a vehicle
type Sample struct {
	EntityID  string
	Lat       float64
	Lon       float64
	Bearing   float64
	GroupID   routeid.ID
	Timestamp time.Time
}

// InterpolatedPosition is where a vehicle is drawn at a given display time
type InterpolatedPosition struct {
	EntityID  string     `json:"entity_id"`
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	Bearing   float64    `json:"bearing"`
	GroupID   routeid.ID `json:"group_id"`
	Timestamp time.Time  `json:"timestamp"`
}

func compareSampleTime(sample Sample, target time.Time) int {
	return sample.Timestamp.Compare(target)
}

// Store owns the per-vehicle sample buffers. It does no locking and must only
// be used from a single goroutine.
type Store struct {
	maxSamples int

	buffers map[string][]Sample

	removeHooks []func(entityID string)
}

func NewStore(maxSamples int) *Store {
	if maxSamples < 1 {
		maxSamples = 1
	}

	return &Store{
		maxSamples: maxSamples,
		buffers:    map[string][]Sample{},
	}
}

// OnRemove registers a function called with the id of every vehicle that
// leaves the store, whether pruned, removed or cleared.
func (s *Store) OnRemove(hook func(entityID string)) {
	s.removeHooks = append(s.removeHooks, hook)
}

// Append adds a sample keeping the buffer in timestamp order. Once the buffer
// is over capacity the oldest samples are dropped.
func (s *Store) Append(sample Sample) {
	buffer := s.buffers[sample.EntityID]

	if len(buffer) == 0 || !sample.Timestamp.Before(buffer[len(buffer)-1].Timestamp) {
		buffer = append(buffer, sample)
	} else {
		position, found := slices.BinarySearchFunc(buffer, sample.Timestamp, compareSampleTime)
		for found && position < len(buffer) && buffer[position].Timestamp.Equal(sample.Timestamp) {
			position++
		}
		buffer = slices.Insert(buffer, position, sample)
	}

	if overflow := len(buffer) - s.maxSamples; overflow > 0 {
		buffer = slices.Delete(buffer, 0, overflow)
	}

	s.buffers[sample.EntityID] = buffer
}

// InterpolateAt returns the position of the vehicle at displayTime. It returns
// false when the vehicle has no bracketing samples and nothing within
// tolerance of displayTime.
func (s *Store) InterpolateAt(entityID string, displayTime time.Time, tolerance time.Duration) (InterpolatedPosition, bool) {
	buffer := s.buffers[entityID]

	switch len(buffer) {
	case 0:
		return InterpolatedPosition{}, false
	case 1:
		if withinTolerance(buffer[0].Timestamp, displayTime, tolerance) {
			return positionOf(buffer[0], displayTime), true
		}
		return InterpolatedPosition{}, false
	}

	for i := 0; i < len(buffer)-1; i++ {
		before := buffer[i]
		after := buffer[i+1]

		if displayTime.Before(before.Timestamp) || displayTime.After(after.Timestamp) {
			continue
		}

		span := after.Timestamp.Sub(before.Timestamp)
		if span <= 0 {
			return positionOf(after, displayTime), true
		}

		progress := geo.Clamp(float64(displayTime.Sub(before.Timestamp))/float64(span), 0, 1)
		eased := geo.Smoothstep(progress)

		group := before.GroupID
		if progress >= 1 {
			group = after.GroupID
		}

		return InterpolatedPosition{
			EntityID:  entityID,
			Lat:       geo.Lerp(before.Lat, after.Lat, eased),
			Lon:       geo.Lerp(before.Lon, after.Lon, eased),
			Bearing:   geo.LerpAngle(before.Bearing, after.Bearing, eased),
			GroupID:   group,
			Timestamp: displayTime,
		}, true
	}

	latest := buffer[len(buffer)-1]
	if withinTolerance(latest.Timestamp, displayTime, tolerance) {
		return positionOf(latest, displayTime), true
	}

	return InterpolatedPosition{}, false
}

// Prune drops samples older than now-maxAge and removes vehicles left with
// nothing recent. The removed ids are returned in sorted order.
func (s *Store) Prune(now time.Time, maxAge time.Duration) []string {
	cutoff := now.Add(-maxAge)

	var removed []string
	for entityID, buffer := range s.buffers {
		keepFrom, _ := slices.BinarySearchFunc(buffer, cutoff, compareSampleTime)
		if keepFrom >= len(buffer) {
			removed = append(removed, entityID)
			continue
		}
		if keepFrom > 0 {
			s.buffers[entityID] = slices.Delete(buffer, 0, keepFrom)
		}
	}

	slices.Sort(removed)
	for _, entityID := range removed {
		delete(s.buffers, entityID)
		s.notifyRemoved(entityID)
	}

	return removed
}

// Remove evicts a vehicle straight away
func (s *Store) Remove(entityID string) bool {
	if _, ok := s.buffers[entityID]; !ok {
		return false
	}

	delete(s.buffers, entityID)
	s.notifyRemoved(entityID)

	return true
}

// Clear removes every vehicle
func (s *Store) Clear() {
	entities := s.Entities()
	s.buffers = map[string][]Sample{}

	for _, entityID := range entities {
		s.notifyRemoved(entityID)
	}
}

// Entities returns the tracked vehicle ids in sorted order
func (s *Store) Entities() []string {
	entities := make([]string, 0, len(s.buffers))
	for entityID := range s.buffers {
		entities = append(entities, entityID)
	}
	slices.Sort(entities)

	return entities
}

func (s *Store) Len() int {
	return len(s.buffers)
}

// Samples returns a copy of the buffer for a vehicle
func (s *Store) Samples(entityID string) []Sample {
	return slices.Clone(s.buffers[entityID])
}

func (s *Store) Latest(entityID string) (Sample, bool) {
	buffer := s.buffers[entityID]
	if len(buffer) == 0 {
		return Sample{}, false
	}
	return buffer[len(buffer)-1], true
}

func (s *Store) notifyRemoved(entityID string) {
	for _, hook := range s.removeHooks {
		hook(entityID)
	}
}

func withinTolerance(sampleTime time.Time, displayTime time.Time, tolerance time.Duration) bool {
	difference := displayTime.Sub(sampleTime)
	if difference < 0 {
		difference = -difference
	}
	return difference <= tolerance
}

func positionOf(sample Sample, displayTime time.Time) InterpolatedPosition {
	return InterpolatedPosition{
		EntityID:  sample.EntityID,
		Lat:       sample.Lat,
		Lon:       sample.Lon,
		Bearing:   geo.NormalizeBearing(sample.Bearing),
		GroupID:   sample.GroupID,
		Timestamp: displayTime,
	}
}
