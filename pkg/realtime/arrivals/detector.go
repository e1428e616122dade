// Package arrivals turns consecutive reported vehicle positions into
// debounced stop arrival events, and remembers recent stop delays.
package arrivals

import (
	"math"
	"time"

	"github.com/travigo/transitsound/pkg/ctdf"
	"github.com/travigo/transitsound/pkg/geo"
	"github.com/travigo/transitsound/pkg/realtime/history"
	"github.com/travigo/transitsound/pkg/routeid"
	"github.com/travigo/transitsound/pkg/spatialindex"
	"golang.org/x/exp/slices"
)

const minIntensity = 0.5

type Config struct {
	ProximityThreshold float64       `yaml:"proximity_threshold" validate:"gt=0"`
	ApproachThreshold  float64       `yaml:"approach_threshold" validate:"gte=0"`
	SearchMultiplier   float64       `yaml:"search_multiplier" validate:"gte=1"`
	DebounceWindow     time.Duration `yaml:"debounce_window" validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		ProximityThreshold: 100,
		ApproachThreshold:  20,
		SearchMultiplier:   2,
		DebounceWindow:     30 * time.Second,
	}
}

// Event is a vehicle crossing into the proximity radius of a stop
type Event struct {
	EntityID     string
	AnchorID     string
	GroupID      routeid.ID
	Intensity    float64
	CrossingTime time.Time
	Distance     float64

	Stop *ctdf.Stop
}

type position struct {
	lat       float64
	lon       float64
	timestamp time.Time
}

type pairKey struct {
	entityID string
	anchorID string
}

// Detector compares each raw position with the previous one for the same
// vehicle. It is owned by a single goroutine.
type Detector struct {
	config Config
	index  *spatialindex.Index[*ctdf.Stop]

	lastPositions map[string]position
	lastArrivals  map[pairKey]time.Time
}

func NewDetector(config Config, index *spatialindex.Index[*ctdf.Stop]) *Detector {
	return &Detector{
		config:        config,
		index:         index,
		lastPositions: map[string]position{},
		lastArrivals:  map[pairKey]time.Time{},
	}
}

// Check records the sample as the vehicle's latest position and returns the
// arrivals it completes. The first sighting of a vehicle never produces one.
func (d *Detector) Check(sample history.Sample) []Event {
	current := position{lat: sample.Lat, lon: sample.Lon, timestamp: sample.Timestamp}

	previous, seen := d.lastPositions[sample.EntityID]
	if seen && current.timestamp.Before(previous.timestamp) {
		return nil
	}
	d.lastPositions[sample.EntityID] = current

	if !seen {
		return nil
	}

	threshold := d.config.ProximityThreshold
	candidates := d.index.GetItemsInRadius(current.lat, current.lon, threshold*d.config.SearchMultiplier)

	var events []Event
	for _, stop := range candidates {
		if stop == nil || !stop.Location.Valid() {
			continue
		}

		distanceNow := geo.Haversine(current.lat, current.lon, stop.Latitude(), stop.Longitude())
		if distanceNow >= threshold {
			continue
		}

		distancePrevious := geo.Haversine(previous.lat, previous.lon, stop.Latitude(), stop.Longitude())
		if distanceNow >= distancePrevious || distancePrevious-distanceNow <= d.config.ApproachThreshold {
			continue
		}

		crossing := previous.timestamp
		if distancePrevious > threshold {
			crossing = CrossingTime(distancePrevious, distanceNow, threshold, previous.timestamp, current.timestamp)
		}

		key := pairKey{entityID: sample.EntityID, anchorID: stop.PrimaryIdentifier}
		if last, ok := d.lastArrivals[key]; ok && crossing.Sub(last) < d.config.DebounceWindow {
			continue
		}
		d.lastArrivals[key] = crossing

		events = append(events, Event{
			EntityID:     sample.EntityID,
			AnchorID:     stop.PrimaryIdentifier,
			GroupID:      sample.GroupID,
			Intensity:    math.Max(minIntensity, 1-distanceNow/threshold),
			CrossingTime: crossing,
			Distance:     distanceNow,
			Stop:         stop,
		})
	}

	slices.SortFunc(events, func(a, b Event) int {
		if c := a.CrossingTime.Compare(b.CrossingTime); c != 0 {
			return c
		}
		if a.AnchorID < b.AnchorID {
			return -1
		}
		if a.AnchorID > b.AnchorID {
			return 1
		}
		return 0
	})

	return events
}

// CrossingTime linearly interpolates when the distance to a stop dropped
// through threshold between two observations.
func CrossingTime(distancePrevious, distanceNow, threshold float64, previous, now time.Time) time.Time {
	if distancePrevious <= threshold {
		return previous
	}

	travelled := distancePrevious - distanceNow
	if travelled <= 0 {
		return now
	}

	fraction := geo.Clamp((distancePrevious-threshold)/travelled, 0, 1)

	return previous.Add(time.Duration(fraction * float64(now.Sub(previous))))
}

// Cleanup drops debounce entries older than twice the debounce window and
// returns how many went.
func (d *Detector) Cleanup(now time.Time) int {
	expiry := 2 * d.config.DebounceWindow

	removed := 0
	for key, last := range d.lastArrivals {
		if now.Sub(last) > expiry {
			delete(d.lastArrivals, key)
			removed++
		}
	}

	return removed
}

// Forget drops the last known position of a vehicle. Debounce entries are kept
// so a vehicle that drops out of the feed and returns is still suppressed.
func (d *Detector) Forget(entityID string) {
	delete(d.lastPositions, entityID)
}

func (d *Detector) Reset() {
	d.lastPositions = map[string]position{}
	d.lastArrivals = map[pairKey]time.Time{}
}

func (d *Detector) DebounceLen() int {
	return len(d.lastArrivals)
}

func (d *Detector) Tracked() int {
	return len(d.lastPositions)
}
