// Package sonification turns engine events into audio cue parameters and
// decides when, or whether, they should play.
package sonification

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transitsound/pkg/metrics"
	"github.com/travigo/transitsound/pkg/realtime/engine"
	"github.com/travigo/transitsound/pkg/realtime/history"
	"github.com/travigo/transitsound/pkg/routeid"
	"github.com/travigo/transitsound/pkg/scheduler"
	"golang.org/x/exp/slices"
)

type Config struct {
	// MaxStaleness is the oldest crossing that will still be played
	MaxStaleness time.Duration `yaml:"max_staleness" validate:"gt=0"`
	// PlaybackDelay lines arrival cues up with the lagged animation
	PlaybackDelay time.Duration `yaml:"playback_delay" validate:"gte=0"`
	// GroupInterval is how often group cues are recomputed
	GroupInterval time.Duration `yaml:"group_interval" validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		MaxStaleness:  90 * time.Second,
		PlaybackDelay: 60 * time.Second,
		GroupInterval: time.Second,
	}
}

// Conductor runs on the scheduler goroutine alongside the engine
type Conductor struct {
	config Config
	sched  *scheduler.Scheduler
	sink   Sink

	pending   map[*scheduler.Task]struct{}
	groupTask *scheduler.Task
}

func NewConductor(config Config, sched *scheduler.Scheduler, sink Sink) *Conductor {
	return &Conductor{
		config:  config,
		sched:   sched,
		sink:    sink,
		pending: map[*scheduler.Task]struct{}{},
	}
}

// Attach subscribes the conductor to an engine's events and refreshes group
// cues from its positions every GroupInterval.
func (c *Conductor) Attach(e *engine.Engine) {
	e.OnArrival(func(event engine.ArrivalEvent) { c.HandleArrival(event) })
	e.OnDelay(c.HandleDelay)

	c.groupTask = c.sched.Every(c.config.GroupInterval, func() {
		c.UpdateGroups(e.PositionsByGroup())
	})
}

// HandleArrival schedules the arrival cue for crossing time plus the playback
// delay. Arrivals older than MaxStaleness are dropped and false is returned.
func (c *Conductor) HandleArrival(event engine.ArrivalEvent) bool {
	now := c.sched.Now()

	if age := now.Sub(event.CrossingTime); age > c.config.MaxStaleness {
		metrics.StaleArrivalsDropped.Inc()
		log.Debug().
			Str("vehicle", event.EntityID).
			Str("stop", event.AnchorID).
			Dur("age", age).
			Msg("Dropping stale arrival")
		return false
	}

	cue := ArrivalCue{
		EntityID:     event.EntityID,
		AnchorID:     event.AnchorID,
		AnchorName:   event.AnchorName,
		GroupID:      event.GroupID,
		Lat:          event.AnchorLat,
		Lon:          event.AnchorLon,
		Intensity:    event.Intensity,
		CrossingTime: event.CrossingTime,
		PlayAt:       event.CrossingTime.Add(c.config.PlaybackDelay),
	}
	if event.EstimatedDelay != nil {
		cue.DelaySeconds = event.EstimatedDelay.DelaySeconds
	}

	if !cue.PlayAt.After(now) {
		c.sink.PlayArrival(cue)
		return true
	}

	var task *scheduler.Task
	task = c.sched.At(cue.PlayAt, func() {
		delete(c.pending, task)
		c.sink.PlayArrival(cue)
	})
	c.pending[task] = struct{}{}

	return true
}

// HandleDelay plays a disruption cue straight away, the engine has already
// waited for the delay to take effect
func (c *Conductor) HandleDelay(event engine.DelayEvent) {
	c.sink.PlayDelay(DelayCue{
		GroupID:      event.GroupID,
		AnchorID:     event.AnchorID,
		DelaySeconds: event.DelaySeconds,
		Lat:          event.AnchorLat,
		Lon:          event.AnchorLon,
		Severity:     delaySeverity(event.DelaySeconds),
		Late:         event.DelaySeconds > 0,
	})
}

// UpdateGroups derives one cue per route from grouped lagged positions
func (c *Conductor) UpdateGroups(groups map[routeid.ID][]history.InterpolatedPosition) []GroupCue {
	cues := GroupCues(groups)
	c.sink.UpdateGroups(cues)
	return cues
}

func GroupCues(groups map[routeid.ID][]history.InterpolatedPosition) []GroupCue {
	cues := make([]GroupCue, 0, len(groups))

	for groupID, positions := range groups {
		if len(positions) == 0 {
			continue
		}

		var latSum, lonSum float64
		bearings := make([]float64, 0, len(positions))

		for _, position := range positions {
			latSum += position.Lat
			lonSum += position.Lon
			bearings = append(bearings, position.Bearing)
		}

		n := float64(len(positions))
		mean, spread := circularMean(bearings)

		cues = append(cues, GroupCue{
			GroupID:     groupID,
			Vehicles:    len(positions),
			CentroidLat: latSum / n,
			CentroidLon: lonSum / n,
			MeanBearing: mean,
			Spread:      spread,
		})
	}

	slices.SortFunc(cues, func(a, b GroupCue) int {
		if a.GroupID < b.GroupID {
			return -1
		}
		if a.GroupID > b.GroupID {
			return 1
		}
		return 0
	})

	return cues
}

// Pending is the number of arrival cues waiting to play
func (c *Conductor) Pending() int {
	return len(c.pending)
}

// Stop cancels every arrival cue that has not played yet
func (c *Conductor) Stop() {
	for task := range c.pending {
		task.Cancel()
	}
	c.pending = map[*scheduler.Task]struct{}{}

	c.groupTask.Cancel()
	c.groupTask = nil
}
