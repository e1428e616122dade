// Package engine ties the history store, the arrival detector and the delay
// tracker together behind a scheduler. All of its state is owned by the
// scheduler goroutine; other goroutines only read published snapshots.
package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transitsound/pkg/ctdf"
	"github.com/travigo/transitsound/pkg/geo"
	"github.com/travigo/transitsound/pkg/metrics"
	"github.com/travigo/transitsound/pkg/realtime/arrivals"
	"github.com/travigo/transitsound/pkg/realtime/history"
	"github.com/travigo/transitsound/pkg/routeid"
	"github.com/travigo/transitsound/pkg/scheduler"
	"github.com/travigo/transitsound/pkg/spatialindex"
	"golang.org/x/exp/slices"
)

// disruptionKey identifies one pending disruption cue. Feeds repeat the same
// stop time update on every poll so cues are keyed rather than stacked.
type disruptionKey struct {
	anchorID    string
	groupID     routeid.ID
	effectiveAt time.Time
}

type Engine struct {
	config     Config
	sched      *scheduler.Scheduler
	normalizer routeid.Normalizer

	stops map[string]*ctdf.Stop
	index *spatialindex.Index[*ctdf.Stop]

	history  *history.Store
	detector *arrivals.Detector
	delays   *arrivals.DelayTracker

	positions map[string]history.InterpolatedPosition
	snapshot  atomic.Pointer[Snapshot]

	lastTick    time.Time
	tickTask    *scheduler.Task
	flushTask   *scheduler.Task
	disruptions map[disruptionKey]*scheduler.Task

	arrivalHooks []func(ArrivalEvent)
	delayHooks   []func(DelayEvent)
	removeHooks  []func(entityID string)
}

func New(config Config, stops []*ctdf.Stop, sched *scheduler.Scheduler, normalizer routeid.Normalizer) *Engine {
	if normalizer == nil {
		normalizer = routeid.TrailingZero{}
	}

	bounds := geo.EmptyBounds()
	stopsByID := map[string]*ctdf.Stop{}
	for _, stop := range stops {
		if stop == nil || stop.PrimaryIdentifier == "" || !stop.Location.Valid() {
			continue
		}
		stopsByID[stop.PrimaryIdentifier] = stop
		bounds.Extend(stop.Latitude(), stop.Longitude())
	}

	index := spatialindex.New[*ctdf.Stop](bounds, config.GridSize)
	for _, stop := range stopsByID {
		index.AddItem(stop.Latitude(), stop.Longitude(), stop)
	}

	engine := &Engine{
		config:      config,
		sched:       sched,
		normalizer:  normalizer,
		stops:       stopsByID,
		index:       index,
		history:     history.NewStore(config.MaxSamplesPerEntity),
		detector:    arrivals.NewDetector(config.Arrival, index),
		delays:      arrivals.NewDelayTracker(config.DelayRetention, config.MinDelaySeconds),
		positions:   map[string]history.InterpolatedPosition{},
		disruptions: map[disruptionKey]*scheduler.Task{},
	}
	engine.history.OnRemove(engine.entityRemoved)
	engine.snapshot.Store(&Snapshot{Positions: map[string]history.InterpolatedPosition{}})

	log.Info().
		Int("stops", len(stopsByID)).
		Int("cells", index.CellCount()).
		Msg("Built stop index")

	return engine
}

// OnArrival registers a callback for detected arrivals. Callbacks must be
// registered before Start and run on the scheduler goroutine.
func (e *Engine) OnArrival(fn func(ArrivalEvent)) {
	e.arrivalHooks = append(e.arrivalHooks, fn)
}

// OnDelay registers a callback for disruption cues from future delays
func (e *Engine) OnDelay(fn func(DelayEvent)) {
	e.delayHooks = append(e.delayHooks, fn)
}

// OnRemove registers a callback for vehicles leaving the engine, for example
// so a renderer can drop its marker.
func (e *Engine) OnRemove(fn func(entityID string)) {
	e.removeHooks = append(e.removeHooks, fn)
}

// Start registers the animation tick and the periodic flush
func (e *Engine) Start() {
	e.lastTick = e.sched.Now()
	e.tickTask = e.sched.Every(e.config.TickInterval, e.Tick)
	e.flushTask = e.sched.Every(e.config.CleanupInterval, e.flush)
}

// Stop cancels the tick, the flush and any disruption cues still waiting
func (e *Engine) Stop() {
	e.tickTask.Cancel()
	e.flushTask.Cancel()
	e.tickTask, e.flushTask = nil, nil

	for _, task := range e.disruptions {
		task.Cancel()
	}
	e.disruptions = map[disruptionKey]*scheduler.Task{}
}

// Ingest processes a batch. Live batches are stamped with the current time and
// vehicles missing from them are removed; historical batches are spread out.
func (e *Engine) Ingest(batch ctdf.UpdateBatch) {
	if batch.Historical {
		e.IngestHistorical([]ctdf.UpdateBatch{batch})
		return
	}

	now := e.sched.Now()

	vehicles, err := batch.DecodeVehicles()
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode vehicle batch")
		metrics.FeedErrors.WithLabelValues("vehicles").Inc()
	}

	seen := e.ingestVehicles(vehicles, now)

	if err == nil && batch.HasVehicles() {
		for _, entityID := range e.history.Entities() {
			if _, ok := seen[entityID]; !ok {
				e.history.Remove(entityID)
			}
		}
	}

	e.ingestDelays(batch, now)

	metrics.TrackedEntities.Set(float64(e.history.Len()))
}

// IngestHistorical replays cached batches at evenly spaced times between
// now-DisplayLag and now-IntroWindow so a fresh consumer starts with a short
// animated history. Nothing is removed during replay.
func (e *Engine) IngestHistorical(batches []ctdf.UpdateBatch) {
	if len(batches) == 0 {
		return
	}

	ordered := slices.Clone(batches)
	slices.SortStableFunc(ordered, func(a, b ctdf.UpdateBatch) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	now := e.sched.Now()
	times := SpreadTimes(len(ordered), now.Add(-e.config.DisplayLag), now.Add(-e.config.IntroWindow))

	for i, batch := range ordered {
		vehicles, err := batch.DecodeVehicles()
		if err != nil {
			log.Error().Err(err).Msg("Failed to decode historical vehicle batch")
			metrics.FeedErrors.WithLabelValues("vehicles").Inc()
		}

		e.ingestVehicles(vehicles, times[i])
		e.ingestDelays(batch, now)
	}

	log.Debug().Int("batches", len(ordered)).Msg("Replayed historical batches")

	metrics.TrackedEntities.Set(float64(e.history.Len()))
}

// SpreadTimes returns n evenly spaced times from start to end. A single time
// lands on end.
func SpreadTimes(n int, start time.Time, end time.Time) []time.Time {
	if end.Before(start) {
		end = start
	}

	times := make([]time.Time, n)
	if n == 1 {
		times[0] = end
		return times
	}

	step := end.Sub(start) / time.Duration(n-1)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * step)
	}
	if n > 0 {
		times[n-1] = end
	}

	return times
}

func (e *Engine) ingestVehicles(vehicles []ctdf.VehicleUpdate, timestamp time.Time) map[string]struct{} {
	seen := map[string]struct{}{}

	for _, vehicle := range vehicles {
		if vehicle.VehicleID != "" {
			seen[vehicle.VehicleID] = struct{}{}
		}

		if !vehicle.Valid() {
			metrics.MalformedSamples.Inc()
			log.Debug().Str("vehicle", vehicle.VehicleID).Msg("Skipping malformed vehicle update")
			continue
		}

		sample := history.Sample{
			EntityID:  vehicle.VehicleID,
			Lat:       vehicle.Latitude,
			Lon:       vehicle.Longitude,
			Bearing:   geo.NormalizeBearing(vehicle.BearingOrZero()),
			GroupID:   e.normalizer.Normalize(string(vehicle.RouteID)),
			Timestamp: timestamp,
		}

		e.guard("vehicle", vehicle.VehicleID, func() {
			e.history.Append(sample)

			for _, event := range e.detector.Check(sample) {
				e.emitArrival(event, timestamp)
			}
		})
	}

	return seen
}

func (e *Engine) ingestDelays(batch ctdf.UpdateBatch, now time.Time) {
	updates, err := batch.DecodeDelays()
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode delay updates")
		metrics.FeedErrors.WithLabelValues("updates").Inc()
		return
	}

	for _, update := range updates {
		e.guard("stop", update.StopID, func() {
			e.handleDelay(update, now)
		})
	}
}

func (e *Engine) handleDelay(update ctdf.StopDelayUpdate, now time.Time) {
	if !update.Valid() {
		return
	}

	effective := now
	if update.Timestamp != 0 {
		effective = update.Time()
	}

	group := e.normalizer.Normalize(string(update.RouteID))

	record, ok := e.delays.Record(update.StopID, group, update.Delay, effective, now)
	if !ok || !effective.After(now) {
		return
	}

	stop, ok := e.stops[record.AnchorID]
	if !ok {
		log.Debug().Str("stop", record.AnchorID).Msg("Delay for unknown stop, not scheduling cue")
		return
	}

	event := DelayEvent{
		GroupID:      record.GroupID,
		AnchorID:     record.AnchorID,
		DelaySeconds: record.DelaySeconds,
		AnchorLat:    stop.Latitude(),
		AnchorLon:    stop.Longitude(),
		EffectiveAt:  effective,
	}

	// last write wins, a repeated update replaces the pending cue
	key := disruptionKey{anchorID: record.AnchorID, groupID: record.GroupID, effectiveAt: effective.UTC()}
	if pending, ok := e.disruptions[key]; ok {
		pending.Cancel()
	}

	var task *scheduler.Task
	task = e.sched.At(effective, func() {
		if e.disruptions[key] == task {
			delete(e.disruptions, key)
		}
		e.emitDelay(event)
	})
	e.disruptions[key] = task
}

func (e *Engine) emitArrival(event arrivals.Event, now time.Time) {
	arrival := ArrivalEvent{
		EntityID:     event.EntityID,
		AnchorID:     event.AnchorID,
		GroupID:      event.GroupID,
		Intensity:    event.Intensity,
		CrossingTime: event.CrossingTime,
		Distance:     event.Distance,
	}
	if event.Stop != nil {
		arrival.AnchorName = event.Stop.PrimaryName
		arrival.AnchorLat = event.Stop.Latitude()
		arrival.AnchorLon = event.Stop.Longitude()
	}
	if record, ok := e.delays.Lookup(event.AnchorID, now); ok {
		arrival.EstimatedDelay = &record
	}

	metrics.ArrivalsEmitted.Inc()

	for _, hook := range e.arrivalHooks {
		e.guard("arrival", event.AnchorID, func() { hook(arrival) })
	}
}

func (e *Engine) emitDelay(event DelayEvent) {
	metrics.DelayEvents.Inc()

	for _, hook := range e.delayHooks {
		e.guard("delay", event.AnchorID, func() { hook(event) })
	}
}

// Tick advances the animation. Every vehicle is interpolated against the same
// display time, then old samples are pruned and a new snapshot is published.
func (e *Engine) Tick() {
	now := e.sched.Now()
	started := time.Now()

	if !e.lastTick.IsZero() && now.Sub(e.lastTick) > e.config.GapThreshold {
		log.Warn().
			Dur("gap", now.Sub(e.lastTick)).
			Int("entities", e.history.Len()).
			Msg("Animation tick gap too large, resetting realtime state")
		e.Reset()
	}
	e.lastTick = now

	displayTime := now.Add(-e.config.DisplayLag)

	for _, entityID := range e.history.Entities() {
		position, ok := e.history.InterpolateAt(entityID, displayTime, e.config.InterpolationTolerance)
		if ok {
			e.positions[entityID] = position
		} else {
			delete(e.positions, entityID)
		}
	}

	e.history.Prune(now, e.config.MaxHistoryAge)

	e.publish(displayTime)

	metrics.TrackedEntities.Set(float64(e.history.Len()))
	metrics.TickDuration.Observe(time.Since(started).Seconds())
}

// Reset throws away all transient state: history, arrival debounce, delays
// and cached positions. Pending disruption cues are left alone.
func (e *Engine) Reset() {
	e.history.Clear()
	e.detector.Reset()
	e.delays.Reset()
	e.positions = map[string]history.InterpolatedPosition{}

	metrics.HistoryResets.Inc()
}

func (e *Engine) flush() {
	now := e.sched.Now()

	debounce := e.detector.Cleanup(now)
	delays := e.delays.Cleanup(now)

	if debounce > 0 || delays > 0 {
		log.Debug().Int("debounce", debounce).Int("delays", delays).Msg("Flushed expired arrival state")
	}
}

func (e *Engine) entityRemoved(entityID string) {
	e.detector.Forget(entityID)
	delete(e.positions, entityID)

	for _, hook := range e.removeHooks {
		e.guard("remove", entityID, func() { hook(entityID) })
	}
}

// guard runs fn so a panic while handling one entity, stop or callback does
// not abort the rest of the batch
func (e *Engine) guard(stage string, id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecoveredPanics.WithLabelValues(stage).Inc()
			log.Error().
				Str("stage", stage).
				Str("id", id).
				Str("panic", fmt.Sprint(r)).
				Msg("Recovered from panic while processing realtime update")
		}
	}()

	fn()
}

func (e *Engine) Stops() []*ctdf.Stop {
	stops := make([]*ctdf.Stop, 0, len(e.stops))
	for _, stop := range e.stops {
		stops = append(stops, stop)
	}
	slices.SortFunc(stops, func(a, b *ctdf.Stop) int {
		if a.PrimaryIdentifier < b.PrimaryIdentifier {
			return -1
		}
		if a.PrimaryIdentifier > b.PrimaryIdentifier {
			return 1
		}
		return 0
	})
	return stops
}

func (e *Engine) Index() *spatialindex.Index[*ctdf.Stop] {
	return e.index
}

// Tracked is the number of vehicles with history. Scheduler goroutine only.
func (e *Engine) Tracked() int {
	return e.history.Len()
}
