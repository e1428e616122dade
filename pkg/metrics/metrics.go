// Package metrics holds the prometheus collectors shared by the realtime
// pipeline. They are served from /metrics by the api package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transitsound"

var (
	ArrivalsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "arrivals_emitted_total",
		Help:      "Stop arrivals detected from raw vehicle positions",
	})

	StaleArrivalsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_arrivals_dropped_total",
		Help:      "Arrivals too old to play when they reached the conductor",
	})

	DelayEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delay_events_total",
		Help:      "Disruption cues fired for future stop delays",
	})

	MalformedSamples = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "malformed_samples_total",
		Help:      "Vehicle updates rejected before reaching the history store",
	})

	HistoryResets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "history_resets_total",
		Help:      "Transient state resets caused by a gap between animation ticks",
	})

	FeedErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_errors_total",
		Help:      "Failed upstream feed fetches or decodes",
	}, []string{"feed"})

	RecoveredPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recovered_panics_total",
		Help:      "Panics recovered while processing a single entity, anchor or callback",
	}, []string{"stage"})

	TrackedEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tracked_entities",
		Help:      "Vehicles with at least one sample in the history store",
	})

	UpdateCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "update_cache_entries",
		Help:      "Update batches held for replay",
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscribers",
		Help:      "Live update stream subscribers",
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Time spent interpolating and pruning per animation tick",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
)
