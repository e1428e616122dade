// Package broadcast fans update batches out to every connected consumer and
// replays recent history to consumers as they join.
package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitsound/pkg/ctdf"
	"github.com/travigo/transitsound/pkg/metrics"
	"github.com/travigo/transitsound/pkg/realtime/updatecache"
	"github.com/travigo/transitsound/pkg/scheduler"
)

const defaultBufferSize = 16

type Subscription struct {
	ID string
	// History holds the cached batches at the time of subscribing, oldest first
	History []ctdf.UpdateBatch
	// Updates delivers live batches in publish order until Unsubscribe
	Updates <-chan ctdf.UpdateBatch

	updates chan ctdf.UpdateBatch
}

// Hub is safe for concurrent use
type Hub struct {
	cache      *updatecache.Cache
	clock      scheduler.Clock
	bufferSize int

	mu          sync.Mutex
	subscribers map[string]*Subscription
}

func NewHub(cache *updatecache.Cache, clock scheduler.Clock, bufferSize int) *Hub {
	if bufferSize < 1 {
		bufferSize = defaultBufferSize
	}
	if clock == nil {
		clock = scheduler.RealClock{}
	}

	return &Hub{
		cache:       cache,
		clock:       clock,
		bufferSize:  bufferSize,
		subscribers: map[string]*Subscription{},
	}
}

// Publish records the batch for replay and hands it to every subscriber. A
// subscriber whose buffer is full loses its oldest queued batch.
func (h *Hub) Publish(batch ctdf.UpdateBatch) {
	if batch.Timestamp.IsZero() {
		batch.Timestamp = h.clock.Now()
	}
	batch.Historical = false

	h.mu.Lock()
	defer h.mu.Unlock()

	h.cache.Record(batch.Buses, batch.Updates)
	metrics.UpdateCacheEntries.Set(float64(h.cache.Len()))

	for _, subscription := range h.subscribers {
		select {
		case subscription.updates <- batch:
			continue
		default:
		}

		select {
		case <-subscription.updates:
			log.Warn().Str("subscriber", subscription.ID).Msg("Subscriber falling behind, dropped oldest batch")
		default:
		}

		select {
		case subscription.updates <- batch:
		default:
		}
	}
}

// Subscribe returns the cached history and a channel of everything published
// after it. No batch is in both.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	updates := make(chan ctdf.UpdateBatch, h.bufferSize)
	subscription := &Subscription{
		ID:      uuid.NewString(),
		History: h.cache.Drain(),
		Updates: updates,
		updates: updates,
	}
	h.subscribers[subscription.ID] = subscription

	metrics.Subscribers.Set(float64(len(h.subscribers)))
	log.Debug().Str("subscriber", subscription.ID).Int("history", len(subscription.History)).Msg("New subscriber")

	return subscription
}

// Unsubscribe closes the subscription's channel
func (h *Hub) Unsubscribe(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscription, ok := h.subscribers[id]
	if !ok {
		return false
	}

	delete(h.subscribers, id)
	close(subscription.updates)

	metrics.Subscribers.Set(float64(len(h.subscribers)))

	return true
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscribers)
}

// Close unsubscribes everyone
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, subscription := range h.subscribers {
		delete(h.subscribers, id)
		close(subscription.updates)
	}

	metrics.Subscribers.Set(0)
}
