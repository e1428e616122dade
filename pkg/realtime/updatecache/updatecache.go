// Package updatecache keeps recent raw update batches so that a consumer that
// connects late can replay them.
package updatecache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/travigo/transitsound/pkg/ctdf"
	"github.com/travigo/transitsound/pkg/scheduler"
	"golang.org/x/exp/slices"
)

type Config struct {
	MaxAge          time.Duration `yaml:"max_age" validate:"gt=0"`
	MaxEntries      int           `yaml:"max_entries" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		MaxAge:          5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: 30 * time.Second,
	}
}

type Entry struct {
	Timestamp time.Time
	Buses     json.RawMessage
	Updates   json.RawMessage
}

// Cache is safe for concurrent use
type Cache struct {
	config Config
	clock  scheduler.Clock

	mu      sync.Mutex
	entries []Entry
}

func New(config Config, clock scheduler.Clock) *Cache {
	if clock == nil {
		clock = scheduler.RealClock{}
	}

	return &Cache{
		config: config,
		clock:  clock,
	}
}

// Record stores a batch stamped with the current time. Going over MaxEntries
// triggers a cleanup straight away rather than waiting for the timer.
func (c *Cache) Record(buses json.RawMessage, updates json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, Entry{
		Timestamp: c.clock.Now(),
		Buses:     slices.Clone(buses),
		Updates:   slices.Clone(updates),
	})

	if len(c.entries) > c.config.MaxEntries {
		c.cleanupLocked()
	}
}

// Drain returns every retained entry as a historical batch, oldest first. The
// entries stay in the cache for the next consumer.
func (c *Cache) Drain() []ctdf.UpdateBatch {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()

	batches := make([]ctdf.UpdateBatch, 0, len(c.entries))
	for _, entry := range c.entries {
		batches = append(batches, ctdf.UpdateBatch{
			Timestamp:  entry.Timestamp,
			Buses:      entry.Buses,
			Updates:    entry.Updates,
			Historical: true,
		})
	}

	return batches
}

// Cleanup drops entries older than MaxAge then trims to the newest MaxEntries
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cleanupLocked()
}

// Schedule registers the periodic cleanup on s
func (c *Cache) Schedule(s *scheduler.Scheduler) *scheduler.Task {
	return s.Every(c.config.CleanupInterval, func() {
		c.Cleanup()
	})
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *Cache) cleanupLocked() int {
	before := len(c.entries)
	cutoff := c.clock.Now().Add(-c.config.MaxAge)

	keepFrom := 0
	for keepFrom < len(c.entries) && c.entries[keepFrom].Timestamp.Before(cutoff) {
		keepFrom++
	}
	if overflow := len(c.entries) - keepFrom - c.config.MaxEntries; overflow > 0 {
		keepFrom += overflow
	}

	if keepFrom > 0 {
		c.entries = slices.Delete(c.entries, 0, keepFrom)
	}

	return before - len(c.entries)
}
