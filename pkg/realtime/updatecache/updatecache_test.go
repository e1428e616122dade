package updatecache

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/transitsound/pkg/scheduler"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func payload(i int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`[{"vehicle_id":"B%d"}]`, i))
}

func TestCache_DrainTagsHistorical(t *testing.T) {
	clock := scheduler.NewManualClock(epoch)
	cache := New(DefaultConfig(), clock)

	cache.Record(payload(1), nil)
	clock.Advance(10 * time.Second)
	cache.Record(payload(2), json.RawMessage(`[]`))

	batches := cache.Drain()
	require.Len(t, batches, 2)

	assert.True(t, batches[0].Historical)
	assert.Equal(t, epoch, batches[0].Timestamp)
	assert.JSONEq(t, `[{"vehicle_id":"B2"}]`, string(batches[1].Buses))

	assert.Equal(t, 2, cache.Len())
}

func TestCache_DrainNeverReturnsOldEntries(t *testing.T) {
	clock := scheduler.NewManualClock(epoch)
	config := DefaultConfig()
	cache := New(config, clock)

	cache.Record(payload(1), nil)
	clock.Advance(4 * time.Minute)
	cache.Record(payload(2), nil)
	clock.Advance(90 * time.Second)

	batches := cache.Drain()
	require.Len(t, batches, 1)

	for _, batch := range batches {
		assert.False(t, batch.Timestamp.Before(clock.Now().Add(-config.MaxAge)))
	}
}

func TestCache_BurstStaysWithinMaxEntries(t *testing.T) {
	clock := scheduler.NewManualClock(epoch)
	config := DefaultConfig()
	cache := New(config, clock)

	for i := 0; i < config.MaxEntries*3; i++ {
		cache.Record(payload(i), nil)
		assert.LessOrEqual(t, cache.Len(), config.MaxEntries)
	}

	batches := cache.Drain()
	require.Len(t, batches, config.MaxEntries)
	assert.JSONEq(t, string(payload(config.MaxEntries*3-1)), string(batches[len(batches)-1].Buses))
	assert.JSONEq(t, string(payload(config.MaxEntries*2)), string(batches[0].Buses))
}

func TestCache_ScheduledCleanup(t *testing.T) {
	clock := scheduler.NewManualClock(epoch)
	sched := scheduler.New(clock)
	cache := New(DefaultConfig(), clock)
	cache.Schedule(sched)

	cache.Record(payload(1), nil)

	clock.Advance(5*time.Minute + 30*time.Second)
	sched.RunDue()

	assert.Equal(t, 0, cache.Len())
}

func TestCache_RecordCopiesPayload(t *testing.T) {
	cache := New(DefaultConfig(), scheduler.NewManualClock(epoch))

	buses := json.RawMessage(`[1]`)
	cache.Record(buses, nil)
	buses[1] = '2'

	assert.Equal(t, `[1]`, string(cache.Drain()[0].Buses))
}
