package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestScheduler_After(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	fired := 0
	s.After(5*time.Second, func() { fired++ })

	clock.Advance(4 * time.Second)
	assert.Equal(t, 0, s.RunDue())
	assert.Equal(t, 0, fired)

	clock.Advance(time.Second)
	assert.Equal(t, 1, s.RunDue())
	assert.Equal(t, 1, fired)

	clock.Advance(time.Minute)
	s.RunDue()
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_Every(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	var firedAt []time.Time
	s.Every(time.Second, func() { firedAt = append(firedAt, clock.Now()) })

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		s.RunDue()
	}

	require.Len(t, firedAt, 3)
	assert.Equal(t, epoch.Add(3*time.Second), firedAt[2])
}

func TestScheduler_EveryMissedPeriodsFireOnce(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	fired := 0
	task := s.Every(time.Second, func() { fired++ })

	clock.Advance(30 * time.Second)
	s.RunDue()

	assert.Equal(t, 1, fired)
	assert.Equal(t, epoch.Add(31*time.Second), task.Due())
}

func TestScheduler_Ordering(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	var order []string
	s.After(3*time.Second, func() { order = append(order, "c") })
	s.After(time.Second, func() { order = append(order, "a") })
	s.After(2*time.Second, func() { order = append(order, "b1") })
	s.After(2*time.Second, func() { order = append(order, "b2") })

	clock.Advance(10 * time.Second)
	s.RunDue()

	assert.Equal(t, []string{"a", "b1", "b2", "c"}, order)
}

func TestScheduler_Cancel(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	fired := false
	task := s.After(time.Second, func() { fired = true })
	task.Cancel()
	task.Cancel()

	clock.Advance(time.Minute)
	s.RunDue()

	assert.False(t, fired)
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_CancelFromInsidePeriodicTask(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	fired := 0
	var task *Task
	task = s.Every(time.Second, func() {
		fired++
		task.Cancel()
	})

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		s.RunDue()
	}

	assert.Equal(t, 1, fired)
}

func TestScheduler_Stop(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	fired := 0
	s.Every(time.Second, func() { fired++ })
	s.After(2*time.Second, func() { fired++ })
	assert.Equal(t, 2, s.Pending())

	s.Stop()
	clock.Advance(time.Minute)
	s.RunDue()

	assert.Equal(t, 0, fired)
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_AtInPast(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	fired := false
	s.At(epoch.Add(-time.Hour), func() { fired = true })
	s.RunDue()

	assert.True(t, fired)
}

func TestScheduler_RunPosted(t *testing.T) {
	s := New(NewManualClock(epoch))

	count := 0
	s.Post(func() { count++ })
	s.Post(func() { count++ })

	assert.Equal(t, 2, s.RunPosted())
	assert.Equal(t, 2, count)
}

func TestScheduler_PostContextGivesUpWhenFull(t *testing.T) {
	s := New(NewManualClock(epoch))

	for i := 0; i < postedQueueSize; i++ {
		require.True(t, s.PostContext(context.Background(), func() {}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan bool)
	go func() { done <- s.PostContext(ctx, func() {}) }()

	select {
	case posted := <-done:
		assert.False(t, posted)
	case <-time.After(2 * time.Second):
		t.Fatal("PostContext blocked on a full queue after cancel")
	}

	assert.Equal(t, postedQueueSize, s.RunPosted())
}

func TestScheduler_RunRealClock(t *testing.T) {
	s := New(RealClock{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	s.After(10*time.Millisecond, func() {
		s.Post(func() { close(done) })
	})

	go s.Run(ctx)

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("posted function did not run")
	}
}
