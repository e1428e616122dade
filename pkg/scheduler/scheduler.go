package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

const postedQueueSize = 256

// idleWait is how long Run sleeps when nothing is scheduled
const idleWait = time.Minute

// Task is a scheduled periodic or one-shot function
type Task struct {
	scheduler *Scheduler

	seq      uint64
	due      time.Time
	interval time.Duration
	fn       func()

	cancelled bool
	index     int
}

// Cancel stops the task from firing again. Safe to call more than once.
func (t *Task) Cancel() {
	if t == nil {
		return
	}

	s := t.scheduler
	s.mu.Lock()
	defer s.mu.Unlock()

	t.cancelled = true
	if t.index >= 0 {
		heap.Remove(&s.tasks, t.index)
	}
}

func (t *Task) Due() time.Time {
	t.scheduler.mu.Lock()
	defer t.scheduler.mu.Unlock()
	return t.due
}

// Scheduler fires tasks in due-time order. All task functions and posted
// functions run on whichever goroutine calls RunDue or Run, so state they touch
// needs no further locking as long as that is a single goroutine.
type Scheduler struct {
	clock Clock

	mu    sync.Mutex
	tasks taskHeap
	seq   uint64

	posted chan func()
	wake   chan struct{}
}

func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}

	return &Scheduler{
		clock:  clock,
		posted: make(chan func(), postedQueueSize),
		wake:   make(chan struct{}, 1),
	}
}

func (s *Scheduler) Clock() Clock {
	return s.clock
}

func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Every runs fn every interval, first firing one interval from now
func (s *Scheduler) Every(interval time.Duration, fn func()) *Task {
	if interval <= 0 {
		panic("scheduler: non-positive interval")
	}
	return s.schedule(s.clock.Now().Add(interval), interval, fn)
}

// After runs fn once after delay
func (s *Scheduler) After(delay time.Duration, fn func()) *Task {
	return s.schedule(s.clock.Now().Add(delay), 0, fn)
}

// At runs fn once at the given time, or on the next RunDue if it has passed
func (s *Scheduler) At(at time.Time, fn func()) *Task {
	return s.schedule(at, 0, fn)
}

func (s *Scheduler) schedule(due time.Time, interval time.Duration, fn func()) *Task {
	s.mu.Lock()
	s.seq++
	task := &Task{
		scheduler: s,
		seq:       s.seq,
		due:       due,
		interval:  interval,
		fn:        fn,
		index:     -1,
	}
	heap.Push(&s.tasks, task)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return task
}

// RunDue fires every task due at the current clock time. A periodic task that
// missed several periods fires once and is rescheduled one interval from now.
func (s *Scheduler) RunDue() int {
	now := s.clock.Now()
	fired := 0

	for {
		s.mu.Lock()
		if len(s.tasks) == 0 || s.tasks[0].due.After(now) {
			s.mu.Unlock()
			return fired
		}

		task := heap.Pop(&s.tasks).(*Task)
		if task.interval > 0 {
			task.due = now.Add(task.interval)
			heap.Push(&s.tasks, task)
		}
		s.mu.Unlock()

		task.fn()
		fired++
	}
}

// Post queues fn to run on the scheduler goroutine
func (s *Scheduler) Post(fn func()) {
	s.posted <- fn
}

// PostContext is Post that gives up once ctx is done. It reports whether fn
// was queued.
func (s *Scheduler) PostContext(ctx context.Context, fn func()) bool {
	select {
	case s.posted <- fn:
		return true
	case <-ctx.Done():
		return false
	}
}

// RunPosted runs any queued posted functions without blocking
func (s *Scheduler) RunPosted() int {
	ran := 0
	for {
		select {
		case fn := <-s.posted:
			fn()
			ran++
		default:
			return ran
		}
	}
}

// Run executes posted functions and due tasks on the calling goroutine until
// the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.RunDue()

		timer := time.NewTimer(s.untilNext())

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case fn := <-s.posted:
			timer.Stop()
			fn()
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (s *Scheduler) untilNext() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tasks) == 0 {
		return idleWait
	}

	wait := s.tasks[0].due.Sub(s.clock.Now())
	if wait < 0 {
		return 0
	}
	return wait
}

// Pending returns the number of scheduled tasks
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every scheduled task
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, task := range s.tasks {
		task.cancelled = true
		task.index = -1
	}
	s.tasks = nil
}

type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	task := x.(*Task)
	task.index = len(*h)
	*h = append(*h, task)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*h = old[:n-1]
	return task
}
