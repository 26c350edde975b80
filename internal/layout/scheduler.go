package layout

import (
	"sync"
	"time"
)

// CancelFunc cancels a pending frame request. Calling it more than once, or
// after the frame has run, is a no-op.
type CancelFunc func()

// FrameScheduler delivers animation frames. RequestFrame schedules fn to run
// once on the next frame.
type FrameScheduler interface {
	RequestFrame(fn func(now time.Time)) CancelFunc
}

// frameQueue holds pending frame callbacks keyed by request id.
type frameQueue struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]func(time.Time)
}

func (q *frameQueue) add(fn func(time.Time)) CancelFunc {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		q.pending = map[uint64]func(time.Time){}
	}
	id := q.next
	q.next++
	q.pending[id] = fn
	return func() {
		q.mu.Lock()
		delete(q.pending, id)
		q.mu.Unlock()
	}
}

// take removes and returns every callback queued so far. Callbacks queued
// while these run wait for the next frame.
func (q *frameQueue) take() []func(time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]func(time.Time), 0, len(q.pending))
	for id, fn := range q.pending {
		out = append(out, fn)
		delete(q.pending, id)
	}
	return out
}

func (q *frameQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// TickerScheduler fires queued frame callbacks from a time.Ticker.
type TickerScheduler struct {
	queue  frameQueue
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// NewTickerScheduler starts a scheduler running at fps frames per second.
// Call Stop to release the ticker goroutine.
func NewTickerScheduler(fps int) *TickerScheduler {
	if fps <= 0 {
		fps = 60
	}
	s := &TickerScheduler{
		ticker: time.NewTicker(time.Second / time.Duration(fps)),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *TickerScheduler) loop() {
	for {
		select {
		case <-s.done:
			return
		case now := <-s.ticker.C:
			for _, fn := range s.queue.take() {
				fn(now)
			}
		}
	}
}

// RequestFrame implements FrameScheduler.
func (s *TickerScheduler) RequestFrame(fn func(time.Time)) CancelFunc {
	return s.queue.add(fn)
}

// Stop halts the ticker. Pending callbacks never run.
func (s *TickerScheduler) Stop() {
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.done)
	})
}

// ManualScheduler runs frames only when Flush is called. It drives headless
// layout runs and tests.
type ManualScheduler struct {
	queue frameQueue
}

// RequestFrame implements FrameScheduler.
func (m *ManualScheduler) RequestFrame(fn func(time.Time)) CancelFunc {
	return m.queue.add(fn)
}

// Pending returns the number of queued frame callbacks.
func (m *ManualScheduler) Pending() int {
	return m.queue.len()
}

// Flush runs one frame and returns how many callbacks ran.
func (m *ManualScheduler) Flush(now time.Time) int {
	fns := m.queue.take()
	for _, fn := range fns {
		fn(now)
	}
	return len(fns)
}
