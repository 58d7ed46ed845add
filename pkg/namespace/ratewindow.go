package namespace

import (
	"sync"
	"time"
)

// slidingWindow counts events within the trailing window duration, used
// for per-namespace queries-per-second enforcement (spec §4.9). Old
// timestamps are pruned lazily on each call rather than via a background
// sweep, keeping the type dependency-free of any scheduler.
type slidingWindow struct {
	mu       sync.Mutex
	window   time.Duration
	events   []time.Time
}

func newSlidingWindow(window time.Duration) *slidingWindow {
	return &slidingWindow{window: window}
}

// Count returns the number of events recorded within window ending at now,
// pruning anything older.
func (w *slidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	return len(w.events)
}

// Record adds an event at now.
func (w *slidingWindow) Record(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	w.events = append(w.events, now)
}

func (w *slidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.events) && w.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.events = append([]time.Time(nil), w.events[i:]...)
	}
}
