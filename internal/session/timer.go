package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultPollInterval is how often a running Timer reports elapsed time.
const DefaultPollInterval = 100 * time.Millisecond

// Timer measures how long a recording has been running.
type Timer struct {
	now func() time.Time

	mu      sync.Mutex
	start   time.Time
	running bool
	elapsed time.Duration
}

// NewTimer returns a stopped timer reading time from now. time.Now
// readings carry a monotonic clock, so wall clock jumps do not show up.
func NewTimer(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now}
}

// Start begins measuring from zero.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.start = t.now()
	t.elapsed = 0
	t.running = true
}

// Stop freezes the timer and returns the final duration.
func (t *Timer) Stop() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sampleLocked()
	t.running = false
	return t.elapsed
}

// Elapsed returns the accumulated duration. Successive calls never go
// backwards, even if the clock does.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sampleLocked()
	return t.elapsed
}

func (t *Timer) sampleLocked() {
	if !t.running {
		return
	}
	if d := t.now().Sub(t.start); d > t.elapsed {
		t.elapsed = d
	}
}

// Run calls fn with the elapsed time every period until ctx is done.
func (t *Timer) Run(ctx context.Context, period time.Duration, fn func(elapsed time.Duration)) {
	if period <= 0 {
		period = DefaultPollInterval
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(t.Elapsed())
		}
	}
}

// FormatElapsed renders d as HH:MM:SS:ff, ff being centiseconds.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := int64(d / (10 * time.Millisecond))
	hours := cs / 360000
	minutes := (cs / 6000) % 60
	seconds := (cs / 100) % 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, cs%100)
}
