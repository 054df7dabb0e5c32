package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in       time.Duration
		expected string
	}{
		{0, "00:00:00:00"},
		{-time.Second, "00:00:00:00"},
		{9 * time.Millisecond, "00:00:00:00"},
		{1230 * time.Millisecond, "00:00:01:23"},
		{59*time.Minute + 59*time.Second + 999*time.Millisecond, "00:59:59:99"},
		{25*time.Hour + 30*time.Second, "25:00:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatElapsed(tt.in))
		})
	}
}

func TestTimer_StopFreezesElapsed(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock.Now)

	assert.Zero(t, timer.Elapsed())

	timer.Start()
	clock.Advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, timer.Elapsed())

	assert.Equal(t, 3*time.Second, timer.Stop())
	clock.Advance(time.Minute)
	assert.Equal(t, 3*time.Second, timer.Elapsed())
}

func TestTimer_RunReportsUntilCancelled(t *testing.T) {
	timer := NewTimer(nil)
	timer.Start()

	ctx, cancel := context.WithCancel(context.Background())
	reports := make(chan time.Duration, 100)
	finished := make(chan struct{})
	go func() {
		timer.Run(ctx, 5*time.Millisecond, func(d time.Duration) { reports <- d })
		close(finished)
	}()

	var last time.Duration
	for i := 0; i < 3; i++ {
		select {
		case d := <-reports:
			assert.GreaterOrEqual(t, d, last)
			last = d
		case <-time.After(time.Second):
			t.Fatal("no tick received")
		}
	}

	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
		terminal bool
		active   bool
	}{
		{Idle, "idle", false, false},
		{CountingDown, "counting_down", false, true},
		{Recording, "recording", false, true},
		{Stopped, "stopped", true, false},
		{Cancelled, "cancelled", true, false},
		{State(42), "unknown", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
			assert.Equal(t, tt.terminal, tt.state.Terminal())
			assert.Equal(t, tt.active, tt.state.Active())
		})
	}
}
