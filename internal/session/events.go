package session

import (
	"time"
)

// EventKind distinguishes controller notifications.
type EventKind int

const (
	// EventStateChanged is published on every state transition.
	EventStateChanged EventKind = iota
	// EventTick is published every poll interval while recording.
	EventTick
)

// Event is a controller notification for observers such as a UI.
type Event struct {
	Kind      EventKind
	SessionID string
	Previous  State
	State     State
	Elapsed   time.Duration
	Err       error
}

// Subscribe registers fn for every future event. Listeners are called
// outside the controller lock, possibly from different goroutines, and must
// not block.
func (c *Controller) Subscribe(fn func(Event)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) publish(events ...Event) {
	if len(events) == 0 {
		return
	}

	c.listenersMu.RLock()
	listeners := make([]func(Event), len(c.listeners))
	copy(listeners, c.listeners)
	c.listenersMu.RUnlock()

	for _, ev := range events {
		for _, fn := range listeners {
			fn(ev)
		}
	}
}
