// Package processtest provides an in-memory process.Spawner for tests.
package processtest

import (
	"context"
	"os"
	"sync"

	"github.com/audiolibrelab/wffcapture/internal/process"
)

// Spawner records every Spawn call and hands out fake handles.
type Spawner struct {
	// Fail maps a command name to the error its Spawn returns.
	Fail map[string]error

	// IgnoreSignals keeps fake processes running after an Interrupt.
	IgnoreSignals bool

	mu      sync.Mutex
	handles []*Handle
	spawned chan *Handle
	nextPid int
}

// NewSpawner returns a spawner whose processes exit when interrupted.
func NewSpawner() *Spawner {
	return &Spawner{
		Fail:    map[string]error{},
		spawned: make(chan *Handle, 32),
		nextPid: 1000,
	}
}

func (s *Spawner) Spawn(name string, args ...string) (process.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.Fail[name]; ok {
		return nil, &process.SpawnError{Command: name, Err: err}
	}

	s.nextPid++
	h := &Handle{
		Name:          name,
		Args:          append([]string(nil), args...),
		pid:           s.nextPid,
		ignoreSignals: s.IgnoreSignals,
		done:          make(chan struct{}),
	}
	s.handles = append(s.handles, h)
	s.spawned <- h
	return h, nil
}

// Spawned delivers handles in spawn order.
func (s *Spawner) Spawned() <-chan *Handle {
	return s.spawned
}

// Handles returns every handle spawned so far.
func (s *Spawner) Handles() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Handle(nil), s.handles...)
}

// Count returns how many times name was spawned.
func (s *Spawner) Count(name string) int {
	n := 0
	for _, h := range s.Handles() {
		if h.Name == name {
			n++
		}
	}
	return n
}

// Handle is a fake process controlled by the test.
type Handle struct {
	Name string
	Args []string

	pid           int
	ignoreSignals bool

	mu        sync.Mutex
	signals   []process.Signal
	listeners []func(process.Stream, string)
	backlog   []line
	exitErr   error
	done      chan struct{}
	once      sync.Once
}

func (h *Handle) Pid() int {
	return h.pid
}

func (h *Handle) Signal(sig process.Signal) error {
	select {
	case <-h.done:
		return os.ErrProcessDone
	default:
	}

	h.mu.Lock()
	h.signals = append(h.signals, sig)
	h.mu.Unlock()

	if sig == process.Kill || !h.ignoreSignals {
		h.Exit(nil)
	}
	return nil
}

func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.exitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

type line struct {
	stream process.Stream
	text   string
}

// OnOutputLine registers fn. Lines emitted before the first listener are
// replayed to it, like the exec handle does.
func (h *Handle) OnOutputLine(fn func(stream process.Stream, text string)) {
	h.mu.Lock()
	backlog := h.backlog
	h.backlog = nil
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()

	for _, l := range backlog {
		fn(l.stream, l.text)
	}
}

// Emit sends text to every registered listener.
func (h *Handle) Emit(stream process.Stream, text string) {
	h.mu.Lock()
	if len(h.listeners) == 0 {
		h.backlog = append(h.backlog, line{stream, text})
		h.mu.Unlock()
		return
	}
	listeners := append(([]func(process.Stream, string))(nil), h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(stream, text)
	}
}

// Exit marks the process as exited with err. Later calls are ignored.
func (h *Handle) Exit(err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.exitErr = err
		h.mu.Unlock()
		close(h.done)
	})
}

// Signals returns the signals delivered so far.
func (h *Handle) Signals() []process.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]process.Signal(nil), h.signals...)
}

// Exited reports whether the process has exited.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
