// Package session sequences one recording attempt: an optional countdown,
// the recorder process, elapsed-time reporting and teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/wffcapture/internal/process"
	"github.com/audiolibrelab/wffcapture/internal/wfrecorder"
)

// killGrace bounds the wait for a recorder after it was force killed.
const killGrace = 2 * time.Second

// CountdownCommand is the countdown helper to run before recording. Args
// are placed before the positional "<output> <delaySeconds>" arguments.
type CountdownCommand struct {
	Path string
	Args []string
}

// attempt is the mutable lifecycle object of one recording attempt.
// Snapshot is its public view.
type attempt struct {
	ID     string
	State  State
	Config wfrecorder.Options
	Delay  int

	StartedAt time.Time
	Err       error

	countdown  process.Handle
	recorder   process.Handle
	timer      *Timer
	stopTicker context.CancelFunc
}

// Snapshot is a read-only copy of the current session.
type Snapshot struct {
	SessionID string
	State     State
	Config    wfrecorder.Options
	Delay     int
	StartedAt time.Time
	Elapsed   time.Duration
	Err       error
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithPollInterval sets how often tick events are published.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.pollInterval = d
	}
}

// WithCountdown sets the countdown helper command.
func WithCountdown(cmd CountdownCommand) Option {
	return func(c *Controller) {
		c.countdown = cmd
	}
}

// WithCountdownOutput receives every line the countdown helper prints,
// so hosts can show it.
func WithCountdownOutput(fn func(stream process.Stream, line string)) Option {
	return func(c *Controller) {
		c.countdownOut = fn
	}
}

// WithRecorderBinary overrides the wf-recorder executable.
func WithRecorderBinary(name string) Option {
	return func(c *Controller) {
		c.recorderBinary = name
	}
}

// Controller owns the lifecycle of a single session at a time. Calls made
// in the wrong state are ignored rather than reported.
type Controller struct {
	spawner        process.Spawner
	countdown      CountdownCommand
	countdownOut   func(process.Stream, string)
	recorderBinary string
	pollInterval   time.Duration
	now            func() time.Time

	mu           sync.Mutex
	session      *attempt
	lastRecorder process.Handle

	// cancelled is set by Cancel and read by Start once the countdown
	// wait returns.
	cancelled atomic.Bool

	listenersMu sync.RWMutex
	listeners   []func(Event)
}

// NewController returns an idle controller spawning processes through spawner.
func NewController(spawner process.Spawner, opts ...Option) *Controller {
	c := &Controller{
		spawner:        spawner,
		countdown:      CountdownCommand{Path: "countdown"},
		recorderBinary: wfrecorder.Binary,
		pollInterval:   DefaultPollInterval,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.session = newAttempt()
	return c
}

func newAttempt() *attempt {
	return &attempt{ID: uuid.New().String(), State: Idle}
}

// Start runs the countdown, if delaySeconds > 0, then launches the
// recorder with cfg. With a countdown it blocks until the countdown exits
// or is cancelled; cancelling ctx during that wait acts like Cancel. It
// does nothing unless the session is Idle. A spawn failure ends the
// session Cancelled and is returned.
func (c *Controller) Start(ctx context.Context, cfg wfrecorder.Options, delaySeconds int) error {
	c.mu.Lock()
	s := c.session
	if s.State != Idle {
		c.mu.Unlock()
		slog.Debug("Start ignored", "session_id", s.ID, "state", s.State.String())
		return nil
	}
	s.Config = cfg
	s.Delay = delaySeconds
	c.cancelled.Store(false)

	if delaySeconds > 0 {
		args := append(append([]string(nil), c.countdown.Args...), wfrecorder.CountdownArgs(cfg.Output, delaySeconds)...)
		h, err := c.spawner.Spawn(c.countdown.Path, args...)
		if err != nil {
			ev := c.finishLocked(s, Cancelled, err)
			c.mu.Unlock()
			c.publish(ev)
			slog.Error("Countdown failed to start", "session_id", s.ID, "error", err)
			return err
		}
		if c.countdownOut != nil {
			h.OnOutputLine(c.countdownOut)
		}
		s.countdown = h
		ev := c.transitionLocked(s, CountingDown)
		c.mu.Unlock()
		c.publish(ev)

		slog.Info("Countdown started", "session_id", s.ID, "output", cfg.Output, "delay_seconds", delaySeconds)
		if err := h.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				slog.Info("Countdown wait aborted", "session_id", s.ID, "error", ctx.Err())
				c.Cancel()
			} else {
				slog.Debug("Countdown exited with error", "session_id", s.ID, "error", err)
			}
		}

		c.mu.Lock()
		if c.cancelled.Load() || s.State != CountingDown {
			c.mu.Unlock()
			slog.Info("Countdown cancelled, recorder not started", "session_id", s.ID)
			return nil
		}
		s.countdown = nil
	}

	events, err := c.startRecorderLocked(s)
	c.mu.Unlock()
	c.publish(events...)
	return err
}

func (c *Controller) startRecorderLocked(s *attempt) ([]Event, error) {
	h, err := c.spawner.Spawn(c.recorderBinary, wfrecorder.Args(s.Config)...)
	if err != nil {
		slog.Error("Recorder failed to start", "session_id", s.ID, "command", c.recorderBinary, "error", err)
		return []Event{c.finishLocked(s, Cancelled, err)}, err
	}

	s.recorder = h
	s.timer = NewTimer(c.now)
	s.timer.Start()
	s.StartedAt = c.now()

	tickCtx, cancel := context.WithCancel(context.Background())
	s.stopTicker = cancel
	go s.timer.Run(tickCtx, c.pollInterval, func(elapsed time.Duration) {
		c.mu.Lock()
		recording := c.session == s && s.State == Recording
		c.mu.Unlock()
		if recording {
			c.publish(Event{Kind: EventTick, SessionID: s.ID, Previous: Recording, State: Recording, Elapsed: elapsed})
		}
	})
	go c.watchRecorder(s, h)

	slog.Info("Recording started", "session_id", s.ID, "pid", h.Pid(), "file", s.Config.Filename)
	return []Event{c.transitionLocked(s, Recording)}, nil
}

// watchRecorder ends the session if the recorder exits on its own.
func (c *Controller) watchRecorder(s *attempt, h process.Handle) {
	<-h.Done()
	exitErr := h.Wait(context.Background())

	c.mu.Lock()
	if s.State != Recording || s.recorder != h {
		c.mu.Unlock()
		return
	}
	err := errors.New("recorder exited before stop")
	if exitErr != nil {
		err = fmt.Errorf("recorder exited before stop: %w", exitErr)
	}
	c.lastRecorder = h
	ev := c.finishLocked(s, Stopped, err)
	c.mu.Unlock()

	slog.Warn("Recorder exited unexpectedly", "session_id", s.ID, "error", err)
	c.publish(ev)
}

// Cancel aborts a pending countdown. It only acts in CountingDown and
// reports whether it did.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	s := c.session
	if s.State != CountingDown {
		c.mu.Unlock()
		slog.Debug("Cancel ignored", "session_id", s.ID, "state", s.State.String())
		return false
	}

	c.cancelled.Store(true)
	if err := s.countdown.Signal(process.Interrupt); err != nil {
		slog.Debug("Countdown interrupt not delivered", "session_id", s.ID, "error", err)
	}
	ev := c.finishLocked(s, Cancelled, nil)
	c.mu.Unlock()

	slog.Info("Countdown cancelled", "session_id", s.ID)
	c.publish(ev)
	return true
}

// Stop interrupts the recorder so it can finalise its file. It only acts
// in Recording and reports whether it did. Use AwaitRecorderExit to wait
// for the file to be written.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	s := c.session
	if s.State != Recording {
		c.mu.Unlock()
		slog.Debug("Stop ignored", "session_id", s.ID, "state", s.State.String())
		return false
	}

	h := s.recorder
	if err := h.Signal(process.Interrupt); err != nil {
		slog.Debug("Recorder interrupt not delivered", "session_id", s.ID, "error", err)
	}
	c.lastRecorder = h
	ev := c.finishLocked(s, Stopped, nil)
	elapsed := s.timer.Elapsed()
	c.mu.Unlock()

	slog.Info("Recording stopped", "session_id", s.ID, "elapsed", FormatElapsed(elapsed), "file", s.Config.Filename)
	c.publish(ev)
	return true
}

// ElapsedTime returns the recording duration as HH:MM:SS:ff. The second
// result is false outside Recording.
func (c *Controller) ElapsedTime() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s.State != Recording {
		return "", false
	}
	return FormatElapsed(s.timer.Elapsed()), true
}

// Reset replaces a Stopped or Cancelled session with a fresh Idle one.
func (c *Controller) Reset() bool {
	c.mu.Lock()
	prev := c.session
	if !prev.State.Terminal() {
		c.mu.Unlock()
		return false
	}
	c.session = newAttempt()
	ev := Event{Kind: EventStateChanged, SessionID: c.session.ID, Previous: prev.State, State: Idle}
	c.mu.Unlock()

	slog.Debug("Session reset", "previous_session_id", prev.ID, "session_id", ev.SessionID)
	c.publish(ev)
	return true
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	snap := Snapshot{
		SessionID: s.ID,
		State:     s.State,
		Config:    s.Config,
		Delay:     s.Delay,
		StartedAt: s.StartedAt,
		Err:       s.Err,
	}
	if s.timer != nil {
		snap.Elapsed = s.timer.Elapsed()
	}
	return snap
}

// AwaitRecorderExit waits for the last stopped recorder to exit. If ctx
// ends first the recorder is killed and an error is returned.
func (c *Controller) AwaitRecorderExit(ctx context.Context) error {
	c.mu.Lock()
	h := c.lastRecorder
	c.mu.Unlock()

	if h == nil {
		return nil
	}

	select {
	case <-h.Done():
		return nil
	case <-ctx.Done():
	}

	slog.Warn("Recorder did not exit in time, killing", "pid", h.Pid())
	if err := h.Signal(process.Kill); err != nil {
		slog.Debug("Recorder kill not delivered", "pid", h.Pid(), "error", err)
	}
	select {
	case <-h.Done():
	case <-time.After(killGrace):
	}
	return fmt.Errorf("recorder killed after timeout: %w", ctx.Err())
}

func (c *Controller) transitionLocked(s *attempt, next State) Event {
	prev := s.State
	s.State = next
	slog.Debug("Session state changed", "session_id", s.ID, "from", prev.String(), "to", next.String())
	return Event{Kind: EventStateChanged, SessionID: s.ID, Previous: prev, State: next, Err: s.Err}
}

// finishLocked moves s to a terminal state and drops its process handles.
func (c *Controller) finishLocked(s *attempt, next State, err error) Event {
	if s.stopTicker != nil {
		s.stopTicker()
		s.stopTicker = nil
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.countdown = nil
	s.recorder = nil
	s.Err = err
	return c.transitionLocked(s, next)
}
