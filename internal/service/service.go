package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiolibrelab/wffcapture/internal/config"
	"github.com/audiolibrelab/wffcapture/internal/process"
	"github.com/audiolibrelab/wffcapture/internal/region"
	"github.com/audiolibrelab/wffcapture/internal/session"
	"github.com/audiolibrelab/wffcapture/internal/wfrecorder"
)

var (
	ErrBusy             = errors.New("a session is already active")
	ErrInvalidOptions   = errors.New("invalid recording options")
	ErrNotCountingDown  = errors.New("no countdown in progress")
	ErrNotRecording     = errors.New("not recording")
	ErrNoConfigFile     = errors.New("no config file loaded")
	ErrProfileWhileBusy = errors.New("cannot change profile while a session is active")
)

// Service is the recording API shared by the CLI and the HTTP server.
type Service interface {
	// Recording operations
	StartRecording(ctx context.Context, opts StartOptions) error
	CancelCountdown() error
	StopRecording(ctx context.Context) error
	GetRecordingStatus() Status
	Subscribe(fn func(session.Event))

	// Configuration operations
	LoadProfile(profile string) error
	GetConfig() *config.Config

	SelectRegion(ctx context.Context) (string, error)
	GetLastError() string
}

// StartOptions overrides the active profile for one recording. Nil or
// empty fields keep the profile value.
type StartOptions struct {
	Delay       *int   `json:"delay,omitempty"`
	Output      string `json:"output,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Framerate   string `json:"framerate,omitempty"`
	Region      string `json:"region,omitempty"`
	AudioDevice string `json:"audio_device,omitempty"`
}

// Status is the externally visible state of the current session.
type Status struct {
	SessionID     string        `json:"session_id"`
	State         session.State `json:"state"`
	Elapsed       string        `json:"elapsed,omitempty"`
	Filename      string        `json:"filename,omitempty"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	ActiveProfile string        `json:"active_profile"`
	LastError     string        `json:"last_error,omitempty"`
}

// CaptureService is the Service implementation backed by a session.Controller.
type CaptureService struct {
	spawner    process.Spawner
	configFile string
	now        func() time.Time

	countdownOut func(process.Stream, string)

	// starting is held from the busy check until Start has returned, so
	// only one caller can claim an idle controller.
	starting atomic.Bool

	mu         sync.RWMutex
	cfg        *config.Config
	controller *session.Controller

	listenersMu sync.RWMutex
	listeners   []func(session.Event)

	lastError      string
	lastErrorMutex sync.RWMutex
}

// Option configures a CaptureService.
type Option func(*CaptureService)

// WithCountdownOutput passes the countdown helper's output lines to fn.
func WithCountdownOutput(fn func(stream process.Stream, line string)) Option {
	return func(s *CaptureService) {
		s.countdownOut = fn
	}
}

// New creates a service for cfg. configFile is used by LoadProfile and may
// be empty when running on built-in defaults.
func New(cfg *config.Config, configFile string, spawner process.Spawner, opts ...Option) *CaptureService {
	s := &CaptureService{
		spawner:    spawner,
		configFile: configFile,
		now:        time.Now,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.controller = s.newController(cfg)
	return s
}

func (s *CaptureService) newController(cfg *config.Config) *session.Controller {
	opts := []session.Option{session.WithCountdown(countdownCommand(cfg))}
	if cfg.Controller.PollInterval > 0 {
		opts = append(opts, session.WithPollInterval(cfg.Controller.PollInterval))
	}
	if s.countdownOut != nil {
		opts = append(opts, session.WithCountdownOutput(s.countdownOut))
	}
	ctrl := session.NewController(s.spawner, opts...)
	ctrl.Subscribe(s.forward)
	return ctrl
}

func (s *CaptureService) forward(ev session.Event) {
	s.listenersMu.RLock()
	listeners := append(([]func(session.Event))(nil), s.listeners...)
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// countdownCommand resolves the configured helper, defaulting to this
// binary's countdown subcommand.
func countdownCommand(cfg *config.Config) session.CountdownCommand {
	if cfg.Controller.CountdownCommand != "" {
		return session.CountdownCommand{Path: cfg.Controller.CountdownCommand}
	}
	self, err := os.Executable()
	if err != nil {
		slog.Warn("Cannot resolve own executable, using countdown from PATH", "error", err)
		return session.CountdownCommand{Path: "countdown"}
	}
	return session.CountdownCommand{Path: self, Args: []string{"countdown"}}
}

// Controller exposes the underlying session controller.
func (s *CaptureService) Controller() *session.Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controller
}

// StartRecording resolves the recording options and runs the session. With
// a delay it blocks until the countdown ends; cancelling ctx cancels it.
func (s *CaptureService) StartRecording(ctx context.Context, opts StartOptions) error {
	if !s.starting.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.starting.Store(false)

	s.mu.RLock()
	cfg := s.cfg
	ctrl := s.controller
	s.mu.RUnlock()

	if ctrl.Snapshot().State.Active() {
		return ErrBusy
	}

	rec, delay, err := s.resolve(cfg, opts)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		s.setLastError(err.Error())
		return err
	}

	s.clearLastError()
	ctrl.Reset()

	slog.Debug("Service.StartRecording called", "file", rec.Filename, "delay", delay)
	if err := ctrl.Start(ctx, rec, delay); err != nil {
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		return err
	}
	return nil
}

func (s *CaptureService) resolve(cfg *config.Config, opts StartOptions) (wfrecorder.Options, int, error) {
	rec := cfg.Recording
	delay := cfg.Delay
	if opts.Delay != nil {
		delay = *opts.Delay
	}
	setIfNotEmpty(&rec.Output, opts.Output)
	setIfNotEmpty(&rec.Filename, opts.Filename)
	setIfNotEmpty(&rec.Framerate, opts.Framerate)
	setIfNotEmpty(&rec.Region, opts.Region)
	setIfNotEmpty(&rec.AudioDevice, opts.AudioDevice)

	if delay < 0 {
		delay = 0
	}
	if err := rec.ValidateFormat(); err != nil {
		return rec, 0, err
	}
	if rec.Filename == "" {
		name, err := NewFilename(cfg.RecordingsDirectory, s.now())
		if err != nil {
			return rec, 0, err
		}
		rec.Filename = name
	}
	if err := rec.Validate(); err != nil {
		return rec, 0, err
	}
	return rec, delay, nil
}

// NewFilename returns a timestamped .mkv path in dir, creating dir if needed.
func NewFilename(dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create recordings directory: %w", err)
	}
	return filepath.Join(dir, now.Format("20060102_150405")+"output.mkv"), nil
}

// CancelCountdown aborts a pending countdown.
func (s *CaptureService) CancelCountdown() error {
	if !s.Controller().Cancel() {
		return ErrNotCountingDown
	}
	return nil
}

// StopRecording stops the recorder and waits up to the configured stop
// timeout for it to finalise the file.
func (s *CaptureService) StopRecording(ctx context.Context) error {
	s.mu.RLock()
	ctrl := s.controller
	timeout := s.cfg.Controller.StopTimeout
	s.mu.RUnlock()

	if !ctrl.Stop() {
		return ErrNotRecording
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := ctrl.AwaitRecorderExit(ctx); err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop recording: %v", err))
		return err
	}
	return nil
}

// GetRecordingStatus returns the current session state.
func (s *CaptureService) GetRecordingStatus() Status {
	s.mu.RLock()
	profile := s.cfg.Profile
	ctrl := s.controller
	s.mu.RUnlock()

	snap := ctrl.Snapshot()
	st := Status{
		SessionID:     snap.SessionID,
		State:         snap.State,
		Filename:      snap.Config.Filename,
		ActiveProfile: profile,
		LastError:     s.GetLastError(),
	}
	if !snap.StartedAt.IsZero() {
		started := snap.StartedAt
		st.StartedAt = &started
		st.Elapsed = session.FormatElapsed(snap.Elapsed)
	}
	if snap.Err != nil && st.LastError == "" {
		st.LastError = snap.Err.Error()
	}
	return st
}

// Subscribe registers fn for session events. Subscriptions survive
// LoadProfile.
func (s *CaptureService) Subscribe(fn func(session.Event)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// LoadProfile switches to another profile. It fails while a session is active.
func (s *CaptureService) LoadProfile(profile string) error {
	if s.configFile == "" {
		return ErrNoConfigFile
	}
	newCfg, err := config.LoadWithProfile(s.configFile, profile)
	if err != nil {
		return fmt.Errorf("failed to load profile '%s': %w", profile, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.starting.Load() || s.controller.Snapshot().State.Active() {
		return ErrProfileWhileBusy
	}
	s.cfg = newCfg
	s.controller = s.newController(newCfg)
	slog.Info("Profile loaded", "profile", newCfg.Profile)
	return nil
}

// GetConfig returns the current configuration
func (s *CaptureService) GetConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SelectRegion lets the user draw a region with slurp.
func (s *CaptureService) SelectRegion(ctx context.Context) (string, error) {
	r, err := region.Select(ctx, s.spawner)
	if err != nil {
		s.setLastError(fmt.Sprintf("Region selection failed: %v", err))
		return "", err
	}
	return r, nil
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// GetLastError returns the last error message (thread-safe)
func (s *CaptureService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *CaptureService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

func (s *CaptureService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}
