package process

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// maxBacklog bounds the lines kept for a late OnOutputLine registration.
const maxBacklog = 64

// ExecSpawner starts programs with os/exec, each in its own process group.
type ExecSpawner struct {
	// WaitDelay bounds how long Wait keeps draining output after the
	// process exits, e.g. when an orphaned child still holds the pipe.
	WaitDelay time.Duration
}

// NewExecSpawner returns a spawner with default settings.
func NewExecSpawner() *ExecSpawner {
	return &ExecSpawner{WaitDelay: 2 * time.Second}
}

// Spawn starts name with args and returns immediately.
func (s *ExecSpawner) Spawn(name string, args ...string) (Handle, error) {
	cmd := exec.Command(name, args...)
	cmd.WaitDelay = s.WaitDelay
	setProcessGroup(cmd)

	h := &execHandle{
		name: name,
		cmd:  cmd,
		done: make(chan struct{}),
	}
	h.stdout = newLineWriter(func(line string) { h.emit(Stdout, line) })
	h.stderr = newLineWriter(func(line string) { h.emit(Stderr, line) })
	cmd.Stdout = h.stdout
	cmd.Stderr = h.stderr

	slog.Debug("Starting process", "command", name, "args", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: name, Err: err}
	}
	slog.Debug("Process started", "command", name, "pid", cmd.Process.Pid)

	go h.reap()
	return h, nil
}

type execHandle struct {
	name string
	cmd  *exec.Cmd

	stdout *lineWriter
	stderr *lineWriter

	mu        sync.Mutex
	listeners []func(Stream, string)
	backlog   []outputLine
	err       error
	done      chan struct{}
}

type outputLine struct {
	stream Stream
	text   string
}

func (h *execHandle) Pid() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) Signal(sig Signal) error {
	select {
	case <-h.done:
		return os.ErrProcessDone
	default:
	}
	slog.Debug("Signalling process", "command", h.name, "pid", h.Pid(), "signal", sig.String())
	return signalGroup(h.cmd.Process, sig)
}

func (h *execHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *execHandle) Done() <-chan struct{} {
	return h.done
}

func (h *execHandle) OnOutputLine(fn func(stream Stream, line string)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	var replay []outputLine
	if len(h.listeners) == 1 {
		replay = h.backlog
		h.backlog = nil
	}
	h.mu.Unlock()

	for _, l := range replay {
		fn(l.stream, l.text)
	}
}

func (h *execHandle) emit(stream Stream, line string) {
	slog.Debug("Process output", "command", h.name, "stream", string(stream), "line", line)

	h.mu.Lock()
	if len(h.listeners) == 0 {
		if len(h.backlog) < maxBacklog {
			h.backlog = append(h.backlog, outputLine{stream: stream, text: line})
		}
		h.mu.Unlock()
		return
	}
	listeners := make([]func(Stream, string), len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(stream, line)
	}
}

// reap waits for the process so it never lingers as a zombie, then
// publishes the exit status.
func (h *execHandle) reap() {
	err := h.cmd.Wait()
	h.stdout.Flush()
	h.stderr.Flush()

	state := "unknown"
	if h.cmd.ProcessState != nil {
		state = h.cmd.ProcessState.String()
	}
	slog.Debug("Process exited", "command", h.name, "pid", h.cmd.Process.Pid, "state", state)

	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	close(h.done)
}
