// Package process wraps external programs behind a small handle contract:
// spawn, signal, wait and line-oriented output callbacks.
package process

import (
	"context"
	"fmt"
)

// Signal is a signal kind a Handle can deliver.
type Signal int

const (
	// Interrupt asks the process to finish gracefully (SIGINT).
	Interrupt Signal = iota
	// Kill terminates the process immediately (SIGKILL).
	Kill
)

func (s Signal) String() string {
	switch s {
	case Interrupt:
		return "interrupt"
	case Kill:
		return "kill"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Stream identifies the output stream a line was read from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Handle is a running (or exited) external process.
type Handle interface {
	// Pid returns the process id.
	Pid() int

	// Signal delivers sig to the process and its children. Signalling a
	// process that already exited returns an error, which callers may
	// treat as benign.
	Signal(sig Signal) error

	// Wait blocks until the process exits or ctx is done.
	Wait(ctx context.Context) error

	// Done is closed once the process has exited and its output is drained.
	Done() <-chan struct{}

	// OnOutputLine registers fn for every stdout/stderr line. Lines written
	// before the first registration are replayed to it.
	OnOutputLine(fn func(stream Stream, line string))
}

// Spawner starts external programs.
type Spawner interface {
	Spawn(name string, args ...string) (Handle, error)
}

// SpawnError reports a program that could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
