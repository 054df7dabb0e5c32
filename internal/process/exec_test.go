//go:build unix

package process

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitTimeout(t *testing.T, h Handle) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := h.Wait(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "process did not exit in time")
	return err
}

func TestExecSpawner_OutputLines(t *testing.T) {
	s := NewExecSpawner()
	h, err := s.Spawn("/bin/sh", "-c", "echo first; echo second; printf tail; echo oops 1>&2")
	require.NoError(t, err)

	var mu sync.Mutex
	var stdout, stderr []string
	h.OnOutputLine(func(stream Stream, line string) {
		mu.Lock()
		defer mu.Unlock()
		if stream == Stdout {
			stdout = append(stdout, line)
		} else {
			stderr = append(stderr, line)
		}
	})

	require.NoError(t, waitTimeout(t, h))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "tail"}, stdout)
	assert.Equal(t, []string{"oops"}, stderr)
}

func TestExecSpawner_MissingBinary(t *testing.T) {
	s := NewExecSpawner()
	_, err := s.Spawn("wffcapture-no-such-binary")
	require.Error(t, err)

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr))
	assert.Equal(t, "wffcapture-no-such-binary", spawnErr.Command)
	assert.True(t, errors.Is(err, exec.ErrNotFound))
}

func TestExecSpawner_InterruptStopsProcess(t *testing.T) {
	s := NewExecSpawner()
	h, err := s.Spawn("sleep", "30")
	require.NoError(t, err)
	assert.Greater(t, h.Pid(), 0)

	require.NoError(t, h.Signal(Interrupt))
	err = waitTimeout(t, h)

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "expected exit error, got %v", err)

	select {
	case <-h.Done():
	default:
		t.Fatal("Done not closed after Wait returned")
	}
}

func TestExecSpawner_LingeringChildDoesNotBlockWait(t *testing.T) {
	s := NewExecSpawner()
	s.WaitDelay = 500 * time.Millisecond
	// Background jobs of a non-interactive shell ignore SIGINT, so the
	// sleep outlives the shell while holding its stdout.
	h, err := s.Spawn("/bin/sh", "-c", "sleep 2 & wait")
	require.NoError(t, err)

	require.NoError(t, h.Signal(Interrupt))
	start := time.Now()
	waitTimeout(t, h)
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}

func TestExecSpawner_SignalAfterExit(t *testing.T) {
	s := NewExecSpawner()
	h, err := s.Spawn("true")
	require.NoError(t, err)
	require.NoError(t, waitTimeout(t, h))

	assert.Error(t, h.Signal(Interrupt))
}

func TestExecHandle_WaitHonoursContext(t *testing.T) {
	s := NewExecSpawner()
	h, err := s.Spawn("sleep", "30")
	require.NoError(t, err)
	defer h.Signal(Kill)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Wait(ctx), context.DeadlineExceeded)
}

func TestLineWriter_SplitsAcrossWrites(t *testing.T) {
	var lines []string
	w := newLineWriter(func(line string) { lines = append(lines, line) })

	w.Write([]byte("par"))
	w.Write([]byte("tial\r\nnext\nla"))
	w.Write([]byte("st"))
	w.Flush()

	assert.Equal(t, []string{"partial", "next", "last"}, lines)
}

func TestSignal_String(t *testing.T) {
	assert.Equal(t, "interrupt", Interrupt.String())
	assert.Equal(t, "kill", Kill.String())
	assert.Equal(t, "signal(7)", Signal(7).String())
}
