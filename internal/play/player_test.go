package play

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/wffcapture/internal/process/processtest"
)

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	touch(t, filepath.Join(dir, "20260101_000000output.mkv"), base)
	touch(t, filepath.Join(dir, "nested", "clip.webm"), base.Add(2*time.Hour))
	touch(t, filepath.Join(dir, "20260101_010000output.mkv"), base.Add(time.Hour))
	touch(t, filepath.Join(dir, "notes.txt"), base.Add(3*time.Hour))

	latest, err := Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "clip.webm"), latest)
}

func TestLatest_Empty(t *testing.T) {
	_, err := Latest(t.TempDir())
	assert.ErrorIs(t, err, ErrNoRecordings)
}

func TestPlay(t *testing.T) {
	file := filepath.Join(t.TempDir(), "clip.mkv")
	touch(t, file, time.Now())

	spawner := processtest.NewSpawner()
	p := New(spawner)
	p.lookPath = func(name string) (string, error) {
		if name == "vlc" {
			return "/usr/bin/vlc", nil
		}
		return "", exec.ErrNotFound
	}

	done := make(chan error, 1)
	go func() { done <- p.Play(context.Background(), file) }()

	h := <-spawner.Spawned()
	assert.Equal(t, "vlc", h.Name)
	assert.Equal(t, []string{"--play-and-exit", file}, h.Args)

	h.Exit(errors.New("exit status 1"))
	assert.ErrorContains(t, <-done, "playback failed with vlc")
}

func TestPlay_NoPlayer(t *testing.T) {
	file := filepath.Join(t.TempDir(), "clip.mkv")
	touch(t, file, time.Now())

	p := New(processtest.NewSpawner())
	p.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	err := p.Play(context.Background(), file)
	assert.ErrorContains(t, err, "tried: mpv, vlc, ffplay")
}

func TestPlay_MissingFile(t *testing.T) {
	err := New(processtest.NewSpawner()).Play(context.Background(), "/nonexistent/clip.mkv")
	assert.ErrorContains(t, err, "recording not found")
}
