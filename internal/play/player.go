// Package play opens finished recordings in a video player.
package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/audiolibrelab/wffcapture/internal/process"
)

// ErrNoRecordings is returned when the recordings directory holds no video.
var ErrNoRecordings = errors.New("no recordings found")

var videoExts = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".webm": true,
}

// players in order of preference, with the arguments placed before the file.
var players = []struct {
	name string
	args []string
}{
	{"mpv", nil},
	{"vlc", []string{"--play-and-exit"}},
	{"ffplay", []string{"-autoexit"}},
}

type Player struct {
	spawner  process.Spawner
	lookPath func(string) (string, error)
}

func New(spawner process.Spawner) *Player {
	return &Player{spawner: spawner, lookPath: exec.LookPath}
}

// Play opens file and waits for the player to exit.
func (p *Player) Play(ctx context.Context, file string) error {
	if _, err := os.Stat(file); err != nil {
		return fmt.Errorf("recording not found: %s", file)
	}

	name, args, err := p.findPlayer()
	if err != nil {
		return err
	}

	slog.Info("Playing recording", "file", file, "player", name)
	h, err := p.spawner.Spawn(name, append(args, file)...)
	if err != nil {
		return err
	}
	if err := h.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			_ = h.Signal(process.Interrupt)
			return ctx.Err()
		}
		return fmt.Errorf("playback failed with %s: %w", name, err)
	}
	return nil
}

func (p *Player) findPlayer() (string, []string, error) {
	tried := make([]string, 0, len(players))
	for _, pl := range players {
		if _, err := p.lookPath(pl.name); err == nil {
			return pl.name, append([]string(nil), pl.args...), nil
		}
		tried = append(tried, pl.name)
	}
	return "", nil, fmt.Errorf("no video player found (tried: %s)", strings.Join(tried, ", "))
}

// Latest returns the most recently modified recording in dir.
func Latest(dir string) (string, error) {
	var latestFile string
	var latestTime time.Time

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !videoExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if latestFile == "" || info.ModTime().After(latestTime) {
			latestFile = path
			latestTime = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if latestFile == "" {
		return "", fmt.Errorf("%w in %s", ErrNoRecordings, dir)
	}
	return latestFile, nil
}
