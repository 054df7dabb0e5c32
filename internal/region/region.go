// Package region asks the user for a screen area with slurp.
package region

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/audiolibrelab/wffcapture/internal/process"
	"github.com/audiolibrelab/wffcapture/internal/wfrecorder"
)

// Binary is the region selection tool.
const Binary = "slurp"

// Screen selects the whole output.
const Screen = wfrecorder.FullScreen

// ErrNoSelection is returned when slurp exits without printing a region.
var ErrNoSelection = errors.New("no region selected")

// Select runs slurp and returns the geometry the user drew, e.g.
// "10,20 640x480". Cancelling the selection in slurp is an error.
func Select(ctx context.Context, spawner process.Spawner) (string, error) {
	h, err := spawner.Spawn(Binary)
	if err != nil {
		return "", err
	}

	var mu sync.Mutex
	var selection string
	h.OnOutputLine(func(stream process.Stream, line string) {
		line = strings.TrimSpace(line)
		if stream != process.Stdout || line == "" {
			return
		}
		mu.Lock()
		selection = line
		mu.Unlock()
	})

	if err := h.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			_ = h.Signal(process.Interrupt)
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%s failed: %w", Binary, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if selection == "" {
		return "", ErrNoSelection
	}

	slog.Debug("Region selected", "region", selection)
	return selection, nil
}
