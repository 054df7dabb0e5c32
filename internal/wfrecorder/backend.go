package wfrecorder

import (
	"fmt"
	"strings"
)

// Backend is an audio backend name understood by wf-recorder.
type Backend string

const (
	BackendDefault    Backend = ""
	BackendPipeWire   Backend = "pipewire"
	BackendPulseAudio Backend = "pulse"
	BackendALSA       Backend = "alsa"
)

// ParseBackend maps a user-facing backend name to the wf-recorder one.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default", "auto":
		return BackendDefault, nil
	case "pipewire":
		return BackendPipeWire, nil
	case "pulseaudio", "pulse":
		return BackendPulseAudio, nil
	case "alsa":
		return BackendALSA, nil
	}
	return BackendDefault, fmt.Errorf("unknown audio backend %q (valid: %s)", name, strings.Join(AvailableBackends(), ", "))
}

// AvailableBackends lists the backend names accepted in configuration.
func AvailableBackends() []string {
	return []string{"Default", "Pipewire", "Pulseaudio", "ALSA"}
}
