package wfrecorder

import (
	"strconv"
)

// Args returns the wf-recorder argument list for o. The list is passed to
// the process directly, so no value is quoted.
func Args(o Options) []string {
	args := []string{
		"--overwrite",
		"--output=" + o.Output,
		"-f", o.Filename,
	}

	if !isDefault(o.Framerate) {
		args = append(args, "--framerate="+o.Framerate)
	}
	if !isDefault(o.VideoCodec) {
		args = append(args, "--codec="+o.VideoCodec)
	}
	if !isDefault(o.AudioCodec) {
		args = append(args, "--audio-codec="+o.AudioCodec)
	}
	if !o.Dmabuf {
		args = append(args, "--no-dmabuf")
	}
	if !o.Damage {
		args = append(args, "--no-damage")
	}
	if !IsFullScreen(o.Region) {
		args = append(args, "--geometry="+o.Region)
	}
	if backend, err := ParseBackend(o.AudioBackend); err == nil && backend != BackendDefault {
		args = append(args, "--audio-backend="+string(backend))
	}
	if hasAudio(o.AudioDevice) {
		args = append(args, "--audio="+o.AudioDevice)
	}

	return args
}

// CountdownArgs returns the positional arguments of the countdown helper.
func CountdownArgs(output string, delaySeconds int) []string {
	return []string{output, strconv.Itoa(delaySeconds)}
}
