// Package wfrecorder builds command lines for wf-recorder and the
// countdown helper.
package wfrecorder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Binary is the recorder executable.
const Binary = "wf-recorder"

// Sentinel values meaning "leave the wf-recorder default in place".
const (
	Default    = "Default"
	FullScreen = "Screen"
	NoAudio    = "None"
)

// Options is the immutable set of parameters for one recording.
type Options struct {
	Output       string `mapstructure:"output" yaml:"output" json:"output"`
	Filename     string `mapstructure:"filename" yaml:"filename" json:"filename"`
	Framerate    string `mapstructure:"framerate" yaml:"framerate" json:"framerate"`
	VideoCodec   string `mapstructure:"video_codec" yaml:"video_codec" json:"video_codec"`
	AudioCodec   string `mapstructure:"audio_codec" yaml:"audio_codec" json:"audio_codec"`
	Region       string `mapstructure:"region" yaml:"region" json:"region"`
	Dmabuf       bool   `mapstructure:"dmabuf" yaml:"dmabuf" json:"dmabuf"`
	Damage       bool   `mapstructure:"damage" yaml:"damage" json:"damage"`
	AudioBackend string `mapstructure:"audio_backend" yaml:"audio_backend" json:"audio_backend"`
	AudioDevice  string `mapstructure:"audio_device" yaml:"audio_device" json:"audio_device"`
}

// DefaultOptions returns options that leave every wf-recorder default alone.
func DefaultOptions() Options {
	return Options{
		Framerate:    Default,
		VideoCodec:   Default,
		AudioCodec:   Default,
		Region:       FullScreen,
		Dmabuf:       true,
		Damage:       true,
		AudioBackend: Default,
		AudioDevice:  NoAudio,
	}
}

// geometryPattern matches slurp's "X,Y WxH" output.
var geometryPattern = regexp.MustCompile(`^-?\d+,-?\d+ \d+x\d+$`)

// Validate checks the options before a recorder is spawned.
func (o Options) Validate() error {
	if strings.TrimSpace(o.Filename) == "" {
		return fmt.Errorf("filename is required")
	}
	if strings.TrimSpace(o.Output) == "" {
		return fmt.Errorf("output is required")
	}
	return o.ValidateFormat()
}

// ValidateFormat checks the optional fields only, so partial options such
// as configuration profiles can be validated before a filename is known.
func (o Options) ValidateFormat() error {
	if !isDefault(o.Framerate) {
		fps, err := strconv.Atoi(o.Framerate)
		if err != nil || fps <= 0 {
			return fmt.Errorf("framerate must be a positive integer or %q, got: %s", Default, o.Framerate)
		}
	}

	if !IsFullScreen(o.Region) && !geometryPattern.MatchString(o.Region) {
		return fmt.Errorf("region must be %q or a geometry like \"0,0 1920x1080\", got: %s", FullScreen, o.Region)
	}

	if _, err := ParseBackend(o.AudioBackend); err != nil {
		return err
	}

	return nil
}

// IsFullScreen reports whether region selects the whole output.
func IsFullScreen(region string) bool {
	return region == "" || strings.EqualFold(region, FullScreen)
}

func isDefault(v string) bool {
	return v == "" || strings.EqualFold(v, Default)
}

func hasAudio(device string) bool {
	return device != "" && !strings.EqualFold(device, NoAudio)
}
