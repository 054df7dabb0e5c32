package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/audiolibrelab/wffcapture/internal/wfrecorder"
)

const (
	inherited       = "inherited"
	profileSpecific = "profile-specific"
)

// ErrProfileNotFound is returned for a profile missing from configs.
var ErrProfileNotFound = errors.New("not found")

type GlobalsConfig struct {
	RecordingsDirectory string `mapstructure:"recordings_directory" yaml:"recordings_directory"`
}

// ControllerConfig tunes the session controller. An empty CountdownCommand
// runs this binary's countdown subcommand.
type ControllerConfig struct {
	CountdownCommand string        `mapstructure:"countdown_command" yaml:"countdown_command"`
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	StopTimeout      time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
}

type RootConfig struct {
	ActiveConfig string                    `mapstructure:"active_config" yaml:"active_config"`
	Globals      *GlobalsConfig            `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Controller   *ControllerConfig         `mapstructure:"controller,omitempty" yaml:"controller,omitempty"`
	Server       *ServerConfig             `mapstructure:"server,omitempty" yaml:"server,omitempty"`
	Configs      map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
}

// ConfigProfile is a named set of recording settings. Empty or nil fields
// fall back to the default profile.
type ConfigProfile struct {
	Output       string `mapstructure:"output" yaml:"output,omitempty"`
	Filename     string `mapstructure:"filename" yaml:"filename,omitempty"`
	Framerate    string `mapstructure:"framerate" yaml:"framerate,omitempty"`
	VideoCodec   string `mapstructure:"video_codec" yaml:"video_codec,omitempty"`
	AudioCodec   string `mapstructure:"audio_codec" yaml:"audio_codec,omitempty"`
	Region       string `mapstructure:"region" yaml:"region,omitempty"`
	Dmabuf       *bool  `mapstructure:"dmabuf" yaml:"dmabuf,omitempty"`
	Damage       *bool  `mapstructure:"damage" yaml:"damage,omitempty"`
	AudioBackend string `mapstructure:"audio_backend" yaml:"audio_backend,omitempty"`
	AudioDevice  string `mapstructure:"audio_device" yaml:"audio_device,omitempty"`
	Delay        *int   `mapstructure:"delay" yaml:"delay,omitempty"`
}

// Config is the resolved configuration for one profile.
type Config struct {
	Profile             string             `yaml:"profile"`
	Recording           wfrecorder.Options `yaml:"recording"`
	Delay               int                `yaml:"delay"`
	RecordingsDirectory string             `yaml:"recordings_directory"`
	Controller          ControllerConfig   `yaml:"controller"`
	Server              ServerConfig       `yaml:"server"`

	// Inheritance maps each recording field to "inherited" or
	// "profile-specific", for the info command.
	Inheritance map[string]string `yaml:"-"`
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	return &Config{
		Profile:             "default",
		Recording:           wfrecorder.DefaultOptions(),
		RecordingsDirectory: defaultRecordingsDirectory(),
		Controller: ControllerConfig{
			PollInterval: 100 * time.Millisecond,
			StopTimeout:  5 * time.Second,
		},
		Server: ServerConfig{Port: "8080"},
	}
}

// defaultRecordingsDirectory follows XDG_VIDEOS_DIR, falling back to ~/Videos.
func defaultRecordingsDirectory() string {
	videos := os.Getenv("XDG_VIDEOS_DIR")
	if videos == "" {
		home, _ := os.UserHomeDir()
		videos = filepath.Join(home, "Videos")
	}
	return filepath.Join(videos, "wff-recordings")
}

// LoadEnvFiles loads KEY=value pairs from .env style files into the
// environment. Missing files are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("error loading env file %s: %w", f, err)
		}
	}
	return nil
}

// LoadWithProfile reads configFile and resolves profile. An empty profile
// selects active_config, then "default".
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selected, exists := rootConfig.Configs[configName]
	if !exists {
		if configName != "default" || len(rootConfig.Configs) > 0 {
			return nil, fmt.Errorf("configuration profile '%s' %w", configName, ErrProfileNotFound)
		}
		selected = &ConfigProfile{}
	}

	var base *ConfigProfile
	if configName != "default" {
		base = rootConfig.Configs["default"]
	}

	cfg := convertProfileToConfig(mergeConfigs(base, selected))
	cfg.Profile = configName

	if rootConfig.Globals != nil && rootConfig.Globals.RecordingsDirectory != "" {
		cfg.RecordingsDirectory = rootConfig.Globals.RecordingsDirectory
	}
	if ctrl := rootConfig.Controller; ctrl != nil {
		if ctrl.CountdownCommand != "" {
			cfg.Controller.CountdownCommand = ctrl.CountdownCommand
		}
		if ctrl.PollInterval > 0 {
			cfg.Controller.PollInterval = ctrl.PollInterval
		}
		if ctrl.StopTimeout > 0 {
			cfg.Controller.StopTimeout = ctrl.StopTimeout
		}
	}
	if rootConfig.Server != nil && rootConfig.Server.Port != "" {
		cfg.Server.Port = rootConfig.Server.Port
	}

	cfg.RecordingsDirectory = expandPath(cfg.RecordingsDirectory)
	cfg.Controller.CountdownCommand = expandPath(cfg.Controller.CountdownCommand)
	cfg.Recording.Filename = expandPath(cfg.Recording.Filename)

	return cfg, nil
}

// ListProfiles returns the profile names in configFile, sorted.
func ListProfiles(configFile string) ([]string, error) {
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rootConfig.Configs))
	for name := range rootConfig.Configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	if !v.IsSet("configs." + newActiveConfig) {
		return fmt.Errorf("configuration profile '%s' %w", newActiveConfig, ErrProfileNotFound)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// mergeConfigs implements "selection & fallback": every field the profile
// leaves empty is taken from base. The returned inheritance map records
// where each field came from.
func mergeConfigs(base, profile *ConfigProfile) (*ConfigProfile, map[string]string) {
	if base == nil {
		base = &ConfigProfile{}
	}
	if profile == nil {
		profile = &ConfigProfile{}
	}

	result := &ConfigProfile{}
	inheritance := make(map[string]string)

	pickString := func(field string, dst *string, b, p string) {
		if p != "" {
			*dst = p
			inheritance[field] = profileSpecific
			return
		}
		*dst = b
		inheritance[field] = inherited
	}
	pickBool := func(field string, b, p *bool) *bool {
		if p != nil {
			inheritance[field] = profileSpecific
			return p
		}
		inheritance[field] = inherited
		return b
	}

	pickString("output", &result.Output, base.Output, profile.Output)
	pickString("filename", &result.Filename, base.Filename, profile.Filename)
	pickString("framerate", &result.Framerate, base.Framerate, profile.Framerate)
	pickString("video_codec", &result.VideoCodec, base.VideoCodec, profile.VideoCodec)
	pickString("audio_codec", &result.AudioCodec, base.AudioCodec, profile.AudioCodec)
	pickString("region", &result.Region, base.Region, profile.Region)
	pickString("audio_backend", &result.AudioBackend, base.AudioBackend, profile.AudioBackend)
	pickString("audio_device", &result.AudioDevice, base.AudioDevice, profile.AudioDevice)
	result.Dmabuf = pickBool("dmabuf", base.Dmabuf, profile.Dmabuf)
	result.Damage = pickBool("damage", base.Damage, profile.Damage)

	if profile.Delay != nil {
		result.Delay = profile.Delay
		inheritance["delay"] = profileSpecific
	} else {
		result.Delay = base.Delay
		inheritance["delay"] = inherited
	}

	return result, inheritance
}

// convertProfileToConfig lays a merged profile over the built-in defaults.
func convertProfileToConfig(profile *ConfigProfile, inheritance map[string]string) *Config {
	cfg := Default()
	cfg.Inheritance = inheritance

	rec := &cfg.Recording
	setIfNotEmpty(&rec.Output, profile.Output)
	setIfNotEmpty(&rec.Filename, profile.Filename)
	setIfNotEmpty(&rec.Framerate, profile.Framerate)
	setIfNotEmpty(&rec.VideoCodec, profile.VideoCodec)
	setIfNotEmpty(&rec.AudioCodec, profile.AudioCodec)
	setIfNotEmpty(&rec.Region, profile.Region)
	setIfNotEmpty(&rec.AudioBackend, profile.AudioBackend)
	setIfNotEmpty(&rec.AudioDevice, profile.AudioDevice)
	if profile.Dmabuf != nil {
		rec.Dmabuf = *profile.Dmabuf
	}
	if profile.Damage != nil {
		rec.Damage = *profile.Damage
	}
	if profile.Delay != nil {
		cfg.Delay = *profile.Delay
	}

	return cfg
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ValidateConfigurationFormat reads configFile and checks every profile.
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("WFFCAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"active_config", "globals.recordings_directory", "controller.countdown_command", "server.port"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for configName, profile := range rootConfig.Configs {
		if err := validateProfile(profile); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
		}
	}

	if ctrl := rootConfig.Controller; ctrl != nil && (ctrl.PollInterval < 0 || ctrl.StopTimeout < 0) {
		return nil, fmt.Errorf("controller durations must not be negative")
	}

	return &rootConfig, nil
}

func validateProfile(profile *ConfigProfile) error {
	if profile == nil {
		return nil
	}
	if profile.Delay != nil && *profile.Delay < 0 {
		return fmt.Errorf("delay must be >= 0, got: %d", *profile.Delay)
	}

	opts := wfrecorder.Options{
		Framerate:    profile.Framerate,
		Region:       profile.Region,
		AudioBackend: profile.AudioBackend,
	}
	return opts.ValidateFormat()
}
