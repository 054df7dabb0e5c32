package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "wffcapture.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return configFile
}

const profilesConfig = `
active_config: streaming

globals:
  recordings_directory: ~/Videos/Test

controller:
  countdown_command: /opt/wff/countdown
  poll_interval: 250ms

configs:
  default:
    output: DP-1
    framerate: "30"
    region: Screen
    dmabuf: true
    damage: true
    audio_backend: Pipewire
    delay: 3

  streaming:
    framerate: "60"
    audio_device: alsa_output.monitor
    damage: false
    delay: 0

  region:
    output: HDMI-A-1
    region: "0,0 1280x720"
`

func TestLoadWithProfile_ActiveProfileFallsBackToDefault(t *testing.T) {
	configFile := createTempConfig(t, profilesConfig)

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Profile != "streaming" {
		t.Errorf("Expected profile 'streaming', got %s", cfg.Profile)
	}

	rec := cfg.Recording
	if rec.Output != "DP-1" {
		t.Errorf("Expected output inherited from default 'DP-1', got %s", rec.Output)
	}
	if rec.Framerate != "60" {
		t.Errorf("Expected framerate '60', got %s", rec.Framerate)
	}
	if rec.AudioDevice != "alsa_output.monitor" {
		t.Errorf("Expected audio device 'alsa_output.monitor', got %s", rec.AudioDevice)
	}
	if rec.AudioBackend != "Pipewire" {
		t.Errorf("Expected audio backend inherited 'Pipewire', got %s", rec.AudioBackend)
	}
	if !rec.Dmabuf {
		t.Error("Expected dmabuf inherited as true")
	}
	if rec.Damage {
		t.Error("Expected damage overridden to false")
	}
	if cfg.Delay != 0 {
		t.Errorf("Expected explicit delay 0 to override default 3, got %d", cfg.Delay)
	}

	if cfg.Inheritance["output"] != inherited {
		t.Errorf("Expected output to be inherited, got %s", cfg.Inheritance["output"])
	}
	if cfg.Inheritance["framerate"] != profileSpecific {
		t.Errorf("Expected framerate to be profile-specific, got %s", cfg.Inheritance["framerate"])
	}
	if cfg.Inheritance["delay"] != profileSpecific {
		t.Errorf("Expected delay to be profile-specific, got %s", cfg.Inheritance["delay"])
	}
}

func TestLoadWithProfile_GlobalsAndController(t *testing.T) {
	configFile := createTempConfig(t, profilesConfig)

	cfg, err := LoadWithProfile(configFile, "region")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	home, _ := os.UserHomeDir()
	if cfg.RecordingsDirectory != filepath.Join(home, "Videos", "Test") {
		t.Errorf("Expected expanded recordings directory, got %s", cfg.RecordingsDirectory)
	}
	if cfg.Controller.CountdownCommand != "/opt/wff/countdown" {
		t.Errorf("Expected countdown command '/opt/wff/countdown', got %s", cfg.Controller.CountdownCommand)
	}
	if cfg.Controller.PollInterval != 250*time.Millisecond {
		t.Errorf("Expected poll interval 250ms, got %v", cfg.Controller.PollInterval)
	}
	if cfg.Controller.StopTimeout != 5*time.Second {
		t.Errorf("Expected default stop timeout 5s, got %v", cfg.Controller.StopTimeout)
	}
	if cfg.Recording.Region != "0,0 1280x720" {
		t.Errorf("Expected region override, got %s", cfg.Recording.Region)
	}
	if cfg.Recording.Output != "HDMI-A-1" {
		t.Errorf("Expected output 'HDMI-A-1', got %s", cfg.Recording.Output)
	}
	if cfg.Delay != 3 {
		t.Errorf("Expected delay inherited 3, got %d", cfg.Delay)
	}
}

func TestLoadWithProfile_DefaultProfileUsesBuiltins(t *testing.T) {
	configFile := createTempConfig(t, `
configs:
  default:
    output: eDP-1
`)

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Profile != "default" {
		t.Errorf("Expected profile 'default', got %s", cfg.Profile)
	}
	if cfg.Recording.Framerate != "Default" || cfg.Recording.Region != "Screen" || cfg.Recording.AudioDevice != "None" {
		t.Errorf("Expected built-in sentinels, got %+v", cfg.Recording)
	}
	if !cfg.Recording.Dmabuf || !cfg.Recording.Damage {
		t.Error("Expected dmabuf and damage enabled by default")
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
}

func TestLoadWithProfile_Errors(t *testing.T) {
	if _, err := LoadWithProfile("", ""); err == nil {
		t.Error("Expected error for empty config file path")
	}

	if _, err := LoadWithProfile(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Error("Expected error for missing config file")
	}

	configFile := createTempConfig(t, profilesConfig)
	_, err := LoadWithProfile(configFile, "nonexistent")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected 'not found' error, got: %v", err)
	}
}

func TestValidateConfigurationFormat_InvalidProfiles(t *testing.T) {
	tests := []struct {
		name     string
		profile  string
		contains string
	}{
		{"bad framerate", "framerate: fast", "framerate"},
		{"bad region", "region: top-left", "region"},
		{"bad backend", "audio_backend: jack", "unknown audio backend"},
		{"negative delay", "delay: -1", "delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := createTempConfig(t, "configs:\n  broken:\n    "+tt.profile+"\n")

			_, err := ValidateConfigurationFormat(configFile)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), "broken") || !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Expected error naming profile and %q, got: %v", tt.contains, err)
			}
		})
	}
}

func TestValidateConfigurationFormat_EnvOverride(t *testing.T) {
	t.Setenv("WFFCAPTURE_GLOBALS_RECORDINGS_DIRECTORY", "/srv/recordings")
	configFile := createTempConfig(t, profilesConfig)

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.RecordingsDirectory != "/srv/recordings" {
		t.Errorf("Expected env override '/srv/recordings', got %s", cfg.RecordingsDirectory)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("WFFCAPTURE_TEST_VALUE=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WFFCAPTURE_TEST_VALUE", "")
	os.Unsetenv("WFFCAPTURE_TEST_VALUE")

	if err := LoadEnvFiles(filepath.Join(t.TempDir(), "missing.env"), envFile); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := os.Getenv("WFFCAPTURE_TEST_VALUE"); got != "from-dotenv" {
		t.Errorf("Expected 'from-dotenv', got %q", got)
	}
}

func TestUpdateActiveConfig(t *testing.T) {
	configFile := createTempConfig(t, profilesConfig)

	if err := UpdateActiveConfig(configFile, "region"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatal(err)
	}
	var root RootConfig
	if err := yaml.Unmarshal(data, &root); err != nil {
		t.Fatalf("Rewritten config is not valid YAML: %v", err)
	}
	if root.ActiveConfig != "region" {
		t.Errorf("Expected active_config 'region', got %s", root.ActiveConfig)
	}

	if err := UpdateActiveConfig(configFile, "nope"); err == nil {
		t.Error("Expected error for unknown profile")
	}
}

func TestListProfiles(t *testing.T) {
	configFile := createTempConfig(t, profilesConfig)

	names, err := ListProfiles(configFile)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	expected := []string{"default", "region", "streaming"}
	if strings.Join(names, ",") != strings.Join(expected, ",") {
		t.Errorf("Expected %v, got %v", expected, names)
	}
}

func TestMergeConfigs_NilInputs(t *testing.T) {
	merged, inheritance := mergeConfigs(nil, nil)
	if merged == nil {
		t.Fatal("Expected non-nil merged profile")
	}
	if inheritance["output"] != inherited {
		t.Errorf("Expected output inherited, got %s", inheritance["output"])
	}
}
