package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/audiolibrelab/wffcapture/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int

	// loadedFile is the config file cfg came from, empty when running on
	// built-in defaults.
	loadedFile string
)

var rootCmd = &cobra.Command{
	Use:   "wffcapture",
	Short: "Screen recording for wlroots compositors",
	Long: `wffcapture drives wf-recorder to capture a Wayland output, with an
optional countdown, region selection through slurp and an HTTP remote
control.

Recording settings come from named profiles in the configuration file.
Command line flags override the active profile for a single recording.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel)

		if err := config.LoadEnvFiles(".env"); err != nil {
			return err
		}

		// The countdown helper runs as a child of the recorder session and
		// must not depend on the config file.
		if cmd.Name() == "countdown" {
			return nil
		}

		explicit := cfgFile != ""
		if !explicit {
			cfgFile = os.ExpandEnv("$HOME/.config/wffcapture.yaml")
		}

		if _, err := os.Stat(cfgFile); errors.Is(err, fs.ErrNotExist) && !explicit && profile == "" {
			slog.Debug("No config file, using built-in defaults", "config", cfgFile)
			cfg = config.Default()
			return nil
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		loadedFile = cfgFile
		slog.Debug("Configuration loaded", "config", cfgFile, "profile", cfg.Profile)
		return nil
	},
}

// exitCodeError ends the process with a specific status.
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string {
	return e.msg
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			if exitErr.msg != "" {
				fmt.Fprintln(os.Stderr, exitErr.msg)
			}
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/wffcapture.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=debug with source locations")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(countdownCmd)
	rootCmd.AddCommand(regionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	var slogLevel slog.Level
	switch {
	case level <= 0:
		slogLevel = slog.LevelInfo
	default:
		slogLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     slogLevel,
		AddSource: level >= 2,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	slog.SetDefault(slog.New(handler))
}
