package cmd

import (
	"fmt"
	"strings"

	"github.com/audiolibrelab/wffcapture/internal/wfrecorder"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the resolved profile and the wf-recorder command",
	Long:  `Display the resolved recording profile with inheritance indicators and the wf-recorder command line it produces. Shows which values are inherited from default vs profile-specific.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		rec := cfg.Recording
		if rec.Filename == "" {
			rec.Filename = cfg.RecordingsDirectory + "/<timestamp>output.mkv"
		}

		fmt.Fprintf(out, "=== PROFILE: %s ===\n", cfg.Profile)
		fields := []struct {
			key   string
			value any
		}{
			{"output", rec.Output},
			{"filename", rec.Filename},
			{"framerate", rec.Framerate},
			{"video_codec", rec.VideoCodec},
			{"audio_codec", rec.AudioCodec},
			{"region", rec.Region},
			{"dmabuf", rec.Dmabuf},
			{"damage", rec.Damage},
			{"audio_backend", rec.AudioBackend},
			{"audio_device", rec.AudioDevice},
			{"delay", cfg.Delay},
		}
		for _, f := range fields {
			fmt.Fprintf(out, "%s: %v %s\n", f.key, f.value, getInheritanceIndicator(cfg.Inheritance[f.key]))
		}

		fmt.Fprintf(out, "\n=== GLOBALS ===\n")
		fmt.Fprintf(out, "recordings_directory: %s\n", cfg.RecordingsDirectory)
		fmt.Fprintf(out, "poll_interval: %s\n", cfg.Controller.PollInterval)
		fmt.Fprintf(out, "stop_timeout: %s\n", cfg.Controller.StopTimeout)
		fmt.Fprintf(out, "audio_backends: %s\n", strings.Join(wfrecorder.AvailableBackends(), ", "))

		fmt.Fprintf(out, "\n=== COMMAND ===\n")
		if cfg.Delay > 0 {
			countdown := cfg.Controller.CountdownCommand
			if countdown == "" {
				countdown = "wffcapture countdown"
			}
			fmt.Fprintf(out, "%s %s\n", countdown, strings.Join(wfrecorder.CountdownArgs(rec.Output, cfg.Delay), " "))
		}
		fmt.Fprintf(out, "%s %s\n", wfrecorder.Binary, quoteArgs(wfrecorder.Args(rec)))

		if err := rec.Validate(); err != nil {
			fmt.Fprintf(out, "\n⚠️  %v\n", err)
		}
		return nil
	},
}

func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t") {
			a = "'" + a + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[default]"
	}
}
