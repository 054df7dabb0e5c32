package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiolibrelab/wffcapture/internal/process"
	"github.com/audiolibrelab/wffcapture/internal/service"
	"github.com/audiolibrelab/wffcapture/internal/session"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the screen with wf-recorder",
	Long: `Record a Wayland output with wf-recorder using the active profile.

With a delay the countdown helper runs first; Ctrl+C during the countdown
cancels the session and wf-recorder is never started. Ctrl+C while
recording stops wf-recorder gracefully so the file is finalised.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := recordOptions(cmd)
		if err != nil {
			return err
		}

		svc := service.New(cfg, loadedFile, process.NewExecSpawner(),
			service.WithCountdownOutput(func(stream process.Stream, line string) {
				if stream == process.Stdout {
					fmt.Fprintln(os.Stderr, line)
				}
			}))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if selectRegion, _ := cmd.Flags().GetBool("select-region"); selectRegion {
			r, err := svc.SelectRegion(ctx)
			if err != nil {
				return fmt.Errorf("region selection failed: %w", err)
			}
			opts.Region = r
		}

		finished := make(chan session.Event, 1)
		svc.Subscribe(func(ev session.Event) {
			if ev.Kind == session.EventStateChanged && ev.State.Terminal() {
				select {
				case finished <- ev:
				default:
				}
			}
		})

		if err := svc.StartRecording(ctx, opts); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}

		status := svc.GetRecordingStatus()
		if status.State == session.Cancelled {
			slog.Info("Countdown cancelled, nothing recorded")
			return nil
		}

		slog.Info("Recording... Press Ctrl+C to stop", "file", status.Filename, "session_id", status.SessionID)
		return waitForStop(ctx, svc, finished)
	},
}

// waitForStop prints the elapsed time until ctx is cancelled or the
// recorder exits on its own.
func waitForStop(ctx context.Context, svc *service.CaptureService, finished <-chan session.Event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if elapsed, ok := svc.Controller().ElapsedTime(); ok {
				fmt.Fprintf(os.Stderr, "\r⏺ %s", elapsed)
			}
		case ev := <-finished:
			fmt.Fprintln(os.Stderr)
			if ev.Err != nil {
				return fmt.Errorf("recording ended: %w", ev.Err)
			}
			return nil
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr)
			slog.Info("Stopping recording...")
			if err := svc.StopRecording(context.Background()); err != nil {
				return fmt.Errorf("failed to stop recording: %w", err)
			}
			status := svc.GetRecordingStatus()
			slog.Info("Recording saved", "file", status.Filename, "elapsed", status.Elapsed)
			return nil
		}
	}
}

func recordOptions(cmd *cobra.Command) (service.StartOptions, error) {
	var opts service.StartOptions
	flags := cmd.Flags()

	if flags.Changed("delay") {
		delay, err := flags.GetInt("delay")
		if err != nil {
			return opts, err
		}
		opts.Delay = &delay
	}
	opts.Output, _ = flags.GetString("output")
	opts.Filename, _ = flags.GetString("file")
	opts.Framerate, _ = flags.GetString("framerate")
	opts.Region, _ = flags.GetString("region")
	opts.AudioDevice, _ = flags.GetString("audio")
	return opts, nil
}

func init() {
	recordCmd.Flags().IntP("delay", "d", 0, "countdown in seconds before recording (overrides config)")
	recordCmd.Flags().StringP("output", "o", "", "compositor output to record, e.g. DP-1 (overrides config)")
	recordCmd.Flags().StringP("file", "f", "", "output file (default is a timestamped file in the recordings directory)")
	recordCmd.Flags().StringP("framerate", "r", "", "framerate, or Default (overrides config)")
	recordCmd.Flags().StringP("region", "g", "", "geometry \"X,Y WxH\", or Screen (overrides config)")
	recordCmd.Flags().StringP("audio", "a", "", "audio device, or None (overrides config)")
	recordCmd.Flags().Bool("select-region", false, "select the region with slurp before recording")
}
