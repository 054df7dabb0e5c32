package cmd

import (
	"os"
	"os/signal"

	"github.com/audiolibrelab/wffcapture/internal/play"
	"github.com/audiolibrelab/wffcapture/internal/process"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Play a recording",
	Long:  `Play the given file, or the most recent recording in the recordings directory, with mpv, vlc or ffplay.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var file string
		if len(args) == 1 {
			file = args[0]
		} else {
			latest, err := play.Latest(cfg.RecordingsDirectory)
			if err != nil {
				return err
			}
			file = latest
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return play.New(process.NewExecSpawner()).Play(ctx, file)
	},
}
