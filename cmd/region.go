package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/audiolibrelab/wffcapture/internal/process"
	"github.com/audiolibrelab/wffcapture/internal/region"

	"github.com/spf13/cobra"
)

var regionCmd = &cobra.Command{
	Use:   "region",
	Short: "Select a screen region with slurp",
	Long: `Run slurp and print the selected geometry in the form accepted by
record --region and the region profile field.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		r, err := region.Select(ctx, process.NewExecSpawner())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), r)
		return nil
	},
}
