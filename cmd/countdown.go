package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// exitInterrupted is the conventional status for a SIGINT exit.
const exitInterrupted = 130

var countdownCmd = &cobra.Command{
	Use:   "countdown <output> <seconds>",
	Short: "Count down before a recording starts",
	Long: `Print a countdown for the given output and exit when it reaches zero.

This is the default countdown helper used by record and serve. It exits
0 when the countdown completes and 130 when interrupted.`,
	Args:   cobra.ExactArgs(2),
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		output := args[0]
		seconds, err := strconv.Atoi(args[1])
		if err != nil || seconds < 0 {
			return fmt.Errorf("seconds must be a non-negative integer, got: %s", args[1])
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for remaining := seconds; remaining > 0; remaining-- {
			fmt.Fprintf(cmd.OutOrStdout(), "Recording %s in %d\n", output, remaining)
			select {
			case <-ticker.C:
			case <-sigChan:
				return &exitCodeError{code: exitInterrupted, msg: "countdown cancelled"}
			}
		}
		return nil
	},
}
