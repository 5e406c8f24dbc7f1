package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/radio-control/txagg/internal/eventloop"
	"github.com/radio-control/txagg/internal/multitx"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Build and initialize the configured transmitter, then exit",
	Long: `Load and validate the configuration, build and initialize the
configured transmitter, print its status and tear it down again.

Example:
  txagg check -c txagg.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// The loop is never started; pending backend events are drained
		// on this goroutine.
		loop := eventloop.New()
		defer loop.Stop()

		t, err := createTransmitter(cfg, newRegistry(cfg, loop, multitx.NewLogObserver(nil)))
		if err != nil {
			return err
		}
		defer closeTransmitter(t)
		loop.RunPending()

		out := cmd.OutOrStdout()
		agg, ok := t.(*multitx.MultiTx)
		if !ok {
			fmt.Fprintf(out, "%s: initialized\n", t.Name())
			return nil
		}

		data, err := json.MarshalIndent(agg.Status(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	},
}
