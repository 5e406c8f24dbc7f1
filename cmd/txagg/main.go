// Package main provides the txagg transmitter aggregation daemon.
//
// Usage:
//
//	txagg [flags] <command>
//
// Commands:
//
//	run     - start the daemon and read operator commands from stdin
//	check   - build and initialize the configured transmitter, then exit
//	version - print version information
//
// Configuration is read from --config, $TXAGG_CONFIG or ./txagg.yaml.
package main

import (
	"fmt"
	"os"

	"github.com/radio-control/txagg/cmd/txagg/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
