// Command memex is the CLI front-end for the episodic memory engine: it
// wires configuration, storage tiers, and the learning engine, then
// dispatches to one subcommand per engine operation.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
