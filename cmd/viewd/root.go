package main

import (
	"github.com/spf13/cobra"
)

// globalFlags are persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "viewd",
	Short: "Read-only WASM view-call execution service",
	Long: `viewd executes read-only smart-contract methods against height-pinned
chain state without touching consensus, the mempool, or any write path.

It resolves a contract's state at the latest indexed block height, compiles
(or reuses a cached compile of) the contract's WASM code, and runs the
requested method in an isolated worker, returning its result bytes and any
log lines it emitted.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a JSON config file (defaults to built-in settings if omitted)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(viewCmd)
}
