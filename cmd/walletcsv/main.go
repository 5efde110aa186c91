package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "walletcsv",
	Short: "Export wallet transaction history as tax CSV",
	Long: `walletcsv reads the full transaction history of an EVM wallet from
Blockscout explorers and turns it into a CSV ledger for tax software.

It can export one chain, scan every known chain for activity, serve the same
operations over HTTP, archive exports from Kafka into MySQL, and run an
LLM assistant that drives the tools conversationally.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.SetVersionTemplate("walletcsv {{.Version}} (commit " + commit + ", built " + buildTime + ")\n")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "log to stdout as well as LOG_FILE")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(chainsCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(archiveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
