package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"walletcsv/internal/application"
	"walletcsv/internal/assistant"

	"github.com/spf13/cobra"
)

var exportFlags struct {
	chain         string
	address       string
	out           string
	skipMalformed bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one wallet's history on one chain as CSV",
	Long: `Fetch the normal, token and internal transaction feeds of a wallet,
merge them into canonical transactions and write the CSV ledger.

Interrupting the fetch (Ctrl-C) stops paging and still writes whatever was
fetched so far, marked as partial.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.chain, "chain", "", "chain name (defaults to the last chain used)")
	exportCmd.Flags().StringVar(&exportFlags.address, "address", "", "wallet address (defaults to the last address used)")
	exportCmd.Flags().StringVar(&exportFlags.out, "out", "", "output directory (defaults to EXPORT_DIR)")
	exportCmd.Flags().BoolVar(&exportFlags.skipMalformed, "skip-malformed", false, "drop transactions whose amounts cannot be decoded instead of failing")
}

func runExport(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), appOptions{service: "export", skipMalformed: exportFlags.skipMalformed})
	if err != nil {
		return err
	}
	defer a.Close()

	setup := context.Background()
	address := exportFlags.address
	if address == "" {
		address = a.setting(setup, application.SettingLastAddress)
	}
	if address == "" {
		return errors.New("--address is required")
	}
	chainName := exportFlags.chain
	if chainName == "" {
		chainName = a.setting(setup, application.SettingLastChain)
	}
	chain, err := a.findChain(setup, chainName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(setup, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stderr := cmd.ErrOrStderr()
	result, err := a.exporter.Export(ctx, chain, address, func(msg string) {
		fmt.Fprintln(stderr, msg)
	})
	if err != nil {
		return err
	}

	dir := exportFlags.out
	if dir == "" {
		dir = a.cfg.ExportDir
	}
	path, err := assistant.DirSink{Dir: dir}.SaveCSV(context.WithoutCancel(ctx), result.Run.Filename, result.CSV)
	if err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	a.remember(context.WithoutCancel(ctx), result.Run.Address, chain.Name)

	if result.Run.Partial {
		fmt.Fprintln(stderr, "Export interrupted; the CSV holds only the history fetched before cancellation.")
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(stderr, "Skipped %d malformed transactions.\n", len(result.Skipped))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows from %d transactions to %s\n", result.Run.Rows, result.Run.Transactions, path)
	if len(result.Tags) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Breakdown: %s\n", result.Tags)
	}
	return nil
}
