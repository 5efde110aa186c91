package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"walletcsv/internal/application"

	"github.com/spf13/cobra"
)

var scanFlags struct {
	address  string
	chains   []string
	testnets bool
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find the chains a wallet has activity on",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFlags.address, "address", "", "wallet address (defaults to the last address used)")
	scanCmd.Flags().StringSliceVar(&scanFlags.chains, "chain", nil, "limit the scan to chains whose name contains one of these")
	scanCmd.Flags().BoolVar(&scanFlags.testnets, "testnets", false, "include testnets")
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{service: "scan", noArchive: true})
	if err != nil {
		return err
	}
	defer a.Close()

	address := scanFlags.address
	if address == "" {
		address = a.setting(ctx, application.SettingLastAddress)
	}
	if address == "" {
		return errors.New("--address is required")
	}

	chains, err := a.chains.Chains(ctx)
	if err != nil {
		return err
	}
	chains = filterChains(chains, scanFlags.testnets, scanFlags.chains)
	if len(chains) == 0 {
		return errors.New("no chains match")
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Scanning %d chains...\n", len(chains))
	result, err := a.scanner.Scan(ctx, chains, address)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	normalized, _ := application.NormalizeAddress(address)
	a.remember(context.WithoutCancel(ctx), normalized, "")

	fmt.Fprintln(cmd.OutOrStdout(), result.Summary(normalized))
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Scan interrupted before every chain was probed.")
	}
	return nil
}
