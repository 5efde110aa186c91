package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"walletcsv/internal/application"

	"github.com/spf13/cobra"
)

var runsFlags struct {
	address string
	chain   string
	limit   int
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent exports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), appOptions{service: "runs", noArchive: true})
		if err != nil {
			return err
		}
		defer a.Close()

		query := application.RunQuery{Limit: runsFlags.limit}
		if runsFlags.address != "" {
			if query.Address, err = application.NormalizeAddress(runsFlags.address); err != nil {
				return err
			}
		}
		if runsFlags.chain != "" {
			chain, err := a.findChain(cmd.Context(), runsFlags.chain)
			if err != nil {
				return err
			}
			query.ChainID = chain.ID
		}

		runs, err := a.store.Runs(cmd.Context(), query)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tCHAIN\tADDRESS\tTXS\tROWS\tFILE")
		for _, run := range runs {
			file := run.Filename
			if run.Partial {
				file += " (partial)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				run.CreatedAt.Local().Format(time.DateTime), run.ChainName, run.Address, run.Transactions, run.Rows, file)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsFlags.address, "address", "", "only runs for this wallet")
	runsCmd.Flags().StringVar(&runsFlags.chain, "chain", "", "only runs on this chain")
	runsCmd.Flags().IntVar(&runsFlags.limit, "limit", 20, "maximum runs to list")
}
