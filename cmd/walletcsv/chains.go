package main

import (
	"fmt"
	"text/tabwriter"

	"walletcsv/internal/application"
	"walletcsv/internal/domain"

	"github.com/spf13/cobra"
)

var chainsFlags struct {
	testnets bool
	match    []string
}

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List chains with a Blockscout explorer",
	RunE:  runChains,
}

func init() {
	chainsCmd.Flags().BoolVar(&chainsFlags.testnets, "testnets", false, "include testnets")
	chainsCmd.Flags().StringSliceVar(&chainsFlags.match, "match", nil, "only chains whose name contains one of these")
}

func runChains(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), appOptions{service: "chains", noArchive: true})
	if err != nil {
		return err
	}
	defer a.Close()

	chains, err := a.chains.Chains(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSYMBOL\tEXPLORER API")
	for _, chain := range filterChains(chains, chainsFlags.testnets, chainsFlags.match) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", chain.ID, chain.Name, chain.Symbol, chain.APIURL)
	}
	return w.Flush()
}

func filterChains(chains []domain.Chain, testnets bool, match []string) []domain.Chain {
	chains = application.MatchChains(chains, match)
	if testnets {
		return chains
	}
	mainnets := make([]domain.Chain, 0, len(chains))
	for _, chain := range chains {
		if !chain.IsTestnet {
			mainnets = append(mainnets, chain)
		}
	}
	return mainnets
}
