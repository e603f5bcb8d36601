package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"ChatWallet/internal/app"
	"ChatWallet/internal/registry"
)

type chainView struct {
	Name         string      `json:"name"`
	ChainID      uint64      `json:"chain_id"`
	DisplayName  string      `json:"display_name"`
	NativeSymbol string      `json:"native_symbol"`
	Swaps        bool        `json:"swaps"`
	Explorer     string      `json:"explorer,omitempty"`
	Tokens       []tokenView `json:"tokens"`
}

type tokenView struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

func newChainsCommand(opts *rootOptions) *cobra.Command {
	var tokens bool
	cmd := &cobra.Command{
		Use:     "chains",
		Aliases: []string{"networks"},
		Short:   "List supported networks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			chains, err := app.LoadChains(cfg.Chains)
			if err != nil {
				return err
			}
			views := chainViews(chains)
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), views)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCHAIN ID\tNATIVE\tSWAPS\tTOKENS")
			for _, c := range views {
				fmt.Fprintf(w, "%s\t%d\t%s\t%t\t%d\n", c.Name, c.ChainID, c.NativeSymbol, c.Swaps, len(c.Tokens))
				if tokens {
					for _, t := range c.Tokens {
						fmt.Fprintf(w, "  %s\t%s\t%d\t\t\n", t.Symbol, t.Address, t.Decimals)
					}
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVarP(&tokens, "tokens", "t", false, "Show the token table of every network")
	return cmd
}

func chainViews(chains *registry.Registry) []chainView {
	var views []chainView
	for _, c := range chains.Chains() {
		v := chainView{
			Name:         c.Name,
			ChainID:      c.ChainID,
			DisplayName:  c.DisplayName,
			NativeSymbol: c.NativeSymbol,
			Swaps:        c.Router != (common.Address{}),
			Explorer:     c.Explorer,
		}
		for _, t := range c.Tokens {
			v.Tokens = append(v.Tokens, tokenView{Symbol: t.Symbol, Address: t.Address.Hex(), Decimals: t.Decimals})
		}
		sort.Slice(v.Tokens, func(i, j int) bool { return v.Tokens[i].Symbol < v.Tokens[j].Symbol })
		views = append(views, v)
	}
	return views
}
