package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ChatWallet/internal/app"
	"ChatWallet/internal/history"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		limit    int
		chain    string
		account  string
		statuses []string
		stats    bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the transaction log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := app.OpenHistory(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			listOpts := []history.ListOption{history.WithLimit(limit), history.WithChain(chain), history.WithAccount(account)}
			if len(statuses) > 0 {
				parsed := make([]history.Status, 0, len(statuses))
				for _, s := range statuses {
					if !history.IsValidStatus(history.Status(s)) {
						return fmt.Errorf("unknown status %q", s)
					}
					parsed = append(parsed, history.Status(s))
				}
				listOpts = append(listOpts, history.WithStatuses(parsed...))
			}

			if stats {
				st, err := store.Stats(ctx, listOpts...)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), st)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "total %d  pending %d  success %d  failed %d  timed out %d\n",
					st.Total, st.Pending, st.Success, st.Failed, st.TimedOut)
				return nil
			}

			records, err := store.List(ctx, listOpts...)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transactions yet.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tCHAIN\tSTATUS\tDESCRIPTION\tTX")
			for _, rec := range records {
				when := time.Unix(rec.CreatedAt, 0).Format(time.DateTime)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", when, rec.Chain, statusColor(rec.Status), rec.Description, shortHash(rec.TxHash))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of records")
	cmd.Flags().StringVar(&chain, "chain", "", "only records on this network")
	cmd.Flags().StringVar(&account, "account", "", "only records of this address")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only records with these statuses")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print status counts instead of records")
	return cmd
}
