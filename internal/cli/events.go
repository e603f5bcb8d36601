package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ChatWallet/internal/app"
	"ChatWallet/internal/events"
)

func newEventsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect operation lifecycle events",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "tail",
		Short: "Follow events from the configured bus (redis or rabbitmq)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			bus, err := app.OpenBus(ctx, cfg)
			if err != nil {
				return err
			}
			defer bus.Close()

			out := cmd.OutOrStdout()
			err = bus.Consume(ctx, func(_ context.Context, ev events.Event) error {
				if opts.jsonOutput {
					return printJSON(out, ev)
				}
				fmt.Fprintln(out, formatEvent(ev))
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	})
	return cmd
}

func formatEvent(ev events.Event) string {
	line := fmt.Sprintf("%s %-20s %s", ev.Time.Format(time.TimeOnly), ev.Type, ev.OperationID)
	if ev.Phase != "" {
		line += " " + color.CyanString(ev.Phase)
	}
	if ev.Step != "" {
		line += "/" + ev.Step
	}
	if ev.TxHash != "" {
		line += " tx=" + shortHash(ev.TxHash)
	}
	if ev.Code != "" {
		line += " " + color.RedString(ev.Code)
	}
	return line
}
