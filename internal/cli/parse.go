package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ChatWallet/internal/app"
	"ChatWallet/internal/intent"
)

type parseResult struct {
	Intent   intent.Intent `json:"intent"`
	Summary  string        `json:"summary,omitempty"`
	Question string        `json:"question,omitempty"`
	Valid    bool          `json:"valid"`
	Errors   []string      `json:"errors,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

func newParseCommand(opts *rootOptions) *cobra.Command {
	var chain string
	cmd := &cobra.Command{
		Use:   "parse <text>",
		Short: "Recognize and validate a command without touching the network",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			chains, err := app.LoadChains(cfg.Chains)
			if err != nil {
				return err
			}
			if chain == "" {
				chain = cfg.Wallet.Chain
			}
			schemas := intent.DefaultSchemas()
			recognizer := intent.NewRecognizer(chains, schemas, intent.WithDefaultSlippage(cfg.Intent.DefaultSlippageBps))
			validator := intent.NewValidator(chains,
				intent.WithMaxSlippage(cfg.Intent.MaxSlippageBps),
				intent.WithBlocklist(cfg.Intent.Blocklist...))
			resolver := intent.NewResolver(schemas, chains)

			res := parseText(strings.Join(args, " "), chain, recognizer, validator, resolver)
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			renderParse(cmd, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "current network used when the text names none")
	return cmd
}

func parseText(text, chain string, r *intent.Recognizer, v *intent.Validator, q *intent.Resolver) parseResult {
	in := r.Recognize(text, chain)
	res := parseResult{Intent: in}
	if in.Kind() == intent.KindUnknown {
		return res
	}
	if question, ok := q.Question(in); ok {
		res.Question = question
		return res
	}
	res.Summary = intent.Describe(in)
	val := v.Validate(in)
	res.Valid = val.Valid
	res.Errors = val.Errors
	res.Warnings = val.Warnings
	return res
}

func renderParse(cmd *cobra.Command, res parseResult) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Kind:       %s\n", res.Intent.Kind())
	fmt.Fprintf(w, "Confidence: %.2f\n", res.Intent.Confidence)
	if res.Intent.Kind() == intent.KindUnknown {
		fmt.Fprintln(w, color.YellowString("No wallet command recognized."))
		return
	}
	if res.Question != "" {
		fmt.Fprintf(w, "Missing:    %s\n", joinParams(res.Intent.Missing))
		fmt.Fprintln(w, color.YellowString(res.Question))
		return
	}
	fmt.Fprintf(w, "Summary:    %s\n", res.Summary)
	if res.Valid {
		fmt.Fprintln(w, color.GreenString("Valid"))
	}
	for _, e := range res.Errors {
		fmt.Fprintln(w, color.RedString("  error: "+e))
	}
	for _, warning := range res.Warnings {
		fmt.Fprintln(w, color.YellowString("  warning: "+warning))
	}
}

func joinParams(params []intent.Param) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
