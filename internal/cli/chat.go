package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ChatWallet/internal/app"
	"ChatWallet/internal/conversation"
	"ChatWallet/internal/execution"
	xerrors "ChatWallet/internal/errors"
	"ChatWallet/internal/web3"
	"ChatWallet/pkg/logger"
)

func newChatCommand(opts *rootOptions) *cobra.Command {
	var (
		chain string
		yes   bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive wallet conversation",
		Long: `Start an interactive conversation with the wallet held by the key in
$CHATWALLET_PRIVATE_KEY (or the variable named by wallet.key_env).

Type /chain <name> to switch networks and exit to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			if chain != "" {
				cfg.Wallet.Chain = chain
			}
			ctx := cmd.Context()
			p := &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout(), yes: yes}

			application, err := app.New(ctx, cfg, app.WithApprover(p.approve))
			if err != nil {
				return err
			}
			defer application.Close()

			runCtx, stop := context.WithCancel(ctx)
			defer stop()
			go func() {
				if err := application.Machine.Run(runCtx); err != nil {
					logger.Named("cli").Warn("session feed stopped", slog.Any("error", err))
				}
			}()

			s := &chatSession{
				app:     application,
				machine: application.Machine,
				id:      application.Machine.Open(""),
				prompt:  p,
			}
			fmt.Fprintln(p.out, color.GreenString("Connected as %s on %s", application.Session.Address().Hex(), cfg.Wallet.Chain))
			return s.loop(ctx)
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "network to connect to (default wallet.chain)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Sign without asking after a preview is confirmed")
	return cmd
}

// prompter owns the terminal. The loop is blocked on the state stream
// whenever the approver reads.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	yes bool
}

func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	text, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && text != "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *prompter) confirm(question string) (bool, error) {
	answer, err := p.line(question + " [y/N] ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// approve is the signing hook of the keyed session.
func (p *prompter) approve(_ context.Context, tx web3.ChainTx) (bool, error) {
	if p.yes {
		return true, nil
	}
	fmt.Fprintf(p.out, "\n  Signature request\n    to:    %s\n    value: %s wei\n    gas:   %d\n",
		color.CyanString(tx.To.Hex()), valueString(tx), tx.GasLimit)
	return p.confirm("  Sign this transaction?")
}

func valueString(tx web3.ChainTx) string {
	if tx.Value == nil {
		return "0"
	}
	return tx.Value.String()
}

type chatSession struct {
	app     *app.App
	machine *conversation.Machine
	id      string
	prompt  *prompter
}

func (s *chatSession) loop(ctx context.Context) error {
	out := s.prompt.out
	for {
		text, err := s.prompt.line(color.HiBlackString("> "))
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch {
		case text == "":
			continue
		case text == "exit" || text == "quit":
			return nil
		case strings.HasPrefix(text, "/chain "):
			name := strings.TrimSpace(strings.TrimPrefix(text, "/chain "))
			if err := s.app.SwitchChain(ctx, name); err != nil {
				fmt.Fprintln(out, color.RedString(err.Error()))
				continue
			}
			fmt.Fprintln(out, color.GreenString("Switched to "+name))
			continue
		}

		reply, err := s.machine.HandleMessage(ctx, s.id, text)
		if err != nil {
			fmt.Fprintln(out, color.RedString(xerrors.MessageOf(err)))
			continue
		}
		renderReply(out, reply)
		if reply.Kind != conversation.ReplyPreview {
			continue
		}

		ok, err := s.prompt.confirm("Confirm this transaction?")
		if err != nil {
			return err
		}
		if !ok {
			if _, err := s.machine.Cancel(ctx, s.id); err != nil {
				fmt.Fprintln(out, color.RedString(xerrors.MessageOf(err)))
			} else {
				fmt.Fprintln(out, "Transaction cancelled.")
			}
			continue
		}
		if err := s.execute(ctx); err != nil {
			fmt.Fprintln(out, color.RedString(xerrors.MessageOf(err)))
		}
	}
}

func (s *chatSession) execute(ctx context.Context) error {
	states, err := s.machine.Confirm(ctx, s.id)
	if err != nil {
		return err
	}
	out := s.prompt.out
	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	defer spin.Stop()
	for st := range states {
		if st.Phase.Terminal() {
			spin.Stop()
			renderOutcome(out, st)
			continue
		}
		if st.Phase == execution.PhasePending || st.Step == execution.StepApprovalConfirmation {
			spin.Suffix = " " + describeState(st)
			spin.Restart()
			continue
		}
		spin.Stop()
		fmt.Fprintln(out, describeState(st))
	}
	return nil
}
