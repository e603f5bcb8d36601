package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"ChatWallet/internal/conversation"
	"ChatWallet/internal/execution"
	"ChatWallet/internal/history"
)

func jsonEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}

func renderReply(w io.Writer, reply conversation.Reply) {
	switch reply.Kind {
	case conversation.ReplyError, conversation.ReplyInvalid:
		fmt.Fprintln(w, color.RedString(reply.Message))
	case conversation.ReplyClarification:
		fmt.Fprintln(w, color.YellowString(reply.Message))
	case conversation.ReplyPreview:
		fmt.Fprintln(w, reply.Message)
		if reply.Preview != nil {
			renderPreview(w, reply.Preview)
		}
	default:
		fmt.Fprintln(w, reply.Message)
	}
}

func renderPreview(w io.Writer, p *conversation.Preview) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "  %s\n", color.GreenString(p.Description))
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "  Network:     %s\n", p.Chain)
	fmt.Fprintf(w, "  From:        %s\n", color.CyanString(p.From))
	fmt.Fprintf(w, "  To:          %s\n", color.CyanString(p.To))
	fmt.Fprintf(w, "  Value:       %s\n", p.Value)
	fmt.Fprintf(w, "  Gas limit:   %d\n", p.GasLimit)
	if q := p.Quote; q != nil {
		fmt.Fprintf(w, "  You pay:     %s\n", q.AmountIn)
		fmt.Fprintf(w, "  You get:     ~%s (min %s)\n", q.AmountOut, q.AmountOutMin)
		fmt.Fprintf(w, "  Slippage:    %.2f%%\n", float64(q.SlippageBps)/100)
		fmt.Fprintf(w, "  Route:       %s\n", color.HiBlackString(strings.Join(q.Path, " -> ")))
	}
	if p.NeedsApproval {
		fmt.Fprintln(w, color.YellowString("  A token approval is sent before the swap."))
	}
	for _, warning := range p.Warnings {
		fmt.Fprintln(w, color.YellowString("  Warning: "+warning))
	}
}

// describeState returns the one-line progress text of st.
func describeState(st execution.State) string {
	switch st.Phase {
	case execution.PhaseConfirming:
		switch st.Step {
		case execution.StepApprovalSignature:
			return "Waiting for approval signature..."
		case execution.StepApprovalConfirmation:
			return "Waiting for approval confirmation " + shortHash(st.ApprovalHash) + "..."
		default:
			return "Waiting for transaction signature..."
		}
	case execution.PhasePending:
		return "Transaction " + shortHash(st.TxHash) + " submitted, waiting for confirmation..."
	case execution.PhaseSuccess:
		return "Transaction confirmed"
	case execution.PhaseFailed:
		return "Transaction failed: " + st.Detail
	case execution.PhaseTimedOut:
		return "Stopped waiting: " + st.Detail
	}
	return string(st.Phase)
}

func renderOutcome(w io.Writer, st execution.State) {
	switch st.Phase {
	case execution.PhaseSuccess:
		fmt.Fprintln(w, color.GreenString("✓ "+describeState(st)))
	case execution.PhaseFailed:
		fmt.Fprintln(w, color.RedString("✗ "+describeState(st)))
	case execution.PhaseTimedOut:
		fmt.Fprintln(w, color.YellowString(describeState(st)))
	default:
		return
	}
	if st.TxHash != "" {
		fmt.Fprintf(w, "  Transaction: %s\n", color.CyanString(st.TxHash))
	}
	if st.ExplorerURL != "" {
		fmt.Fprintf(w, "  Explorer:    %s\n", st.ExplorerURL)
	}
}

func statusColor(status history.Status) string {
	switch status {
	case history.StatusSuccess:
		return color.GreenString(string(status))
	case history.StatusPending:
		return color.YellowString(string(status))
	case history.StatusFailed:
		return color.RedString(string(status))
	default:
		return color.MagentaString(string(status))
	}
}

func shortHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:8] + "…" + hash[len(hash)-4:]
}
