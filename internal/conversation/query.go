package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	xerrors "ChatWallet/internal/errors"
	"ChatWallet/internal/events"
	"ChatWallet/internal/execution"
	"ChatWallet/internal/history"
	"ChatWallet/internal/intent"
	"ChatWallet/internal/registry"
	"ChatWallet/internal/txbuilder"
	"ChatWallet/internal/web3"
)

// answer serves the read-only intents.
func (m *Machine) answer(ctx context.Context, in intent.Intent, account common.Address) (Reply, error) {
	switch p := in.Params.(type) {
	case intent.CheckBalance:
		return m.balance(ctx, p, account)
	case intent.ShowAddress:
		return Reply{Kind: ReplyAddress, Message: "Your address is " + account.Hex(), Address: account.Hex()}, nil
	case intent.ShowHistory:
		records, err := m.deps.History.List(ctx, history.WithAccount(account.Hex()), history.WithLimit(m.historyLimit))
		if err != nil {
			return Reply{}, err
		}
		if len(records) == 0 {
			return Reply{Kind: ReplyHistory, Message: "You have no transactions yet."}, nil
		}
		lines := make([]string, 0, len(records)+1)
		lines = append(lines, fmt.Sprintf("Your last %d transactions:", len(records)))
		for _, rec := range records {
			lines = append(lines, fmt.Sprintf("- %s (%s)", rec.Description, rec.Status))
		}
		return Reply{Kind: ReplyHistory, Message: strings.Join(lines, "\n"), History: records}, nil
	}
	return Reply{Kind: ReplyHelp, Message: helpMessage}, nil
}

func (m *Machine) balance(ctx context.Context, p intent.CheckBalance, account common.Address) (Reply, error) {
	chain, ok := m.deps.Chains.Chain(p.Chain)
	if !ok {
		return errorReply(xerrors.New(xerrors.CodeChainUnsupported, "Unsupported chain: "+p.Chain)), nil
	}
	reader, err := m.deps.Readers.Reader(ctx, chain.ChainID)
	if err != nil {
		return Reply{}, err
	}

	symbol := strings.ToUpper(strings.TrimSpace(p.Token))
	var amount string
	if symbol == "" || chain.IsNative(symbol) {
		symbol = chain.NativeSymbol
		bal, err := reader.NativeBalance(ctx, account)
		if err != nil {
			return Reply{}, xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not read balance")
		}
		amount = txbuilder.FormatUnits(bal, registry.NativeDecimals)
	} else {
		tok, found := chain.Token(symbol)
		if !found {
			return errorReply(xerrors.New(xerrors.CodeTokenNotFound, fmt.Sprintf("Token not found: %s on %s", symbol, chain.DisplayName))), nil
		}
		bal, err := reader.TokenBalance(ctx, tok.Address, account)
		if err != nil {
			return Reply{}, xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not read balance")
		}
		amount = txbuilder.FormatUnits(bal, tok.Decimals)
	}
	return Reply{
		Kind:    ReplyBalance,
		Message: fmt.Sprintf("Your balance is %s %s on %s", amount, symbol, chain.DisplayName),
		Balance: &Balance{Chain: chain.Name, Symbol: symbol, Amount: amount},
	}, nil
}

func errorReply(err error) Reply {
	return Reply{
		Kind:      ReplyError,
		Message:   xerrors.MessageOf(err),
		Code:      string(xerrors.CodeOf(err)),
		Retryable: xerrors.RetryableError(err),
	}
}

// record writes the pending history entry for a confirmed operation.
func (m *Machine) record(ctx context.Context, conversationID string, op *operation) {
	params := op.in.Params
	token := firstNonEmpty(params.Field(intent.ParamToken), params.Field(intent.ParamTokenIn))
	if token == "" && op.in.Kind() == intent.KindTransferNative {
		token = op.chain.NativeSymbol
	}
	rec := &history.Record{
		ID:             op.id,
		ConversationID: conversationID,
		Account:        op.account.Hex(),
		Chain:          op.chain.Name,
		ChainID:        op.chain.ChainID,
		Kind:           string(op.in.Kind()),
		Description:    op.description,
		Amount:         firstNonEmpty(params.Field(intent.ParamAmount), params.Field(intent.ParamAmountIn)),
		Token:          strings.ToUpper(token),
		Recipient:      params.Field(intent.ParamRecipient),
		Status:         history.StatusPending,
	}
	if err := m.deps.History.Create(ctx, rec); err != nil {
		m.log.Warn("record history", slog.String("operation", op.id), slog.Any("error", err))
	}
}

func (m *Machine) update(ctx context.Context, op *operation, st execution.State) {
	var status history.Status
	switch st.Phase {
	case execution.PhaseSuccess:
		status = history.StatusSuccess
	case execution.PhaseFailed:
		status = history.StatusFailed
	case execution.PhaseTimedOut:
		status = history.StatusTimedOut
	default:
		if st.TxHash == "" && st.ApprovalHash == "" {
			return
		}
	}
	update := history.Update{
		Status:       status,
		TxHash:       st.TxHash,
		ApprovalHash: st.ApprovalHash,
		ErrorCode:    string(st.Code),
		Detail:       st.Detail,
	}
	if err := m.deps.History.UpdateStatus(ctx, op.id, update); err != nil {
		m.log.Warn("update history", slog.String("operation", op.id), slog.Any("error", err))
	}
}

func (m *Machine) publish(ctx context.Context, typ events.Type, conversationID string, op *operation, st execution.State) {
	evt := events.Event{
		Type:           typ,
		ConversationID: conversationID,
		Phase:          string(st.Phase),
		Step:           string(st.Step),
		TxHash:         st.TxHash,
		Code:           string(st.Code),
		Detail:         st.Detail,
		Time:           m.now().UTC(),
	}
	if op != nil {
		evt.OperationID = op.id
		evt.Account = op.account.Hex()
		evt.Chain = op.chain.Name
		evt.Kind = string(op.in.Kind())
	}
	if err := m.deps.Events.Publish(ctx, evt); err != nil {
		m.log.Warn("publish event", slog.String("type", string(typ)), slog.Any("error", err))
	}
}

// Run follows wallet session changes until ctx ends. A change discards
// every preview and pending clarification and cancels operations that
// have not been submitted yet.
func (m *Machine) Run(ctx context.Context) error {
	changes := make(chan web3.SessionChange, 16)
	sub := m.deps.Session.SubscribeChanges(changes)
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			if err != nil {
				return xerrors.Wrap(xerrors.CodeSessionChanged, err, "session subscription failed")
			}
			return nil
		case change := <-changes:
			m.sessionChanged(ctx, change)
		}
	}
}

func (m *Machine) sessionChanged(ctx context.Context, change web3.SessionChange) {
	m.log.Info("wallet session changed",
		slog.String("kind", string(change.Kind)),
		slog.String("account", change.Account.Hex()),
		slog.Uint64("chain_id", change.ChainID),
	)
	err := m.deps.Events.Publish(ctx, events.Event{
		Type:    events.TypeSessionChanged,
		Account: change.Account.Hex(),
		Detail:  string(change.Kind),
		Time:    m.now().UTC(),
	})
	if err != nil {
		m.log.Warn("publish event", slog.String("type", string(events.TypeSessionChanged)), slog.Any("error", err))
	}

	cause := xerrors.New(xerrors.CodeSessionChanged, "Wallet session changed. Please repeat your request.")
	m.mu.Lock()
	ids := make([]string, 0, len(m.conversations))
	for id, c := range m.conversations {
		ids = append(ids, id)
		switch {
		case inFlight(c.phase) && c.op != nil && c.op.cancel != nil:
			c.op.cancel(cause)
		case c.phase == execution.PhasePreview || c.phase == PhaseClarifying:
			c.phase = PhaseIdle
			c.op = nil
		}
	}
	m.mu.Unlock()
	for _, id := range ids {
		if err := m.deps.Pending.Delete(ctx, id); err != nil {
			m.log.Warn("drop pending intent", slog.String("conversation", id), slog.Any("error", err))
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
