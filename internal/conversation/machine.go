// Package conversation runs the per-conversation dialogue: recognition,
// clarification, validation, preview, confirmation and execution.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	xerrors "ChatWallet/internal/errors"
	"ChatWallet/internal/events"
	"ChatWallet/internal/execution"
	"ChatWallet/internal/history"
	"ChatWallet/internal/intent"
	"ChatWallet/internal/registry"
	"ChatWallet/internal/txbuilder"
	"ChatWallet/internal/web3"
	"ChatWallet/pkg/logger"
)

const helpMessage = "I'm not sure I understand. I can help you transfer assets, swap tokens, or check your balance."

// Builder builds transactions for complete intents.
type Builder interface {
	Build(ctx context.Context, in intent.Intent, account common.Address, chainID uint64, est txbuilder.Estimator) (*txbuilder.Built, error)
}

// Executor runs built operations.
type Executor interface {
	Execute(ctx context.Context, built *txbuilder.Built) <-chan execution.State
}

// Recorder observes outcomes, typically for metrics.
type Recorder interface {
	ObserveIntent(kind intent.Kind)
	ObserveOperation(kind intent.Kind, chain string, state execution.State, elapsed time.Duration)
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Chains     *registry.Registry
	Recognizer *intent.Recognizer
	Validator  *intent.Validator
	Resolver   *intent.Resolver
	Builder    Builder
	Executor   Executor
	Session    web3.Session
	Readers    web3.ReaderSource
	Pending    PendingStore
	History    history.Store
	Events     events.Publisher
}

// operation is one intent from preview to terminal state.
type operation struct {
	id          string
	in          intent.Intent
	account     common.Address
	chain       registry.Chain
	description string
	// built is the most recent successful build. Confirm replaces it; it is
	// nil when the preview build failed.
	built     *txbuilder.Built
	preview   *Preview
	last      *execution.State
	cancel    context.CancelCauseFunc
	startedAt time.Time
}

type conversation struct {
	id    string
	owner string
	phase Phase
	// busy is set while a turn or an execution owns the conversation.
	busy bool
	op   *operation
}

// Machine holds every live conversation.
type Machine struct {
	deps         Deps
	defaultChain string
	historyLimit int
	recorder     Recorder
	now          func() time.Time
	log          *slog.Logger

	mu            sync.Mutex
	conversations map[string]*conversation
}

// Option customises a Machine.
type Option func(*Machine)

// WithDefaultChain names the chain used when the wallet is on an
// unsupported network.
func WithDefaultChain(name string) Option {
	return func(m *Machine) {
		if name != "" {
			m.defaultChain = strings.ToLower(name)
		}
	}
}

// WithHistoryLimit sets how many records "show history" returns.
func WithHistoryLimit(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}

// WithRecorder registers an outcome observer.
func WithRecorder(r Recorder) Option {
	return func(m *Machine) { m.recorder = r }
}

// New creates a Machine.
func New(deps Deps, opts ...Option) *Machine {
	if deps.Pending == nil {
		deps.Pending = NewMemoryPendingStore(0)
	}
	if deps.History == nil {
		deps.History = history.NewMemoryStore()
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	m := &Machine{
		deps:          deps,
		defaultChain:  "ethereum",
		historyLimit:  10,
		now:           time.Now,
		log:           logger.Named("conversation"),
		conversations: make(map[string]*conversation),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Open starts a new conversation bound to owner and returns its id. owner
// is the authenticated account, or empty when authentication is off.
func (m *Machine) Open(owner string) string {
	id := uuid.NewString()
	m.mu.Lock()
	m.conversations[id] = &conversation{id: id, owner: owner, phase: PhaseIdle}
	m.mu.Unlock()
	return id
}

// Owner returns the account conversation id was opened for.
func (m *Machine) Owner(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return "", false
	}
	return c.owner, true
}

// acquire marks the conversation busy for one turn.
func (m *Machine) acquire(id string) (*conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, "conversation not found")
	}
	if c.busy || inFlight(c.phase) {
		return nil, xerrors.New(xerrors.CodeOperationInProgress, "An operation is already in progress. Please wait for it to finish.")
	}
	c.busy = true
	return c, nil
}

func (m *Machine) release(c *conversation) {
	m.mu.Lock()
	c.busy = false
	m.mu.Unlock()
}

// transition moves c to next. Caller holds m.mu.
func (m *Machine) transition(c *conversation, next Phase) {
	if c.phase == next && !canTransition(next, next) {
		return
	}
	if err := checkTransition(c.phase, next); err != nil {
		m.log.Error("conversation state violation", slog.String("conversation", c.id), slog.Any("error", err))
		return
	}
	c.phase = next
}

// Snapshot returns the current state of conversation id.
func (m *Machine) Snapshot(ctx context.Context, id string) (Snapshot, bool) {
	m.mu.Lock()
	c, ok := m.conversations[id]
	var snap Snapshot
	if ok {
		snap = Snapshot{ID: id, Phase: c.phase}
		if c.op != nil {
			snap.Preview = c.op.preview
			if c.op.last != nil {
				last := *c.op.last
				snap.Last = &last
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	if pending, found, err := m.deps.Pending.Load(ctx, id); err == nil && found {
		snap.Awaiting = &pending
	}
	return snap, true
}

// HandleMessage processes one user turn.
func (m *Machine) HandleMessage(ctx context.Context, id, text string) (Reply, error) {
	c, err := m.acquire(id)
	if err != nil {
		return Reply{}, err
	}
	defer m.release(c)

	reply, err := m.handle(ctx, c, strings.TrimSpace(text))
	reply.ConversationID = id
	m.mu.Lock()
	reply.Phase = c.phase
	m.mu.Unlock()
	return reply, err
}

func (m *Machine) handle(ctx context.Context, c *conversation, text string) (Reply, error) {
	account, chain, err := m.sessionContext(ctx)
	if err != nil {
		return Reply{}, err
	}

	pending, awaiting, err := m.deps.Pending.Load(ctx, c.id)
	if err != nil {
		return Reply{}, err
	}
	var in intent.Intent
	if awaiting {
		if isCancelPhrase(text) {
			if err := m.deps.Pending.Delete(ctx, c.id); err != nil {
				m.log.Warn("drop pending intent", slog.String("conversation", c.id), slog.Any("error", err))
			}
			m.setPhase(c, PhaseIdle)
			return Reply{Kind: ReplyCancelled, Message: "Okay, I've dropped that request."}, nil
		}
		supplied, ok := m.deps.Resolver.Supply(pending, text)
		if !ok {
			question, _ := m.deps.Resolver.Question(pending)
			return Reply{Kind: ReplyClarification, Message: "I didn't catch that. " + question, Intent: &pending}, nil
		}
		in = supplied
	} else {
		in = m.deps.Recognizer.Recognize(text, chain.Name)
	}
	if m.recorder != nil {
		m.recorder.ObserveIntent(in.Kind())
	}
	m.log.Debug("intent recognized",
		slog.String("conversation", c.id),
		slog.String("kind", string(in.Kind())),
		slog.Float64("confidence", in.Confidence),
		slog.Int("missing", len(in.Missing)),
	)

	if in.Kind() == intent.KindUnknown {
		return Reply{Kind: ReplyHelp, Message: helpMessage}, nil
	}

	if question, ok := m.deps.Resolver.Question(in); ok {
		if err := m.deps.Pending.Save(ctx, c.id, in); err != nil {
			return Reply{}, err
		}
		m.setPhase(c, PhaseClarifying)
		return Reply{Kind: ReplyClarification, Message: question, Intent: &in}, nil
	}
	if awaiting {
		if err := m.deps.Pending.Delete(ctx, c.id); err != nil {
			m.log.Warn("drop pending intent", slog.String("conversation", c.id), slog.Any("error", err))
		}
	}

	validation := m.deps.Validator.Validate(in)
	if !validation.Valid {
		m.setPhase(c, PhaseIdle)
		return Reply{
			Kind:    ReplyInvalid,
			Message: fmt.Sprintf("I couldn't process that: %s. Could you clarify?", strings.Join(validation.Errors, ", ")),
			Intent:  &in,
			Errors:  validation.Errors,
		}, nil
	}

	if !in.Kind().Transactional() {
		if awaiting {
			m.setPhase(c, PhaseIdle)
		}
		return m.answer(ctx, in, account)
	}
	return m.preview(ctx, c, in, account, chain, validation.Warnings)
}

// preview builds in for display. A failed build still yields a preview so
// the user can retry on confirm, which always rebuilds.
func (m *Machine) preview(ctx context.Context, c *conversation, in intent.Intent, account common.Address, chain registry.Chain, warnings []string) (Reply, error) {
	op := &operation{id: uuid.NewString(), in: in, account: account, chain: chain, description: intent.Describe(in)}
	built, err := m.deps.Builder.Build(ctx, in, account, chain.ChainID, m.deps.Session)
	var message string
	if err != nil {
		m.log.Info("build rejected", slog.String("conversation", c.id), slog.String("code", string(xerrors.CodeOf(err))), slog.String("detail", xerrors.MessageOf(err)))
		op.preview = intentPreview(op, warnings, err)
		message = fmt.Sprintf("I couldn't prepare a transaction to %s: %s. Confirm to try again or cancel.", lowerFirst(op.description), xerrors.MessageOf(err))
	} else {
		op.built = built
		op.preview = newPreview(op.id, built, warnings)
		message = fmt.Sprintf("I've prepared a transaction to %s. Please review and confirm.", lowerFirst(built.Description))
		if built.ApprovalTx != nil {
			message += " A token approval will be requested first."
		}
	}

	m.mu.Lock()
	c.op = op
	m.transition(c, execution.PhasePreview)
	m.mu.Unlock()

	reply := Reply{Kind: ReplyPreview, Message: message, Intent: &in, Preview: op.preview}
	if err != nil {
		reply.Code = string(xerrors.CodeOf(err))
		reply.Retryable = xerrors.RetryableError(err)
	}
	return reply, nil
}

// Confirm starts the previewed operation and streams its states. The
// transaction is rebuilt first so quotes, deadlines and fees are current;
// a failed rebuild ends the stream with a failed state. The operation keeps
// running when ctx ends; only a session change cancels it, and only before
// submission.
func (m *Machine) Confirm(ctx context.Context, id string) (<-chan execution.State, error) {
	c, err := m.acquire(id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if c.phase != execution.PhasePreview || c.op == nil {
		c.busy = false
		m.mu.Unlock()
		return nil, xerrors.New(xerrors.CodeConflict, "There is no transaction waiting for confirmation.")
	}
	op := c.op
	runCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	op.cancel = cancel
	op.startedAt = m.now()
	m.transition(c, execution.PhaseConfirming)
	c.busy = false
	m.mu.Unlock()

	m.record(ctx, c.id, op)
	out := make(chan execution.State, 8)
	go func() {
		states := m.launch(runCtx, c, op)
		m.follow(runCtx, c, op, states, out)
	}()
	return out, nil
}

// launch rebuilds op and hands the fresh build to the executor.
func (m *Machine) launch(ctx context.Context, c *conversation, op *operation) <-chan execution.State {
	built, err := m.deps.Builder.Build(ctx, op.in, op.account, op.chain.ChainID, m.deps.Session)
	if ctx.Err() != nil {
		err = context.Cause(ctx)
	}
	if err != nil {
		m.log.Info("rebuild rejected", slog.String("conversation", c.id), slog.String("operation", op.id), slog.String("code", string(xerrors.CodeOf(err))))
		failed := make(chan execution.State, 1)
		failed <- execution.Failure(err)
		close(failed)
		return failed
	}
	m.mu.Lock()
	op.built = built
	m.mu.Unlock()
	return m.deps.Executor.Execute(ctx, built)
}

func (m *Machine) follow(ctx context.Context, c *conversation, op *operation, states <-chan execution.State, out chan<- execution.State) {
	defer close(out)
	defer op.cancel(nil)
	log := m.log.With(slog.String("conversation", c.id), slog.String("operation", op.id))
	for st := range states {
		m.mu.Lock()
		m.transition(c, st.Phase)
		last := st
		op.last = &last
		m.mu.Unlock()

		m.publish(ctx, events.TypeOperationState, c.id, op, st)
		m.update(ctx, op, st)
		if st.Phase.Terminal() {
			log.Info("operation finished", slog.String("phase", string(st.Phase)), slog.String("tx", st.TxHash), slog.String("code", string(st.Code)))
			logger.Audit().Info("operation finished",
				slog.String("operation", op.id),
				slog.String("account", op.account.Hex()),
				slog.String("chain", op.chain.Name),
				slog.String("kind", string(op.in.Kind())),
				slog.String("phase", string(st.Phase)),
				slog.String("tx", st.TxHash),
			)
			if m.recorder != nil {
				m.recorder.ObserveOperation(op.in.Kind(), op.chain.Name, st, m.now().Sub(op.startedAt))
			}
		}
		out <- st
	}
}

// Cancel discards a preview or a pending clarification. Once confirmation
// has started the operation cannot be cancelled.
func (m *Machine) Cancel(ctx context.Context, id string) (Reply, error) {
	c, err := m.acquire(id)
	if err != nil {
		if xerrors.CodeOf(err) == xerrors.CodeOperationInProgress {
			return Reply{}, xerrors.New(xerrors.CodeConflict, "The transaction has already been sent for signing and can no longer be cancelled.")
		}
		return Reply{}, err
	}
	defer m.release(c)

	m.mu.Lock()
	phase, op := c.phase, c.op
	m.mu.Unlock()
	switch phase {
	case execution.PhasePreview:
		m.setPhase(c, PhaseIdle)
		m.publish(ctx, events.TypeOperationCancelled, c.id, op, execution.State{Phase: PhaseIdle, Detail: "cancelled by user"})
		return Reply{ConversationID: id, Kind: ReplyCancelled, Phase: PhaseIdle, Message: "Transaction cancelled."}, nil
	case PhaseClarifying:
		if err := m.deps.Pending.Delete(ctx, id); err != nil {
			return Reply{}, err
		}
		m.setPhase(c, PhaseIdle)
		return Reply{ConversationID: id, Kind: ReplyCancelled, Phase: PhaseIdle, Message: "Okay, I've dropped that request."}, nil
	}
	return Reply{}, xerrors.New(xerrors.CodeConflict, "There is nothing to cancel.")
}

func (m *Machine) setPhase(c *conversation, next Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transition(c, next)
	if next == PhaseIdle || next == PhaseClarifying {
		c.op = nil
	}
}

func (m *Machine) sessionContext(ctx context.Context) (common.Address, registry.Chain, error) {
	accounts, err := m.deps.Session.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, registry.Chain{}, xerrors.Wrap(xerrors.CodeUnauthenticated, err, "Connect a wallet first")
	}
	if len(accounts) == 0 {
		return common.Address{}, registry.Chain{}, xerrors.New(xerrors.CodeUnauthenticated, "Connect a wallet first")
	}
	chainID, err := m.deps.Session.CurrentChainID(ctx)
	if err != nil {
		return common.Address{}, registry.Chain{}, xerrors.Wrap(xerrors.CodeSessionChanged, err, "Could not read the wallet network")
	}
	chain, ok := m.deps.Chains.ChainByID(chainID)
	if !ok {
		chain, ok = m.deps.Chains.Chain(m.defaultChain)
		if !ok {
			return common.Address{}, registry.Chain{}, xerrors.New(xerrors.CodeChainUnsupported, fmt.Sprintf("Unsupported chain: %d", chainID))
		}
	}
	return accounts[0], chain, nil
}

func newPreview(id string, built *txbuilder.Built, warnings []string) *Preview {
	p := &Preview{
		OperationID:   id,
		Description:   built.Description,
		Chain:         built.Chain.DisplayName,
		From:          built.Account.Hex(),
		To:            built.ActionTx.To.Hex(),
		Value:         txbuilder.FormatUnits(built.ActionTx.Value, registry.NativeDecimals) + " " + built.Chain.NativeSymbol,
		GasLimit:      built.ActionTx.GasLimit,
		NeedsApproval: built.ApprovalTx != nil,
		Warnings:      warnings,
	}
	if q := built.Quote; q != nil {
		in, out := quoteDecimals(built)
		path := make([]string, len(q.Path))
		for i, addr := range q.Path {
			path[i] = addr.Hex()
		}
		p.Quote = &Quote{
			AmountIn:     txbuilder.FormatUnits(q.AmountIn, in),
			AmountOut:    txbuilder.FormatUnits(q.AmountOut, out),
			AmountOutMin: txbuilder.FormatUnits(q.AmountOutMin, out),
			SlippageBps:  q.SlippageBps,
			Path:         path,
			PriceImpact:  q.PriceImpact,
			Deadline:     q.Deadline.Unix(),
		}
	}
	return p
}

// intentPreview describes op when no transaction could be built.
func intentPreview(op *operation, warnings []string, err error) *Preview {
	return &Preview{
		OperationID: op.id,
		Description: op.description,
		Chain:       op.chain.DisplayName,
		From:        op.account.Hex(),
		Warnings:    warnings,
		BuildError:  xerrors.MessageOf(err),
	}
}

// quoteDecimals returns the decimals of the first and last path tokens.
func quoteDecimals(built *txbuilder.Built) (uint8, uint8) {
	in, out := uint8(registry.NativeDecimals), uint8(registry.NativeDecimals)
	path := built.Quote.Path
	for _, tok := range built.Chain.Tokens {
		if tok.Address == path[0] {
			in = tok.Decimals
		}
		if tok.Address == path[len(path)-1] {
			out = tok.Decimals
		}
	}
	return in, out
}

func isCancelPhrase(text string) bool {
	switch strings.ToLower(strings.Trim(text, " .!")) {
	case "cancel", "stop", "never mind", "nevermind", "forget it":
		return true
	}
	return false
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
