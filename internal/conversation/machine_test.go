package conversation

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	xerrors "ChatWallet/internal/errors"
	"ChatWallet/internal/events"
	"ChatWallet/internal/execution"
	"ChatWallet/internal/history"
	"ChatWallet/internal/intent"
	"ChatWallet/internal/registry"
	"ChatWallet/internal/txbuilder"
	"ChatWallet/internal/web3"
)

const (
	walletHex    = "0x00000000000000000000000000000000000000a1"
	recipientHex = "0x00000000000000000000000000000000000000b2"
	txHashHex    = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

type stubSession struct {
	feed    event.Feed
	chainID uint64
}

func (s *stubSession) RequestAccounts(context.Context) ([]common.Address, error) {
	return []common.Address{common.HexToAddress(walletHex)}, nil
}
func (s *stubSession) CurrentChainID(context.Context) (uint64, error) { return s.chainID, nil }
func (s *stubSession) EstimateGas(context.Context, web3.ChainTx) (uint64, error) {
	return 21000, nil
}
func (s *stubSession) SuggestFees(context.Context) (web3.Fees, error) { return web3.Fees{}, nil }
func (s *stubSession) SignAndSend(context.Context, web3.ChainTx) (common.Hash, error) {
	return common.HexToHash(txHashHex), nil
}
func (s *stubSession) WaitForInclusion(context.Context, common.Hash, uint64, time.Duration) (*web3.Receipt, error) {
	return &web3.Receipt{Succeeded: true}, nil
}
func (s *stubSession) SubscribeChanges(ch chan<- web3.SessionChange) event.Subscription {
	return s.feed.Subscribe(ch)
}

type stubReader struct {
	web3.ChainReader
	native *big.Int
}

func (r stubReader) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	return r.native, nil
}

type stubReaders struct{ reader web3.ChainReader }

func (s stubReaders) Reader(context.Context, uint64) (web3.ChainReader, error) { return s.reader, nil }

// stubBuilder stamps each build with its call number in Data. err applies
// from call failFrom on, or to every call when failFrom is zero.
type stubBuilder struct {
	mu       sync.Mutex
	err      error
	failFrom int
	calls    int
}

func (b *stubBuilder) Build(_ context.Context, in intent.Intent, account common.Address, chainID uint64, _ txbuilder.Estimator) (*txbuilder.Built, error) {
	b.mu.Lock()
	b.calls++
	n := b.calls
	err := b.err
	if n < b.failFrom {
		err = nil
	}
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	chain, _ := registry.Default().ChainByID(chainID)
	return &txbuilder.Built{
		Intent:      in,
		Description: intent.Describe(in),
		Chain:       chain,
		Account:     account,
		ActionTx: web3.ChainTx{
			From:     account,
			To:       common.HexToAddress(recipientHex),
			Value:    big.NewInt(100000000000000000),
			Data:     []byte{byte(n)},
			ChainID:  chainID,
			GasLimit: 25200,
		},
	}, nil
}

// stubExecutor replays states, or blocks until released or cancelled.
type stubExecutor struct {
	states  []execution.State
	release chan struct{}

	mu       sync.Mutex
	executed []*txbuilder.Built
}

func (e *stubExecutor) Execute(ctx context.Context, built *txbuilder.Built) <-chan execution.State {
	e.mu.Lock()
	e.executed = append(e.executed, built)
	e.mu.Unlock()
	out := make(chan execution.State, len(e.states)+1)
	go func() {
		defer close(out)
		out <- execution.State{Phase: execution.PhaseConfirming, Step: execution.StepSignature}
		if e.release != nil {
			select {
			case <-e.release:
			case <-ctx.Done():
				cause := context.Cause(ctx)
				out <- execution.State{Phase: execution.PhaseFailed, Code: xerrors.CodeOf(cause), Detail: xerrors.MessageOf(cause)}
				return
			}
		}
		for _, st := range e.states {
			out <- st
		}
	}()
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
	return nil
}
func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, evt := range p.events {
		out[i] = evt.Type
	}
	return out
}

type countingRecorder struct {
	mu      sync.Mutex
	intents int
	ops     []execution.Phase
}

func (r *countingRecorder) ObserveIntent(intent.Kind) {
	r.mu.Lock()
	r.intents++
	r.mu.Unlock()
}

func (r *countingRecorder) ObserveOperation(_ intent.Kind, _ string, st execution.State, _ time.Duration) {
	r.mu.Lock()
	r.ops = append(r.ops, st.Phase)
	r.mu.Unlock()
}

type fixture struct {
	machine  *Machine
	session  *stubSession
	builder  *stubBuilder
	executor *stubExecutor
	history  *history.MemoryStore
	events   *recordingPublisher
	recorder *countingRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	chains := registry.Default()
	schemas := intent.DefaultSchemas()
	f := &fixture{
		session:  &stubSession{chainID: 1},
		builder:  &stubBuilder{},
		executor: &stubExecutor{},
		history:  history.NewMemoryStore(),
		events:   &recordingPublisher{},
		recorder: &countingRecorder{},
	}
	f.machine = New(Deps{
		Chains:     chains,
		Recognizer: intent.NewRecognizer(chains, schemas),
		Validator:  intent.NewValidator(chains),
		Resolver:   intent.NewResolver(schemas, chains),
		Builder:    f.builder,
		Executor:   f.executor,
		Session:    f.session,
		Readers:    stubReaders{reader: stubReader{native: big.NewInt(1500000000000000000)}},
		History:    f.history,
		Events:     f.events,
	}, WithRecorder(f.recorder))
	return f
}

func (f *fixture) say(t *testing.T, id, text string) Reply {
	t.Helper()
	reply, err := f.machine.HandleMessage(context.Background(), id, text)
	if err != nil {
		t.Fatalf("%q: unexpected error %v", text, err)
	}
	return reply
}

func (f *fixture) phaseOf(id string) Phase {
	f.machine.mu.Lock()
	defer f.machine.mu.Unlock()
	if c, ok := f.machine.conversations[id]; ok {
		return c.phase
	}
	return PhaseIdle
}

func drain(ch <-chan execution.State) []execution.State {
	var out []execution.State
	for st := range ch {
		out = append(out, st)
	}
	return out
}

func TestUnknownMessageGetsHelp(t *testing.T) {
	f := newFixture(t)
	id := f.machine.Open("")
	reply := f.say(t, id, "hello there")
	if reply.Kind != ReplyHelp || reply.Message != helpMessage {
		t.Fatalf("unexpected reply %#v", reply)
	}
	if reply.Phase != PhaseIdle || reply.ConversationID != id {
		t.Fatalf("unexpected phase %s", reply.Phase)
	}
}

func TestClarificationLeadsToPreview(t *testing.T) {
	f := newFixture(t)
	id := f.machine.Open("")

	reply := f.say(t, id, "send usdc")
	if reply.Kind != ReplyClarification || reply.Phase != PhaseClarifying {
		t.Fatalf("expected clarification, got %#v", reply)
	}
	if reply.Message != "How many USDC tokens would you like to send?" {
		t.Fatalf("unexpected question %q", reply.Message)
	}

	reply = f.say(t, id, "not sure")
	if reply.Kind != ReplyClarification || !strings.HasPrefix(reply.Message, "I didn't catch that.") {
		t.Fatalf("expected re-ask, got %#v", reply)
	}

	f.say(t, id, "25")
	reply = f.say(t, id, recipientHex)
	if reply.Kind != ReplyPreview || reply.Phase != execution.PhasePreview {
		t.Fatalf("expected preview, got %#v", reply)
	}
	if reply.Preview == nil || reply.Preview.OperationID == "" || reply.Preview.Value != "0.1 ETH" {
		t.Fatalf("unexpected preview %#v", reply.Preview)
	}
	if !strings.HasPrefix(reply.Message, "I've prepared a transaction to send 25 USDC") {
		t.Fatalf("unexpected message %q", reply.Message)
	}
	snap, ok := f.machine.Snapshot(context.Background(), id)
	if !ok || snap.Awaiting != nil || snap.Preview == nil {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
}

func TestCancelPhraseDropsClarification(t *testing.T) {
	f := newFixture(t)
	id := f.machine.Open("")
	f.say(t, id, "send usdc")
	reply := f.say(t, id, "cancel")
	if reply.Kind != ReplyCancelled || reply.Phase != PhaseIdle {
		t.Fatalf("unexpected reply %#v", reply)
	}
	if snap, _ := f.machine.Snapshot(context.Background(), id); snap.Awaiting != nil {
		t.Fatalf("pending intent should be gone")
	}
}

func TestBalanceQuery(t *testing.T) {
	f := newFixture(t)
	id := f.machine.Open("")
	reply := f.say(t, id, "what's my balance")
	if reply.Kind != ReplyBalance || reply.Balance == nil {
		t.Fatalf("unexpected reply %#v", reply)
	}
	if reply.Balance.Amount != "1.5" || reply.Balance.Symbol != "ETH" {
		t.Fatalf("unexpected balance %#v", reply.Balance)
	}
	if f.builder.calls != 0 {
		t.Fatalf("read-only queries never build")
	}
}

func TestAddressQuery(t *testing.T) {
	f := newFixture(t)
	reply := f.say(t, f.machine.Open(""), "show my address")
	if reply.Kind != ReplyAddress || !strings.EqualFold(reply.Address, walletHex) {
		t.Fatalf("unexpected reply %#v", reply)
	}
}

func TestBuildFailureStillPreviews(t *testing.T) {
	f := newFixture(t)
	f.builder.err = xerrors.New(xerrors.CodeInsufficientBalance, "Insufficient balance. You have 0.01 ETH")
	id := f.machine.Open("")
	reply := f.say(t, id, "send 1 eth to "+recipientHex)
	if reply.Kind != ReplyPreview || reply.Phase != execution.PhasePreview || reply.Code != string(xerrors.CodeInsufficientBalance) {
		t.Fatalf("unexpected reply %#v", reply)
	}
	if reply.Retryable || reply.Preview == nil || reply.Preview.BuildError != "Insufficient balance. You have 0.01 ETH" {
		t.Fatalf("unexpected preview %#v", reply.Preview)
	}
	if !strings.Contains(reply.Message, "Confirm to try again or cancel.") {
		t.Fatalf("unexpected message %q", reply.Message)
	}
}

func TestConfirmBuildFailureFails(t *testing.T) {
	f := newFixture(t)
	f.builder.err = xerrors.New(xerrors.CodeInsufficientBalance, "Insufficient balance. You have 0.01 ETH")
	f.builder.failFrom = 2
	id := f.machine.Open("")
	preview := f.say(t, id, "send 1 eth to "+recipientHex).Preview
	if preview == nil || preview.BuildError != "" {
		t.Fatalf("the first build succeeds, got %#v", preview)
	}

	ch, err := f.machine.Confirm(context.Background(), id)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	states := drain(ch)
	if len(states) != 1 {
		t.Fatalf("expected a single failed state, got %#v", states)
	}
	last := states[0]
	if last.Phase != execution.PhaseFailed || last.Code != xerrors.CodeInsufficientBalance || last.Detail != "Insufficient balance. You have 0.01 ETH" {
		t.Fatalf("unexpected state %#v", last)
	}
	if len(f.executor.executed) != 0 {
		t.Fatal("nothing may be executed after a failed rebuild")
	}
	rec, err := f.history.Get(context.Background(), preview.OperationID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if rec.Status != history.StatusFailed || rec.ErrorCode != string(xerrors.CodeInsufficientBalance) {
		t.Fatalf("unexpected record %#v", rec)
	}
	if f.phaseOf(id) != execution.PhaseFailed {
		t.Fatalf("unexpected phase %s", f.phaseOf(id))
	}
	if reply := f.say(t, id, "send 0.1 eth to "+recipientHex); reply.Kind != ReplyPreview {
		t.Fatalf("a failed operation leaves the conversation usable, got %#v", reply)
	}
}

func TestConfirmRebuilds(t *testing.T) {
	f := newFixture(t)
	f.executor.states = []execution.State{{Phase: execution.PhaseSuccess, TxHash: txHashHex}}
	id := f.machine.Open("")
	f.say(t, id, "send 0.1 eth to "+recipientHex)

	ch, err := f.machine.Confirm(context.Background(), id)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	drain(ch)
	if f.builder.calls != 2 {
		t.Fatalf("expected preview and confirm builds, got %d", f.builder.calls)
	}
	if len(f.executor.executed) != 1 || f.executor.executed[0].ActionTx.Data[0] != 2 {
		t.Fatalf("confirm must execute the fresh build, got %#v", f.executor.executed)
	}
}

func TestInvalidIntentDiscardsPreview(t *testing.T) {
	f := newFixture(t)
	id := f.machine.Open("")
	f.say(t, id, "send 0.1 eth to "+recipientHex)
	reply := f.say(t, id, "send 0 eth to "+recipientHex)
	if reply.Kind != ReplyInvalid || reply.Phase != PhaseIdle {
		t.Fatalf("unexpected reply %#v", reply)
	}
	if _, err := f.machine.Confirm(context.Background(), id); xerrors.CodeOf(err) != xerrors.CodeConflict {
		t.Fatalf("the earlier preview must not stay confirmable, got %v", err)
	}
}

func TestInvalidIntentAsksToClarify(t *testing.T) {
	f := newFixture(t)
	reply := f.say(t, f.machine.Open(""), "send 0 eth to "+recipientHex)
	if reply.Kind != ReplyInvalid || len(reply.Errors) == 0 {
		t.Fatalf("unexpected reply %#v", reply)
	}
	if !strings.HasPrefix(reply.Message, "I couldn't process that: ") || !strings.HasSuffix(reply.Message, "Could you clarify?") {
		t.Fatalf("unexpected message %q", reply.Message)
	}
}

func TestConfirmRunsToSuccess(t *testing.T) {
	f := newFixture(t)
	f.executor.states = []execution.State{
		{Phase: execution.PhasePending, TxHash: txHashHex},
		{Phase: execution.PhaseSuccess, TxHash: txHashHex, ExplorerURL: "https://etherscan.io/tx/" + txHashHex},
	}
	id := f.machine.Open("")
	preview := f.say(t, id, "send 0.1 eth to "+recipientHex).Preview

	ch, err := f.machine.Confirm(context.Background(), id)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	states := drain(ch)
	if len(states) != 3 {
		t.Fatalf("unexpected states %#v", states)
	}
	if states[2].Phase != execution.PhaseSuccess {
		t.Fatalf("expected success, got %s", states[2].Phase)
	}

	rec, err := f.history.Get(context.Background(), preview.OperationID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if rec.Status != history.StatusSuccess || rec.TxHash != txHashHex || rec.Token != "ETH" || rec.Amount != "0.1" {
		t.Fatalf("unexpected record %#v", rec)
	}
	snap, _ := f.machine.Snapshot(context.Background(), id)
	if snap.Phase != execution.PhaseSuccess || snap.Last == nil || snap.Last.TxHash != txHashHex {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
	if len(f.recorder.ops) != 1 || f.recorder.ops[0] != execution.PhaseSuccess {
		t.Fatalf("unexpected recorded operations %v", f.recorder.ops)
	}
	if got := f.events.types(); len(got) != 3 || got[0] != events.TypeOperationState {
		t.Fatalf("unexpected events %v", got)
	}

	listed := f.say(t, id, "recent activity please")
	if listed.Kind != ReplyHistory || len(listed.History) != 1 {
		t.Fatalf("unexpected history reply %#v", listed)
	}

	next := f.say(t, id, "send 0.2 eth to "+recipientHex)
	if next.Kind != ReplyPreview || next.Preview.OperationID == preview.OperationID {
		t.Fatalf("a new intent must start a fresh operation, got %#v", next)
	}
}

func TestInFlightRejectsMessagesAndCancel(t *testing.T) {
	f := newFixture(t)
	f.executor.release = make(chan struct{})
	f.executor.states = []execution.State{{Phase: execution.PhasePending, TxHash: txHashHex}, {Phase: execution.PhaseSuccess, TxHash: txHashHex}}
	id := f.machine.Open("")
	f.say(t, id, "send 0.1 eth to "+recipientHex)

	ch, err := f.machine.Confirm(context.Background(), id)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	<-ch // confirming

	if _, err := f.machine.HandleMessage(context.Background(), id, "send 1 eth to "+recipientHex); xerrors.CodeOf(err) != xerrors.CodeOperationInProgress {
		t.Fatalf("expected in-progress error, got %v", err)
	}
	if _, err := f.machine.Cancel(context.Background(), id); xerrors.CodeOf(err) != xerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := f.machine.Confirm(context.Background(), id); xerrors.CodeOf(err) != xerrors.CodeOperationInProgress {
		t.Fatalf("expected in-progress error, got %v", err)
	}

	other := f.machine.Open("")
	if reply := f.say(t, other, "show my address"); reply.Kind != ReplyAddress {
		t.Fatalf("other conversations stay usable, got %#v", reply)
	}

	close(f.executor.release)
	if last := execution.Last(ch); last.Phase != execution.PhaseSuccess {
		t.Fatalf("expected success, got %#v", last)
	}
}

func TestCancelPreview(t *testing.T) {
	f := newFixture(t)
	id := f.machine.Open("")
	f.say(t, id, "send 0.1 eth to "+recipientHex)
	reply, err := f.machine.Cancel(context.Background(), id)
	if err != nil || reply.Phase != PhaseIdle {
		t.Fatalf("cancel: %#v %v", reply, err)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != events.TypeOperationCancelled {
		t.Fatalf("unexpected events %v", got)
	}
	if _, err := f.machine.Confirm(context.Background(), id); xerrors.CodeOf(err) != xerrors.CodeConflict {
		t.Fatalf("expected conflict after cancel, got %v", err)
	}
	if _, err := f.machine.Cancel(context.Background(), id); xerrors.CodeOf(err) != xerrors.CodeConflict {
		t.Fatalf("nothing left to cancel, got %v", err)
	}
}

func TestConfirmSurvivesCallerContext(t *testing.T) {
	f := newFixture(t)
	f.executor.release = make(chan struct{})
	f.executor.states = []execution.State{{Phase: execution.PhasePending, TxHash: txHashHex}, {Phase: execution.PhaseSuccess, TxHash: txHashHex}}
	id := f.machine.Open("")
	f.say(t, id, "send 0.1 eth to "+recipientHex)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := f.machine.Confirm(ctx, id)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	cancel()
	close(f.executor.release)
	if last := execution.Last(ch); last.Phase != execution.PhaseSuccess {
		t.Fatalf("caller cancellation must not abort the operation, got %#v", last)
	}
}

func TestSessionChangeCancelsUnsubmittedOperation(t *testing.T) {
	f := newFixture(t)
	f.executor.release = make(chan struct{})
	running := f.machine.Open("")
	f.say(t, running, "send 0.1 eth to "+recipientHex)
	previewing := f.machine.Open("")
	f.say(t, previewing, "send 0.2 eth to "+recipientHex)
	clarifying := f.machine.Open("")
	f.say(t, clarifying, "send usdc")

	ch, err := f.machine.Confirm(context.Background(), running)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	<-ch

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.machine.Run(ctx) }()
	deadline := time.Now().Add(2 * time.Second)
	for f.session.feed.Send(web3.SessionChange{Kind: web3.ChangeAccount, Account: common.HexToAddress(recipientHex)}) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("machine never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	last := execution.Last(ch)
	if last.Phase != execution.PhaseFailed || last.Code != xerrors.CodeSessionChanged {
		t.Fatalf("expected session-changed failure, got %#v", last)
	}

	for f.phaseOf(previewing) != PhaseIdle || f.phaseOf(clarifying) != PhaseIdle {
		if time.Now().After(deadline) {
			t.Fatalf("preview and clarification should be discarded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := f.machine.Confirm(context.Background(), previewing); xerrors.CodeOf(err) != xerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	stop()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestPhaseTransitions(t *testing.T) {
	cases := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseIdle, execution.PhasePreview, true},
		{PhaseIdle, execution.PhaseConfirming, false},
		{execution.PhasePreview, execution.PhaseConfirming, true},
		{execution.PhaseConfirming, execution.PhasePreview, false},
		{execution.PhasePending, execution.PhaseTimedOut, true},
		{execution.PhasePending, PhaseIdle, false},
		{execution.PhaseSuccess, execution.PhasePreview, true},
	}
	for _, tc := range cases {
		if got := canTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.ok)
		}
	}
	if err := checkTransition(PhaseIdle, execution.PhaseSuccess); err == nil || errors.Unwrap(err) != nil {
		t.Fatalf("expected plain transition error, got %v", err)
	}
}

func TestUnknownConversation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.machine.HandleMessage(context.Background(), "missing", "hi"); xerrors.CodeOf(err) != xerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, ok := f.machine.Snapshot(context.Background(), "missing"); ok {
		t.Fatalf("unexpected snapshot")
	}
}
