// Package execution sequences built transactions through the signing
// session and reports their progress as a stream of states.
package execution

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	xerrors "ChatWallet/internal/errors"
	"ChatWallet/internal/monitor"
	"ChatWallet/internal/txbuilder"
	"ChatWallet/internal/web3"
	"ChatWallet/pkg/logger"
)

// Signer submits transactions. It may block on a human decision.
type Signer interface {
	SignAndSend(ctx context.Context, tx web3.ChainTx) (common.Hash, error)
}

// Watcher resolves submitted transactions.
type Watcher interface {
	Wait(ctx context.Context, hash common.Hash) (monitor.Result, error)
}

// Coordinator runs a Built operation: approval, confirmation of the
// approval, action, confirmation of the action.
type Coordinator struct {
	signer  Signer
	watcher Watcher
	log     *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(signer Signer, watcher Watcher) *Coordinator {
	return &Coordinator{signer: signer, watcher: watcher, log: logger.Named("execution")}
}

// Execute starts built and returns its state stream. The stream ends with a
// terminal state and is then closed. ctx is consulted before each
// submission; after the action is submitted cancelling it only abandons the
// watch.
func (c *Coordinator) Execute(ctx context.Context, built *txbuilder.Built) <-chan State {
	// Room for every state of the longest run so the worker never blocks.
	out := make(chan State, 6)
	go func() {
		defer close(out)
		c.run(ctx, built, out)
	}()
	return out
}

func (c *Coordinator) run(ctx context.Context, built *txbuilder.Built, out chan<- State) {
	log := c.log.With(slog.String("kind", string(built.Intent.Kind())), slog.String("chain", built.Chain.Name))
	var approvalHash string
	fail := func(err error) {
		st := Failure(err)
		st.ApprovalHash = approvalHash
		log.Log(ctx, xerrors.SeverityOf(err).Level(), "operation failed",
			slog.String("code", string(st.Code)),
			slog.String("detail", st.Detail),
			slog.Bool("retryable", st.Retryable),
		)
		if xerrors.ShouldAlert(err) {
			logger.Audit().Warn("alert", slog.String("code", string(st.Code)), slog.String("detail", st.Detail))
		}
		out <- st
	}

	if built.ApprovalTx != nil {
		out <- State{Phase: PhaseConfirming, Step: StepApprovalSignature}
		hash, err := c.submit(ctx, *built.ApprovalTx)
		if err != nil {
			fail(err)
			return
		}
		approvalHash = hash.Hex()
		log.Info("approval submitted", slog.String("tx", approvalHash))
		out <- State{Phase: PhaseConfirming, Step: StepApprovalConfirmation, ApprovalHash: approvalHash, ExplorerURL: built.Chain.TxURL(approvalHash)}

		res, err := c.watcher.Wait(ctx, hash)
		if err != nil {
			fail(xerrors.Wrap(xerrors.CodeApprovalFailed, err, "Could not confirm the token approval"))
			return
		}
		switch res.Outcome {
		case monitor.Reverted:
			fail(xerrors.New(xerrors.CodeApprovalFailed, "Token approval reverted on-chain"))
			return
		case monitor.TimedOut:
			fail(xerrors.New(xerrors.CodeApprovalFailed, "Token approval was not confirmed: "+res.Detail))
			return
		}
	}

	out <- State{Phase: PhaseConfirming, Step: StepSignature, ApprovalHash: approvalHash}
	hash, err := c.submit(ctx, built.ActionTx)
	if err != nil {
		fail(err)
		return
	}
	txHash := hash.Hex()
	url := built.Chain.TxURL(txHash)
	log.Info("transaction submitted", slog.String("tx", txHash))
	out <- State{Phase: PhasePending, TxHash: txHash, ApprovalHash: approvalHash, ExplorerURL: url}

	res, err := c.watcher.Wait(ctx, hash)
	if err != nil {
		log.Warn("lost track of transaction", slog.String("tx", txHash), slog.Any("error", err))
		out <- State{Phase: PhaseTimedOut, TxHash: txHash, ApprovalHash: approvalHash, ExplorerURL: url, Code: xerrors.CodeTimeout,
			Detail: "Lost track of the transaction; check its status on the explorer"}
		return
	}
	switch res.Outcome {
	case monitor.Confirmed:
		out <- State{Phase: PhaseSuccess, TxHash: txHash, ApprovalHash: approvalHash, ExplorerURL: url, Receipt: res.Receipt}
	case monitor.Reverted:
		out <- State{Phase: PhaseFailed, TxHash: txHash, ApprovalHash: approvalHash, ExplorerURL: url, Receipt: res.Receipt,
			Code: xerrors.CodeReverted, Detail: "Transaction reverted on-chain"}
	default:
		out <- State{Phase: PhaseTimedOut, TxHash: txHash, ApprovalHash: approvalHash, ExplorerURL: url, Code: xerrors.CodeTimeout, Detail: res.Detail}
	}
}

// submit checks ctx, then hands tx to the signer and classifies its error.
func (c *Coordinator) submit(ctx context.Context, tx web3.ChainTx) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, cancelled(ctx)
	}
	hash, err := c.signer.SignAndSend(ctx, tx)
	switch {
	case err == nil:
		return hash, nil
	case errors.Is(err, web3.ErrSignatureRejected):
		return common.Hash{}, xerrors.Wrap(xerrors.CodeSigningRejected, err, "Transaction rejected in wallet")
	case ctx.Err() != nil:
		return common.Hash{}, cancelled(ctx)
	}
	if _, ok := xerrors.From(err); ok {
		return common.Hash{}, err
	}
	return common.Hash{}, xerrors.Wrap(xerrors.CodeSubmissionFailed, err, "Failed to submit transaction: "+err.Error())
}

func cancelled(ctx context.Context) error {
	cause := context.Cause(ctx)
	if _, ok := xerrors.From(cause); ok {
		return cause
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		return xerrors.Wrap(xerrors.CodeTimeout, cause, "Operation timed out before submission")
	}
	return xerrors.Wrap(xerrors.CodeSessionChanged, cause, "Operation cancelled before submission")
}
