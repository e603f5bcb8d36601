package execution

import (
	xerrors "ChatWallet/internal/errors"
	"ChatWallet/internal/web3"
)

// Phase is the lifecycle phase of an operation.
type Phase string

const (
	PhasePreview    Phase = "preview"
	PhaseConfirming Phase = "confirming"
	PhasePending    Phase = "pending"
	PhaseSuccess    Phase = "success"
	PhaseFailed     Phase = "failed"
	// PhaseTimedOut is terminal but not a failure verdict: the transaction
	// was submitted and may still confirm.
	PhaseTimedOut Phase = "timed_out"
)

// Terminal reports whether no further state follows p.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseSuccess, PhaseFailed, PhaseTimedOut:
		return true
	}
	return false
}

// Step refines PhaseConfirming.
type Step string

const (
	StepApprovalSignature    Step = "awaiting-approval-signature"
	StepApprovalConfirmation Step = "awaiting-approval-confirmation"
	StepSignature            Step = "awaiting-signature"
)

// State is one element of an execution stream.
type State struct {
	Phase        Phase         `json:"phase"`
	Step         Step          `json:"step,omitempty"`
	TxHash       string        `json:"txHash,omitempty"`
	ApprovalHash string        `json:"approvalHash,omitempty"`
	ExplorerURL  string        `json:"explorerUrl,omitempty"`
	Detail       string        `json:"detail,omitempty"`
	Code         xerrors.Code  `json:"code,omitempty"`
	// Retryable marks a failure the user may confirm again.
	Retryable bool          `json:"retryable,omitempty"`
	Receipt   *web3.Receipt `json:"receipt,omitempty"`
}

// Failure is the terminal state for err.
func Failure(err error) State {
	return State{
		Phase:     PhaseFailed,
		Code:      xerrors.CodeOf(err),
		Detail:    xerrors.MessageOf(err),
		Retryable: xerrors.RetryableError(err),
	}
}

// Last drains ch and returns the final state it delivered.
func Last(ch <-chan State) State {
	var last State
	for st := range ch {
		last = st
	}
	return last
}
