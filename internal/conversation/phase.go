package conversation

import (
	"fmt"

	"ChatWallet/internal/execution"
)

// Phase is the state of a conversation's current operation. It extends the
// execution phases with the states before a preview exists.
type Phase = execution.Phase

const (
	PhaseIdle       Phase = "idle"
	PhaseClarifying Phase = "clarifying"
)

// transitions lists the phases reachable from each phase. Terminal phases
// return to the start because the next intent is always a fresh operation.
var transitions = map[Phase][]Phase{
	PhaseIdle:                 {PhaseClarifying, execution.PhasePreview},
	PhaseClarifying:           {PhaseClarifying, execution.PhasePreview, PhaseIdle},
	execution.PhasePreview:    {execution.PhaseConfirming, execution.PhasePreview, PhaseClarifying, PhaseIdle},
	execution.PhaseConfirming: {execution.PhaseConfirming, execution.PhasePending, execution.PhaseFailed},
	execution.PhasePending:    {execution.PhaseSuccess, execution.PhaseFailed, execution.PhaseTimedOut},
	execution.PhaseSuccess:    {PhaseIdle, PhaseClarifying, execution.PhasePreview},
	execution.PhaseFailed:     {PhaseIdle, PhaseClarifying, execution.PhasePreview},
	execution.PhaseTimedOut:   {PhaseIdle, PhaseClarifying, execution.PhasePreview},
}

func canTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to Phase) error {
	if !canTransition(from, to) {
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	return nil
}

// inFlight reports whether an operation in p must run to completion.
func inFlight(p Phase) bool {
	return p == execution.PhaseConfirming || p == execution.PhasePending
}
