// Package monitor waits for submitted transactions to reach a verdict.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ChatWallet/internal/web3"
	"ChatWallet/pkg/logger"
)

const (
	DefaultTimeout       = 5 * time.Minute
	DefaultConfirmations = 1
)

// Outcome is the tri-state verdict of a wait.
type Outcome string

const (
	Confirmed Outcome = "confirmed"
	Reverted  Outcome = "reverted"
	// TimedOut means the transaction was not seen in time. It may still be
	// included later and must be checked externally.
	TimedOut Outcome = "timed_out"
)

// Result is returned by Wait. Receipt is nil for TimedOut.
type Result struct {
	Outcome Outcome
	Receipt *web3.Receipt
	Detail  string
}

// Waiter is the part of the signing session the monitor polls.
type Waiter interface {
	WaitForInclusion(ctx context.Context, hash common.Hash, confirmations uint64, timeout time.Duration) (*web3.Receipt, error)
}

// Monitor wraps a Waiter with a deadline and tri-state reporting.
type Monitor struct {
	waiter        Waiter
	timeout       time.Duration
	confirmations uint64
	log           *slog.Logger
}

// Option customises a Monitor.
type Option func(*Monitor)

func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithConfirmations(n uint64) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.confirmations = n
		}
	}
}

// New creates a Monitor over waiter.
func New(waiter Waiter, opts ...Option) *Monitor {
	m := &Monitor{
		waiter:        waiter,
		timeout:       DefaultTimeout,
		confirmations: DefaultConfirmations,
		log:           logger.Named("monitor"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Wait blocks until hash is included, the timeout passes or ctx is done.
// It fails only when the underlying session reports an error; a timeout or
// an abandoned watch is a TimedOut result.
func (m *Monitor) Wait(ctx context.Context, hash common.Hash) (Result, error) {
	receipt, err := m.waiter.WaitForInclusion(ctx, hash, m.confirmations, m.timeout)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		m.log.Info("stopped watching transaction", slog.String("tx", hash.Hex()))
		return Result{Outcome: TimedOut, Detail: "stopped watching the transaction; it may still confirm"}, nil
	case err != nil:
		return Result{}, err
	case receipt == nil:
		m.log.Warn("transaction not included before timeout",
			slog.String("tx", hash.Hex()),
			slog.Duration("timeout", m.timeout),
		)
		return Result{Outcome: TimedOut, Detail: "transaction not confirmed in time; check its status on the explorer"}, nil
	case !receipt.Succeeded:
		m.log.Warn("transaction reverted", slog.String("tx", hash.Hex()), slog.Uint64("block", receipt.BlockNumber))
		return Result{Outcome: Reverted, Receipt: receipt, Detail: "transaction reverted on-chain"}, nil
	default:
		m.log.Info("transaction confirmed", slog.String("tx", hash.Hex()), slog.Uint64("block", receipt.BlockNumber))
		return Result{Outcome: Confirmed, Receipt: receipt}, nil
	}
}
