package web3

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// ErrSignatureRejected is returned by Session.SignAndSend when the holder of
// the key declines the request.
var ErrSignatureRejected = errors.New("signature request rejected")

// Fees carries either a legacy gas price or EIP-1559 fee caps.
type Fees struct {
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// DynamicFee reports whether the EIP-1559 fields are set.
func (f Fees) DynamicFee() bool {
	return f.MaxFeePerGas != nil && f.MaxPriorityFeePerGas != nil
}

// ChainTx is an unsigned transaction description.
type ChainTx struct {
	From     common.Address
	To       common.Address
	Value    *big.Int
	Data     []byte
	ChainID  uint64
	GasLimit uint64
	Fees     Fees
}

// Receipt is the inclusion result of a transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Succeeded   bool
}

// ChangeKind classifies session change notifications.
type ChangeKind string

const (
	ChangeAccount    ChangeKind = "account"
	ChangeChain      ChangeKind = "chain"
	ChangeDisconnect ChangeKind = "disconnect"
)

// SessionChange is published when the connected account or chain switches.
// Any in-flight operation bound to the previous session must be abandoned.
type SessionChange struct {
	Kind    ChangeKind
	Account common.Address
	ChainID uint64
}

// Session is the signing session. SignAndSend may block on a human decision.
type Session interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	CurrentChainID(ctx context.Context) (uint64, error)
	EstimateGas(ctx context.Context, tx ChainTx) (uint64, error)
	SuggestFees(ctx context.Context) (Fees, error)
	SignAndSend(ctx context.Context, tx ChainTx) (common.Hash, error)
	// WaitForInclusion returns a nil receipt and nil error when the
	// transaction is not included with enough confirmations within timeout.
	WaitForInclusion(ctx context.Context, hash common.Hash, confirmations uint64, timeout time.Duration) (*Receipt, error)
	SubscribeChanges(ch chan<- SessionChange) event.Subscription
}

// ChainReader is the set of read-only contract calls used to build
// transactions.
type ChainReader interface {
	NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	OwnerOf(ctx context.Context, collection common.Address, tokenID *big.Int) (common.Address, error)
	AmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error)
}

// ReaderSource resolves the ChainReader of a chain id.
type ReaderSource interface {
	Reader(ctx context.Context, chainID uint64) (ChainReader, error)
}
