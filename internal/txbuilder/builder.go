package txbuilder

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	xerrors "ChatWallet/internal/errors"
	"ChatWallet/internal/intent"
	"ChatWallet/internal/registry"
	"ChatWallet/internal/web3"
	"ChatWallet/internal/web3/contracts"
	"ChatWallet/pkg/logger"
)

const (
	// DefaultGasBufferPercent inflates every gas estimate.
	DefaultGasBufferPercent = 20
	// DefaultDeadline bounds how long a router accepts a swap.
	DefaultDeadline = 20 * time.Minute
	// DefaultSwapGasLimit is used for a swap that cannot be estimated yet
	// because its approval has not been mined.
	DefaultSwapGasLimit = 300_000
)

// Estimator is the part of the signing session the builder needs.
type Estimator interface {
	EstimateGas(ctx context.Context, tx web3.ChainTx) (uint64, error)
	SuggestFees(ctx context.Context) (web3.Fees, error)
}

// Built is the output of Build. ApprovalTx, when set, must be confirmed
// before ActionTx is submitted.
type Built struct {
	Intent      intent.Intent
	Description string
	Chain       registry.Chain
	Account     common.Address
	ApprovalTx  *web3.ChainTx
	ActionTx    web3.ChainTx
	Quote       *SwapQuote
}

// Builder turns validated intents into chain transactions.
type Builder struct {
	chains            *registry.Registry
	readers           web3.ReaderSource
	gasBufferPercent  uint64
	deadline          time.Duration
	unlimitedApproval bool
	swapGasLimit      uint64
	now               func() time.Time
	log               *slog.Logger
}

// Option customises a Builder.
type Option func(*Builder)

// WithGasBuffer sets the gas estimate inflation in percent.
func WithGasBuffer(percent int) Option {
	return func(b *Builder) {
		if percent >= 0 {
			b.gasBufferPercent = uint64(percent)
		}
	}
}

// WithDeadline sets the swap execution window.
func WithDeadline(d time.Duration) Option {
	return func(b *Builder) {
		if d > 0 {
			b.deadline = d
		}
	}
}

// WithUnlimitedApproval approves the router for the maximum amount instead
// of the exact swap input.
func WithUnlimitedApproval(enabled bool) Option {
	return func(b *Builder) { b.unlimitedApproval = enabled }
}

// WithSwapGasLimit overrides DefaultSwapGasLimit.
func WithSwapGasLimit(gas uint64) Option {
	return func(b *Builder) {
		if gas > 0 {
			b.swapGasLimit = gas
		}
	}
}

// WithClock replaces time.Now for deadline computation.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a Builder.
func New(chains *registry.Registry, readers web3.ReaderSource, opts ...Option) *Builder {
	b := &Builder{
		chains:           chains,
		readers:          readers,
		gasBufferPercent: DefaultGasBufferPercent,
		deadline:         DefaultDeadline,
		swapGasLimit:     DefaultSwapGasLimit,
		now:              time.Now,
		log:              logger.Named("txbuilder"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Build constructs the transactions for in, sent from account on chainID.
// Build errors are *xerrors.Error values with a user-facing message.
func (b *Builder) Build(ctx context.Context, in intent.Intent, account common.Address, chainID uint64, est Estimator) (*Built, error) {
	if !in.Complete() {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "intent has missing parameters")
	}
	if !in.Kind().Transactional() {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("%s does not produce a transaction", in.Kind()))
	}
	chain, ok := b.chains.Chain(in.Chain())
	if !ok {
		return nil, xerrors.New(xerrors.CodeChainUnsupported, "Unsupported chain: "+in.Chain())
	}
	if chain.ChainID != chainID {
		return nil, xerrors.New(xerrors.CodeChainMismatch,
			fmt.Sprintf("Switch your wallet to %s (chain %d); it is connected to chain %d", chain.DisplayName, chain.ChainID, chainID),
			xerrors.WithMetadata("wanted", fmt.Sprint(chain.ChainID)),
			xerrors.WithMetadata("connected", fmt.Sprint(chainID)))
	}
	reader, err := b.readers.Reader(ctx, chainID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not reach "+chain.DisplayName)
	}

	out := &Built{Intent: in, Description: intent.Describe(in), Chain: chain, Account: account}
	switch p := in.Params.(type) {
	case intent.TransferNative:
		err = b.transferNative(ctx, out, reader, p)
	case intent.TransferToken:
		err = b.transferToken(ctx, out, reader, p)
	case intent.Swap:
		err = b.swap(ctx, out, reader, swapRequest{amount: p.AmountIn, tokenIn: p.TokenIn, tokenOut: p.TokenOut, slippageBps: p.SlippageBps})
	case intent.Buy:
		err = b.swap(ctx, out, reader, swapRequest{amount: p.Amount, tokenIn: chain.NativeSymbol, tokenOut: p.Token, slippageBps: p.SlippageBps})
	case intent.Sell:
		err = b.swap(ctx, out, reader, swapRequest{amount: p.Amount, tokenIn: p.Token, tokenOut: chain.NativeSymbol, slippageBps: p.SlippageBps})
	case intent.TransferNFT:
		err = b.transferNFT(ctx, out, reader, p)
	}
	if err != nil {
		return nil, err
	}
	if err := b.finalize(ctx, out, est); err != nil {
		return nil, err
	}
	b.log.Info("transaction built",
		slog.String("kind", string(in.Kind())),
		slog.String("chain", chain.Name),
		slog.Bool("approval", out.ApprovalTx != nil),
		slog.Uint64("gas", out.ActionTx.GasLimit),
	)
	return out, nil
}

func (b *Builder) transferNative(ctx context.Context, out *Built, reader web3.ChainReader, p intent.TransferNative) error {
	value, err := ParseUnits(p.Amount, registry.NativeDecimals)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "Invalid amount")
	}
	balance, err := reader.NativeBalance(ctx, out.Account)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not read balance")
	}
	if balance.Cmp(value) < 0 {
		return insufficient("Insufficient balance. You have %s %s", balance, registry.NativeDecimals, out.Chain.NativeSymbol)
	}
	out.ActionTx = b.tx(out, common.HexToAddress(p.Recipient), value, nil)
	return nil
}

func (b *Builder) transferToken(ctx context.Context, out *Built, reader web3.ChainReader, p intent.TransferToken) error {
	token, ok := out.Chain.Token(p.Token)
	if !ok {
		return xerrors.New(xerrors.CodeTokenNotFound, fmt.Sprintf("Token not found: %s on %s", p.Token, out.Chain.DisplayName))
	}
	amount, err := ParseUnits(p.Amount, token.Decimals)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "Invalid amount")
	}
	balance, err := reader.TokenBalance(ctx, token.Address, out.Account)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not read token balance")
	}
	if balance.Cmp(amount) < 0 {
		return insufficient("Insufficient token balance. You have %s %s", balance, token.Decimals, token.Symbol)
	}
	data, err := contracts.PackTransfer(common.HexToAddress(p.Recipient), amount)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not encode transfer")
	}
	out.ActionTx = b.tx(out, token.Address, nil, data)
	return nil
}

func (b *Builder) transferNFT(ctx context.Context, out *Built, reader web3.ChainReader, p intent.TransferNFT) error {
	id, ok := new(big.Int).SetString(p.TokenID, 10)
	if !ok {
		return xerrors.New(xerrors.CodeInvalidArgument, "Invalid token ID")
	}
	collection := common.HexToAddress(p.ContractAddress)
	owner, err := reader.OwnerOf(ctx, collection, id)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not verify NFT ownership")
	}
	if owner != out.Account {
		return xerrors.New(xerrors.CodeNotOwner, "You do not own this NFT")
	}
	data, err := contracts.PackSafeTransferFrom(out.Account, common.HexToAddress(p.Recipient), id)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not encode NFT transfer")
	}
	out.ActionTx = b.tx(out, collection, nil, data)
	return nil
}

func (b *Builder) tx(out *Built, to common.Address, value *big.Int, data []byte) web3.ChainTx {
	if value == nil {
		value = new(big.Int)
	}
	return web3.ChainTx{From: out.Account, To: to, Value: value, Data: data, ChainID: out.Chain.ChainID}
}

// finalize attaches live fees and buffered gas limits.
func (b *Builder) finalize(ctx context.Context, out *Built, est Estimator) error {
	fees, err := est.SuggestFees(ctx)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not fetch network fees")
	}
	if out.ApprovalTx != nil {
		out.ApprovalTx.Fees = fees
		gas, err := est.EstimateGas(ctx, *out.ApprovalTx)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeBuildFailed, err, "Gas estimation failed for approval")
		}
		out.ApprovalTx.GasLimit = b.buffer(gas)
	}
	out.ActionTx.Fees = fees
	gas, err := est.EstimateGas(ctx, out.ActionTx)
	switch {
	case err == nil:
		out.ActionTx.GasLimit = b.buffer(gas)
	case out.ApprovalTx != nil:
		// The router call reverts until the approval is mined.
		b.log.Debug("swap gas estimate deferred to fallback", slog.Any("error", err))
		out.ActionTx.GasLimit = b.swapGasLimit
	default:
		return xerrors.Wrap(xerrors.CodeBuildFailed, err, "Gas estimation failed, the transaction would likely revert")
	}
	return nil
}

func (b *Builder) buffer(gas uint64) uint64 {
	return gas * (100 + b.gasBufferPercent) / 100
}

func insufficient(format string, have *big.Int, decimals uint8, symbol string) error {
	return xerrors.New(xerrors.CodeInsufficientBalance, fmt.Sprintf(format, FormatUnits(have, decimals), symbol))
}
