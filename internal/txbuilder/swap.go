package txbuilder

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	xerrors "ChatWallet/internal/errors"
	"ChatWallet/internal/registry"
	"ChatWallet/internal/web3"
	"ChatWallet/internal/web3/contracts"
)

type swapRequest struct {
	amount      string
	tokenIn     string
	tokenOut    string
	slippageBps int
}

// leg is one side of a swap. Native legs trade through the wrapped token.
type leg struct {
	symbol   string
	token    registry.Token
	native   bool
	decimals uint8
}

func (b *Builder) resolveLeg(chain registry.Chain, symbol string) (leg, error) {
	if chain.IsNative(symbol) {
		wrapped, ok := chain.Wrapped()
		if !ok {
			return leg{}, xerrors.New(xerrors.CodeRouterUnavailable, "Router not available for this chain")
		}
		return leg{symbol: chain.NativeSymbol, token: wrapped, native: true, decimals: registry.NativeDecimals}, nil
	}
	tok, ok := chain.Token(symbol)
	if !ok {
		return leg{}, xerrors.New(xerrors.CodeTokenNotFound, fmt.Sprintf("Token not found: %s on %s", strings.ToUpper(symbol), chain.DisplayName))
	}
	return leg{symbol: tok.Symbol, token: tok, decimals: tok.Decimals}, nil
}

// route returns the router path between in and out. Pairs that do not
// include the wrapped native token hop through it.
func route(chain registry.Chain, in, out leg) []common.Address {
	wrapped, _ := chain.Wrapped()
	if in.native || out.native || in.token.Address == wrapped.Address || out.token.Address == wrapped.Address {
		return []common.Address{in.token.Address, out.token.Address}
	}
	return []common.Address{in.token.Address, wrapped.Address, out.token.Address}
}

func (b *Builder) swap(ctx context.Context, out *Built, reader web3.ChainReader, req swapRequest) error {
	chain := out.Chain
	if !chain.HasRouter() {
		return xerrors.New(xerrors.CodeRouterUnavailable, "Router not available for this chain")
	}
	in, err := b.resolveLeg(chain, req.tokenIn)
	if err != nil {
		return err
	}
	dst, err := b.resolveLeg(chain, req.tokenOut)
	if err != nil {
		return err
	}
	if in.token.Address == dst.token.Address {
		return xerrors.New(xerrors.CodeInvalidArgument, "Cannot swap same token")
	}
	amountIn, err := ParseUnits(req.amount, in.decimals)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "Invalid amount")
	}
	if amountIn.Sign() <= 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "Invalid amount")
	}

	if err := b.checkFunds(ctx, out.Account, reader, in, amountIn); err != nil {
		return err
	}

	path := route(chain, in, dst)
	amounts, err := reader.AmountsOut(ctx, chain.Router, amountIn, path)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not get a swap quote, the pair may have no liquidity")
	}
	if len(amounts) != len(path) || amounts[len(amounts)-1].Sign() <= 0 {
		return xerrors.New(xerrors.CodeBuildFailed, "Could not get a swap quote, the pair may have no liquidity")
	}
	quote := &SwapQuote{
		AmountIn:    amountIn,
		AmountOut:   amounts[len(amounts)-1],
		Path:        path,
		SlippageBps: req.slippageBps,
		Deadline:    b.now().Add(b.deadline),
	}
	quote.AmountOutMin = MinAmountOut(quote.AmountOut, req.slippageBps)
	deadline := big.NewInt(quote.Deadline.Unix())

	var (
		data  []byte
		value *big.Int
	)
	switch {
	case in.native:
		data, err = contracts.PackSwapExactETHForTokens(quote.AmountOutMin, path, out.Account, deadline)
		value = amountIn
	case dst.native:
		data, err = contracts.PackSwapExactTokensForETH(amountIn, quote.AmountOutMin, path, out.Account, deadline)
	default:
		data, err = contracts.PackSwapExactTokensForTokens(amountIn, quote.AmountOutMin, path, out.Account, deadline)
	}
	if err != nil {
		return xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not encode swap")
	}

	if !in.native {
		approval, err := b.approval(ctx, out, reader, in.token, amountIn)
		if err != nil {
			return err
		}
		out.ApprovalTx = approval
	}
	out.Quote = quote
	out.ActionTx = b.tx(out, chain.Router, value, data)
	return nil
}

func (b *Builder) checkFunds(ctx context.Context, account common.Address, reader web3.ChainReader, in leg, amount *big.Int) error {
	if in.native {
		balance, err := reader.NativeBalance(ctx, account)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not read balance")
		}
		if balance.Cmp(amount) < 0 {
			return insufficient("Insufficient balance. You have %s %s", balance, registry.NativeDecimals, in.symbol)
		}
		return nil
	}
	balance, err := reader.TokenBalance(ctx, in.token.Address, account)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not read token balance")
	}
	if balance.Cmp(amount) < 0 {
		return insufficient("Insufficient token balance. You have %s %s", balance, in.decimals, in.symbol)
	}
	return nil
}

// approval returns the router approval the swap needs, or nil when the
// current allowance already covers amount.
func (b *Builder) approval(ctx context.Context, out *Built, reader web3.ChainReader, token registry.Token, amount *big.Int) (*web3.ChainTx, error) {
	allowance, err := reader.Allowance(ctx, token.Address, out.Account, out.Chain.Router)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not read token allowance")
	}
	if allowance.Cmp(amount) >= 0 {
		return nil, nil
	}
	approve := amount
	if b.unlimitedApproval {
		approve = contracts.MaxUint256
	}
	data, err := contracts.PackApprove(out.Chain.Router, approve)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeBuildFailed, err, "Could not encode approval")
	}
	tx := b.tx(out, token.Address, nil, data)
	return &tx, nil
}
