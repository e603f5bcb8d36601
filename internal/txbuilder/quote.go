package txbuilder

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SwapQuote is the router quote a swap was built from.
type SwapQuote struct {
	AmountIn     *big.Int
	AmountOut    *big.Int
	AmountOutMin *big.Int
	Path         []common.Address
	SlippageBps  int
	// PriceImpact is nil because it is not computed from pool reserves.
	PriceImpact *float64
	Deadline    time.Time
}

// MinAmountOut returns floor(amountOut * (10000 - slippageBps) / 10000).
// slippageBps is clamped to [0, 10000] so the result never exceeds
// amountOut and never goes negative.
func MinAmountOut(amountOut *big.Int, slippageBps int) *big.Int {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return new(big.Int)
	}
	if slippageBps < 0 {
		slippageBps = 0
	}
	if slippageBps > 10000 {
		slippageBps = 10000
	}
	out := new(big.Int).Mul(amountOut, big.NewInt(int64(10000-slippageBps)))
	return out.Quo(out, big.NewInt(10000))
}
