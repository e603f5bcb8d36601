package intent

// Kind identifies what the user asked for.
type Kind string

const (
	KindTransferNative Kind = "TRANSFER_NATIVE"
	KindTransferToken  Kind = "TRANSFER_TOKEN"
	KindSwap           Kind = "SWAP_TOKENS"
	KindBuy            Kind = "BUY_TOKEN"
	KindSell           Kind = "SELL_TOKEN"
	KindTransferNFT    Kind = "TRANSFER_NFT"
	KindCheckBalance   Kind = "CHECK_BALANCE"
	KindShowAddress    Kind = "SHOW_ADDRESS"
	KindShowHistory    Kind = "SHOW_HISTORY"
	KindUnknown        Kind = "UNKNOWN"
)

// Transactional reports whether intents of this kind result in a chain
// transaction.
func (k Kind) Transactional() bool {
	switch k {
	case KindTransferNative, KindTransferToken, KindSwap, KindBuy, KindSell, KindTransferNFT:
		return true
	default:
		return false
	}
}

// Param names an intent parameter.
type Param string

const (
	ParamAmount    Param = "amount"
	ParamRecipient Param = "recipient"
	ParamToken     Param = "token"
	ParamAmountIn  Param = "amountIn"
	ParamTokenIn   Param = "tokenIn"
	ParamTokenOut  Param = "tokenOut"
	ParamContract  Param = "contractAddress"
	ParamTokenID   Param = "tokenId"
	ParamChain     Param = "chain"
	ParamSlippage  Param = "slippage"
	ParamNative    Param = "native"
)

func (p Param) isAddress() bool {
	return p == ParamRecipient || p == ParamContract
}

func (p Param) isAmount() bool {
	return p == ParamAmount || p == ParamAmountIn
}

func (p Param) isToken() bool {
	return p == ParamToken || p == ParamTokenIn || p == ParamTokenOut
}
