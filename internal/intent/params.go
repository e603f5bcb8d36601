package intent

import "strconv"

// Params is the typed parameter set of an intent. Each Kind has exactly one
// implementation; the set is closed to this package.
type Params interface {
	Kind() Kind
	// Field returns the raw value of p, or "" when p is unset or does not
	// apply to this kind.
	Field(p Param) string
	with(p Param, value string) Params
}

// TransferNative sends the chain's native currency.
type TransferNative struct {
	Amount    string `json:"amount"`
	Symbol    string `json:"symbol"`
	Recipient string `json:"recipient"`
	Chain     string `json:"chain"`
}

// TransferToken sends an ERC-20 token.
type TransferToken struct {
	Amount    string `json:"amount"`
	Token     string `json:"token"`
	Recipient string `json:"recipient"`
	Chain     string `json:"chain"`
}

// Swap exchanges an exact input amount of one token for another.
type Swap struct {
	AmountIn    string `json:"amountIn"`
	TokenIn     string `json:"tokenIn"`
	TokenOut    string `json:"tokenOut"`
	SlippageBps int    `json:"slippageBps"`
	Chain       string `json:"chain"`
}

// Buy spends Amount of the native currency on Token.
type Buy struct {
	Amount      string `json:"amount"`
	Token       string `json:"token"`
	Native      string `json:"native"`
	SlippageBps int    `json:"slippageBps"`
	Chain       string `json:"chain"`
}

// Sell exchanges Amount of Token for the native currency.
type Sell struct {
	Amount      string `json:"amount"`
	Token       string `json:"token"`
	Native      string `json:"native"`
	SlippageBps int    `json:"slippageBps"`
	Chain       string `json:"chain"`
}

// TransferNFT moves one ERC-721 token.
type TransferNFT struct {
	ContractAddress string `json:"contractAddress"`
	TokenID         string `json:"tokenId"`
	Recipient       string `json:"recipient"`
	Chain           string `json:"chain"`
}

// CheckBalance asks for the native balance, or Token's when set.
type CheckBalance struct {
	Token string `json:"token,omitempty"`
	Chain string `json:"chain"`
}

// ShowAddress asks for the connected account.
type ShowAddress struct{}

// ShowHistory asks for recent transactions.
type ShowHistory struct{}

// Unknown is the result of unmatched text.
type Unknown struct{}

func (TransferNative) Kind() Kind { return KindTransferNative }
func (TransferToken) Kind() Kind  { return KindTransferToken }
func (Swap) Kind() Kind           { return KindSwap }
func (Buy) Kind() Kind            { return KindBuy }
func (Sell) Kind() Kind           { return KindSell }
func (TransferNFT) Kind() Kind    { return KindTransferNFT }
func (CheckBalance) Kind() Kind   { return KindCheckBalance }
func (ShowAddress) Kind() Kind    { return KindShowAddress }
func (ShowHistory) Kind() Kind    { return KindShowHistory }
func (Unknown) Kind() Kind        { return KindUnknown }

func (p TransferNative) Field(name Param) string {
	switch name {
	case ParamAmount:
		return p.Amount
	case ParamRecipient:
		return p.Recipient
	case ParamNative:
		return p.Symbol
	case ParamChain:
		return p.Chain
	}
	return ""
}

func (p TransferNative) with(name Param, v string) Params {
	switch name {
	case ParamAmount:
		p.Amount = v
	case ParamRecipient:
		p.Recipient = v
	}
	return p
}

func (p TransferToken) Field(name Param) string {
	switch name {
	case ParamAmount:
		return p.Amount
	case ParamToken:
		return p.Token
	case ParamRecipient:
		return p.Recipient
	case ParamChain:
		return p.Chain
	}
	return ""
}

func (p TransferToken) with(name Param, v string) Params {
	switch name {
	case ParamAmount:
		p.Amount = v
	case ParamToken:
		p.Token = v
	case ParamRecipient:
		p.Recipient = v
	}
	return p
}

func (p Swap) Field(name Param) string {
	switch name {
	case ParamAmountIn:
		return p.AmountIn
	case ParamTokenIn:
		return p.TokenIn
	case ParamTokenOut:
		return p.TokenOut
	case ParamSlippage:
		return strconv.Itoa(p.SlippageBps)
	case ParamChain:
		return p.Chain
	}
	return ""
}

func (p Swap) with(name Param, v string) Params {
	switch name {
	case ParamAmountIn:
		p.AmountIn = v
	case ParamTokenIn:
		p.TokenIn = v
	case ParamTokenOut:
		p.TokenOut = v
	}
	return p
}

func (p Buy) Field(name Param) string {
	switch name {
	case ParamAmount:
		return p.Amount
	case ParamToken:
		return p.Token
	case ParamNative:
		return p.Native
	case ParamSlippage:
		return strconv.Itoa(p.SlippageBps)
	case ParamChain:
		return p.Chain
	}
	return ""
}

func (p Buy) with(name Param, v string) Params {
	switch name {
	case ParamAmount:
		p.Amount = v
	case ParamToken:
		p.Token = v
	}
	return p
}

func (p Sell) Field(name Param) string {
	switch name {
	case ParamAmount:
		return p.Amount
	case ParamToken:
		return p.Token
	case ParamNative:
		return p.Native
	case ParamSlippage:
		return strconv.Itoa(p.SlippageBps)
	case ParamChain:
		return p.Chain
	}
	return ""
}

func (p Sell) with(name Param, v string) Params {
	switch name {
	case ParamAmount:
		p.Amount = v
	case ParamToken:
		p.Token = v
	}
	return p
}

func (p TransferNFT) Field(name Param) string {
	switch name {
	case ParamContract:
		return p.ContractAddress
	case ParamTokenID:
		return p.TokenID
	case ParamRecipient:
		return p.Recipient
	case ParamChain:
		return p.Chain
	}
	return ""
}

func (p TransferNFT) with(name Param, v string) Params {
	switch name {
	case ParamContract:
		p.ContractAddress = v
	case ParamTokenID:
		p.TokenID = v
	case ParamRecipient:
		p.Recipient = v
	}
	return p
}

func (p CheckBalance) Field(name Param) string {
	switch name {
	case ParamToken:
		return p.Token
	case ParamChain:
		return p.Chain
	}
	return ""
}

func (p CheckBalance) with(name Param, v string) Params {
	if name == ParamToken {
		p.Token = v
	}
	return p
}

func (ShowAddress) Field(Param) string         { return "" }
func (p ShowAddress) with(Param, string) Params { return p }
func (ShowHistory) Field(Param) string         { return "" }
func (p ShowHistory) with(Param, string) Params { return p }
func (Unknown) Field(Param) string             { return "" }
func (p Unknown) with(Param, string) Params     { return p }
