package registry

import "github.com/ethereum/go-ethereum/common"

func token(address string, decimals uint8) Token {
	return Token{Address: common.HexToAddress(address), Decimals: decimals}
}

// Builtin returns the default chain table: Ethereum, Polygon and BNB Smart
// Chain with their canonical UniswapV2-style routers and stablecoins.
func Builtin() []Chain {
	return []Chain{
		{
			Name:          "ethereum",
			ChainID:       1,
			DisplayName:   "Ethereum",
			NativeSymbol:  "ETH",
			RPCURL:        "https://eth.llamarpc.com",
			Router:        common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
			WrappedNative: "WETH",
			Explorer:      "https://etherscan.io",
			Keywords:      []string{"eth mainnet", "mainnet"},
			Tokens: map[string]Token{
				"WETH": token("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", 18),
				"USDC": token("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", 6),
				"USDT": token("0xdAC17F958D2ee523a2206206994597C13D831ec7", 6),
				"DAI":  token("0x6B175474E89094C44Da98b954EedeAC495271d0F", 18),
			},
		},
		{
			Name:          "polygon",
			ChainID:       137,
			DisplayName:   "Polygon",
			NativeSymbol:  "MATIC",
			RPCURL:        "https://polygon-rpc.com",
			Router:        common.HexToAddress("0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff"),
			WrappedNative: "WMATIC",
			Explorer:      "https://polygonscan.com",
			Keywords:      []string{"matic network"},
			Tokens: map[string]Token{
				"WMATIC": token("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", 18),
				"USDC":   token("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", 6),
				"USDT":   token("0xc2132D05D31c914a87C6611C10748AEb04B58e8F", 6),
				"DAI":    token("0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063", 18),
			},
		},
		{
			Name:          "bsc",
			ChainID:       56,
			DisplayName:   "BNB Smart Chain",
			NativeSymbol:  "BNB",
			RPCURL:        "https://bsc-dataseed.binance.org",
			Router:        common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"),
			WrappedNative: "WBNB",
			Explorer:      "https://bscscan.com",
			Keywords:      []string{"binance", "bnb chain", "bnb smart chain"},
			Tokens: map[string]Token{
				"WBNB": token("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", 18),
				"USDC": token("0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", 18),
				"USDT": token("0x55d398326f99059fF775485246999027B3197955", 18),
				"DAI":  token("0x1AF3F329e8BE154074D8769D1FFa4eE058B1DBc3", 18),
			},
		},
	}
}

// Default builds a Registry from the builtin table.
func Default() *Registry {
	r, err := New(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}
