// Package contracts holds the minimal ABIs of the contracts the wallet
// talks to: ERC-20 tokens, ERC-721 collections and UniswapV2-style routers.
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20JSON = `[
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// Only the three-argument safeTransferFrom overload is declared so the
// method keeps its plain name.
const erc721JSON = `[
 {"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`

const routerJSON = `[
 {"type":"function","name":"getAmountsOut","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"type":"function","name":"swapExactTokensForTokens","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"type":"function","name":"swapExactETHForTokens","stateMutability":"payable","inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"type":"function","name":"swapExactTokensForETH","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

var (
	ERC20  = mustParse("erc20", erc20JSON)
	ERC721 = mustParse("erc721", erc721JSON)
	Router = mustParse("router", routerJSON)
)

func mustParse(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse %s abi: %v", name, err))
	}
	return parsed
}

// MaxUint256 is the conventional unlimited approval amount.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// PackTransfer encodes ERC-20 transfer(to, amount).
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return ERC20.Pack("transfer", to, amount)
}

// PackApprove encodes ERC-20 approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20.Pack("approve", spender, amount)
}

// PackSafeTransferFrom encodes ERC-721 safeTransferFrom(from, to, tokenId).
func PackSafeTransferFrom(from, to common.Address, tokenID *big.Int) ([]byte, error) {
	return ERC721.Pack("safeTransferFrom", from, to, tokenID)
}

// PackSwapExactTokensForTokens encodes the token-to-token router call.
func PackSwapExactTokensForTokens(amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return Router.Pack("swapExactTokensForTokens", amountIn, amountOutMin, path, to, deadline)
}

// PackSwapExactETHForTokens encodes the native-to-token router call. The
// input amount travels as the transaction value.
func PackSwapExactETHForTokens(amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return Router.Pack("swapExactETHForTokens", amountOutMin, path, to, deadline)
}

// PackSwapExactTokensForETH encodes the token-to-native router call.
func PackSwapExactTokensForETH(amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return Router.Pack("swapExactTokensForETH", amountIn, amountOutMin, path, to, deadline)
}

// Method returns the name of the method data calls in a, or "".
func Method(a abi.ABI, data []byte) string {
	if len(data) < 4 {
		return ""
	}
	m, err := a.MethodById(data[:4])
	if err != nil {
		return ""
	}
	return m.Name
}

// Decode unpacks the arguments of a call to method from data, skipping the
// selector.
func Decode(a abi.ABI, method string, data []byte) ([]any, error) {
	m, ok := a.Methods[method]
	if !ok {
		return nil, fmt.Errorf("method %s not in abi", method)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("call data too short")
	}
	return m.Inputs.Unpack(data[4:])
}
