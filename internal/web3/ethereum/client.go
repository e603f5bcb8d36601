package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"ChatWallet/internal/web3"
	"ChatWallet/internal/web3/contracts"
)

// Backend is the subset of the go-ethereum RPC client used here. Both
// *ethclient.Client and the simulated backend client satisfy it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*coretypes.Header, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg gethcore.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
}

// Config describes how to reach an EVM node.
type Config struct {
	Name   string
	RPCURL string
}

// Client implements web3.ChainReader over a Backend.
type Client struct {
	name    string
	backend Backend
	rpc     *gethrpc.Client
	mu      sync.Mutex
}

var _ web3.ChainReader = (*Client)(nil)

// Dial connects to the configured RPC endpoint.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, fmt.Errorf("chain %s: rpc url is not configured", cfg.Name)
	}
	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s node: %w", cfg.Name, err)
	}
	return &Client{name: cfg.Name, backend: ethclient.NewClient(rpcClient), rpc: rpcClient}, nil
}

// NewClient wraps an existing backend, such as a simulated chain.
func NewClient(name string, backend Backend) *Client {
	return &Client{name: name, backend: backend}
}

// Name returns the chain name the client was created for.
func (c *Client) Name() string { return c.name }

// Backend exposes the underlying RPC backend for signing sessions.
func (c *Client) Backend() Backend { return c.backend }

// Close releases the RPC connection, if the client owns one.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc != nil {
		c.rpc.Close()
		c.rpc = nil
	}
}

// NativeBalance returns the native currency balance of owner in wei.
func (c *Client) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	bal, err := c.backend.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("get balance of %s: %w", owner.Hex(), err)
	}
	return bal, nil
}

// TokenBalance calls balanceOf on an ERC-20 token.
func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := c.call(ctx, contracts.ERC20, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return firstBig(out, "balanceOf")
}

// Allowance calls allowance on an ERC-20 token.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := c.call(ctx, contracts.ERC20, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return firstBig(out, "allowance")
}

// OwnerOf calls ownerOf on an ERC-721 collection.
func (c *Client) OwnerOf(ctx context.Context, collection common.Address, tokenID *big.Int) (common.Address, error) {
	out, err := c.call(ctx, contracts.ERC721, collection, "ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) == 0 {
		return common.Address{}, errors.New("ownerOf returned no value")
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("ownerOf returned %T", out[0])
	}
	return owner, nil
}

// AmountsOut calls getAmountsOut on a router.
func (c *Client) AmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	out, err := c.call(ctx, contracts.Router, router, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("getAmountsOut returned no value")
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("getAmountsOut returned %T", out[0])
	}
	return amounts, nil
}

func (c *Client) call(ctx context.Context, a abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, gethcore.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("call %s on %s: empty result, is it a contract?", method, to.Hex())
	}
	out, err := a.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

func firstBig(out []any, method string) (*big.Int, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no value", method)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", method, out[0])
	}
	return v, nil
}
