package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	"ChatWallet/internal/web3"
	"ChatWallet/pkg/logger"
)

const (
	defaultPollInterval = time.Second
	defaultGasPrice     = 20_000_000_000 // 20 gwei
	defaultTipCap       = 2_000_000_000  // 2 gwei
)

var errNotIncluded = errors.New("transaction not yet included")

// Approver decides whether a transaction may be signed. It may block on a
// human prompt. Returning false rejects the request.
type Approver func(ctx context.Context, tx web3.ChainTx) (bool, error)

// AutoApprove signs every request.
func AutoApprove(context.Context, web3.ChainTx) (bool, error) { return true, nil }

// KeyedSession is a web3.Session backed by a local private key.
type KeyedSession struct {
	mu           sync.Mutex
	backend      Backend
	chainID      *big.Int
	key          *ecdsa.PrivateKey
	from         common.Address
	approve      Approver
	pollInterval time.Duration
	feed         event.Feed
	log          *slog.Logger
}

var _ web3.Session = (*KeyedSession)(nil)

// SessionOption customises a KeyedSession.
type SessionOption func(*KeyedSession)

// WithApprover installs the signing approval hook. The default is
// AutoApprove.
func WithApprover(a Approver) SessionOption {
	return func(s *KeyedSession) {
		if a != nil {
			s.approve = a
		}
	}
}

// WithPollInterval sets the initial receipt polling interval.
func WithPollInterval(d time.Duration) SessionOption {
	return func(s *KeyedSession) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewKeyedSession binds key to backend. The chain id is read from backend.
func NewKeyedSession(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, opts ...SessionOption) (*KeyedSession, error) {
	if key == nil {
		return nil, errors.New("signing key is required")
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	s := &KeyedSession{
		backend:      backend,
		chainID:      chainID,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		approve:      AutoApprove,
		pollInterval: defaultPollInterval,
		log:          logger.Named("session"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Address returns the account the session signs for.
func (s *KeyedSession) Address() common.Address { return s.from }

// SwitchBackend rebinds the session to another chain and notifies
// subscribers.
func (s *KeyedSession) SwitchBackend(ctx context.Context, backend Backend) error {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	s.mu.Lock()
	s.backend = backend
	s.chainID = chainID
	s.mu.Unlock()
	s.feed.Send(web3.SessionChange{Kind: web3.ChangeChain, Account: s.from, ChainID: chainID.Uint64()})
	return nil
}

// Disconnect notifies subscribers that the session is no longer usable.
func (s *KeyedSession) Disconnect() {
	s.feed.Send(web3.SessionChange{Kind: web3.ChangeDisconnect, Account: s.from})
}

func (s *KeyedSession) current() (Backend, *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend, s.chainID
}

func (s *KeyedSession) RequestAccounts(context.Context) ([]common.Address, error) {
	return []common.Address{s.from}, nil
}

func (s *KeyedSession) CurrentChainID(context.Context) (uint64, error) {
	_, id := s.current()
	return id.Uint64(), nil
}

func (s *KeyedSession) SubscribeChanges(ch chan<- web3.SessionChange) event.Subscription {
	return s.feed.Subscribe(ch)
}

func (s *KeyedSession) EstimateGas(ctx context.Context, tx web3.ChainTx) (uint64, error) {
	backend, _ := s.current()
	to := tx.To
	gas, err := backend.EstimateGas(ctx, gethcore.CallMsg{
		From:  tx.From,
		To:    &to,
		Value: tx.Value,
		Data:  tx.Data,
	})
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	return gas, nil
}

// SuggestFees returns EIP-1559 caps when the chain reports a base fee and a
// legacy gas price otherwise.
func (s *KeyedSession) SuggestFees(ctx context.Context) (web3.Fees, error) {
	backend, _ := s.current()
	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return web3.Fees{}, fmt.Errorf("read latest header: %w", err)
	}
	if head.BaseFee != nil {
		tip, err := backend.SuggestGasTipCap(ctx)
		if err != nil || tip == nil {
			tip = big.NewInt(defaultTipCap)
		}
		maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
		maxFee.Add(maxFee, tip)
		return web3.Fees{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}, nil
	}
	price, err := backend.SuggestGasPrice(ctx)
	if err != nil || price == nil {
		price = big.NewInt(defaultGasPrice)
	}
	return web3.Fees{GasPrice: price}, nil
}

// SignAndSend asks the approver, signs tx with the session key and submits
// it. A declined request returns web3.ErrSignatureRejected.
func (s *KeyedSession) SignAndSend(ctx context.Context, tx web3.ChainTx) (common.Hash, error) {
	backend, chainID := s.current()
	if tx.From != s.from {
		return common.Hash{}, fmt.Errorf("transaction sender %s does not match session account %s", tx.From.Hex(), s.from.Hex())
	}
	if tx.ChainID != chainID.Uint64() {
		return common.Hash{}, fmt.Errorf("transaction targets chain %d, session is on %d", tx.ChainID, chainID.Uint64())
	}

	logger.Audit().Info("signing requested",
		slog.String("from", tx.From.Hex()),
		slog.String("to", tx.To.Hex()),
		slog.String("value", bigString(tx.Value)),
		slog.Uint64("chain_id", tx.ChainID),
	)
	ok, err := s.approve(ctx, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing approval: %w", err)
	}
	if !ok {
		logger.Audit().Info("signing rejected", slog.String("to", tx.To.Hex()), slog.Uint64("chain_id", tx.ChainID))
		return common.Hash{}, web3.ErrSignatureRejected
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	nonce, err := backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read nonce: %w", err)
	}
	signed, err := coretypes.SignTx(s.toTransaction(tx, nonce, chainID), coretypes.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	s.log.Info("transaction submitted", slog.String("hash", signed.Hash().Hex()), slog.Uint64("nonce", nonce))
	return signed.Hash(), nil
}

func (s *KeyedSession) toTransaction(tx web3.ChainTx, nonce uint64, chainID *big.Int) *coretypes.Transaction {
	to := tx.To
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	if tx.Fees.DynamicFee() {
		return coretypes.NewTx(&coretypes.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tx.Fees.MaxPriorityFeePerGas,
			GasFeeCap: tx.Fees.MaxFeePerGas,
			Gas:       tx.GasLimit,
			To:        &to,
			Value:     value,
			Data:      tx.Data,
		})
	}
	price := tx.Fees.GasPrice
	if price == nil {
		price = big.NewInt(defaultGasPrice)
	}
	return coretypes.NewTx(&coretypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: price,
		Gas:      tx.GasLimit,
		To:       &to,
		Value:    value,
		Data:     tx.Data,
	})
}

// WaitForInclusion polls for the receipt with exponential backoff until it
// has the requested confirmations or timeout elapses.
func (s *KeyedSession) WaitForInclusion(ctx context.Context, hash common.Hash, confirmations uint64, timeout time.Duration) (*web3.Receipt, error) {
	backend, _ := s.current()
	if confirmations == 0 {
		confirmations = 1
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.pollInterval
	policy.MaxInterval = s.pollInterval * 8

	op := func() (*coretypes.Receipt, error) {
		receipt, err := backend.TransactionReceipt(waitCtx, hash)
		if err != nil {
			if errors.Is(err, gethcore.NotFound) {
				return nil, errNotIncluded
			}
			return nil, err
		}
		head, err := backend.BlockNumber(waitCtx)
		if err != nil {
			return nil, err
		}
		if head+1 < receipt.BlockNumber.Uint64()+confirmations {
			return nil, errNotIncluded
		}
		return receipt, nil
	}
	notify := func(err error, d time.Duration) {
		if !errors.Is(err, errNotIncluded) {
			s.log.Debug("receipt poll failed", slog.String("hash", hash.Hex()), slog.Any("error", err), slog.Duration("backoff", d))
		}
	}

	receipt, err := backoff.Retry(waitCtx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(timeout),
		backoff.WithNotify(notify),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	return &web3.Receipt{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Succeeded:   receipt.Status == coretypes.ReceiptStatusSuccessful,
	}, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
