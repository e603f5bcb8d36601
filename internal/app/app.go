// Package app assembles the conversation machine and its collaborators from
// a configuration. The daemon and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"ChatWallet/internal/auth"
	"ChatWallet/internal/config"
	"ChatWallet/internal/conversation"
	"ChatWallet/internal/events"
	"ChatWallet/internal/execution"
	"ChatWallet/internal/history"
	"ChatWallet/internal/intent"
	"ChatWallet/internal/monitor"
	"ChatWallet/internal/observability/metrics"
	"ChatWallet/internal/registry"
	"ChatWallet/internal/txbuilder"
	"ChatWallet/internal/web3/ethereum"
	"ChatWallet/internal/web3/provider"
	"ChatWallet/pkg/logger"
)

// App holds the wired components of one process.
type App struct {
	Config    *config.Config
	Chains    *registry.Registry
	Providers *provider.Registry
	Session   *ethereum.KeyedSession
	Machine   *conversation.Machine
	History   history.Store
	Events    events.Publisher
	Metrics   *metrics.Registry
	Auth      *auth.Service

	closers []func() error
	log     *slog.Logger
}

type options struct {
	approver ethereum.Approver
	dialer   provider.DialFunc
}

// Option customises New.
type Option func(*options)

// WithApprover installs the signing approval hook of the session.
func WithApprover(a ethereum.Approver) Option {
	return func(o *options) { o.approver = a }
}

// WithDialer replaces the RPC dialer.
func WithDialer(d provider.DialFunc) Option {
	return func(o *options) { o.dialer = d }
}

// New wires every component described by cfg. Close releases them.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	a := &App{Config: cfg, log: logger.Named("app")}
	if err := a.build(ctx, o); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, o options) error {
	cfg := a.Config
	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	chains, err := LoadChains(cfg.Chains)
	if err != nil {
		return err
	}
	a.Chains = chains

	a.Providers = provider.NewRegistry(chains, provider.WithDialer(o.dialer))
	a.closers = append(a.closers, func() error { a.Providers.Close(); return nil })

	if err := a.openSession(ctx, o); err != nil {
		return err
	}

	if a.History, err = OpenHistory(ctx, cfg); err != nil {
		return err
	}
	a.closers = append(a.closers, a.History.Close)

	pending, err := OpenPending(ctx, cfg)
	if err != nil {
		return err
	}
	if closer, ok := pending.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}

	if a.Events, err = OpenPublisher(ctx, cfg); err != nil {
		return err
	}
	a.closers = append(a.closers, a.Events.Close)

	authSvc, err := auth.NewService(auth.Config{
		Mode:     auth.Mode(cfg.Auth.Mode),
		Secret:   config.Secret(cfg.Auth.SecretEnv),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      time.Duration(cfg.Auth.TTLSeconds) * time.Second,
	})
	if err != nil {
		return err
	}
	a.Auth = authSvc

	schemas := intent.DefaultSchemas()
	builder := txbuilder.New(chains, a.Providers,
		txbuilder.WithGasBuffer(cfg.Builder.GasBufferPercent),
		txbuilder.WithDeadline(time.Duration(cfg.Builder.DeadlineMinutes)*time.Minute),
		txbuilder.WithUnlimitedApproval(cfg.Builder.UnlimitedApproval),
		txbuilder.WithSwapGasLimit(cfg.Builder.SwapGasLimit),
	)
	watcher := monitor.New(a.Session,
		monitor.WithTimeout(cfg.Wallet.ReceiptTimeout()),
		monitor.WithConfirmations(cfg.Wallet.Confirmations),
	)

	machineOpts := []conversation.Option{
		conversation.WithDefaultChain(cfg.Chains.DefaultChain),
		conversation.WithHistoryLimit(cfg.Intent.HistoryLimit),
	}
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.NewRegistry()
		machineOpts = append(machineOpts, conversation.WithRecorder(a.Metrics))
	}

	a.Machine = conversation.New(conversation.Deps{
		Chains:     chains,
		Recognizer: intent.NewRecognizer(chains, schemas, intent.WithDefaultSlippage(cfg.Intent.DefaultSlippageBps)),
		Validator:  intent.NewValidator(chains, intent.WithMaxSlippage(cfg.Intent.MaxSlippageBps), intent.WithBlocklist(cfg.Intent.Blocklist...)),
		Resolver:   intent.NewResolver(schemas, chains),
		Builder:    builder,
		Executor:   execution.NewCoordinator(a.Session, watcher),
		Session:    a.Session,
		Readers:    a.Providers,
		Pending:    pending,
		History:    a.History,
		Events:     a.Events,
	}, machineOpts...)

	a.log.Info("application wired",
		slog.String("account", a.Session.Address().Hex()),
		slog.String("chain", cfg.Wallet.Chain),
		slog.String("history", cfg.Storage.History.Driver),
		slog.String("pending", cfg.Storage.Pending.Driver),
		slog.String("events", cfg.Events.Driver),
	)
	return nil
}

func (a *App) openSession(ctx context.Context, o options) error {
	cfg := a.Config
	raw := config.Secret(cfg.Wallet.KeyEnv)
	if raw == "" {
		return fmt.Errorf("wallet key: environment variable %s is not set", cfg.Wallet.KeyEnv)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return fmt.Errorf("wallet key: %w", err)
	}
	chain, ok := a.Chains.Chain(cfg.Wallet.Chain)
	if !ok {
		return fmt.Errorf("wallet chain %q is not configured", cfg.Wallet.Chain)
	}
	client, err := a.Providers.Client(ctx, chain.ChainID)
	if err != nil {
		return err
	}
	sessionOpts := []ethereum.SessionOption{ethereum.WithPollInterval(cfg.Wallet.PollInterval())}
	if o.approver != nil {
		sessionOpts = append(sessionOpts, ethereum.WithApprover(o.approver))
	}
	a.Session, err = ethereum.NewKeyedSession(ctx, client.Backend(), key, sessionOpts...)
	return err
}

// SwitchChain rebinds the session to the named chain. Previews and
// unsubmitted operations are discarded through the session change feed.
func (a *App) SwitchChain(ctx context.Context, name string) error {
	chain, ok := a.Chains.Chain(name)
	if !ok {
		return fmt.Errorf("unknown chain %q", name)
	}
	client, err := a.Providers.Client(ctx, chain.ChainID)
	if err != nil {
		return err
	}
	return a.Session.SwitchBackend(ctx, client.Backend())
}

// Close releases components in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// LoadChains builds the chain table with RPC overrides applied.
func LoadChains(cfg config.ChainsConfig) (*registry.Registry, error) {
	chains, err := registry.Load(cfg.File)
	if err != nil {
		return nil, err
	}
	if len(cfg.RPC) == 0 {
		return chains, nil
	}
	return chains.WithRPC(cfg.RPC)
}
