// Command chatwalletd serves the conversation API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ChatWallet/internal/api"
	"ChatWallet/internal/app"
	"ChatWallet/internal/config"
	"ChatWallet/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "chatwalletd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configFlag := flag.String("config", "", "path to the JSON configuration")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(config.ResolvePath(*configFlag))
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Named("chatwalletd")

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	errCh := make(chan error, 3)
	go func() { errCh <- application.Machine.Run(ctx) }()

	if application.Metrics != nil {
		go func() {
			errCh <- application.Metrics.StartServer(ctx, cfg.Metrics.Address, func(ctx context.Context) error {
				_, err := application.Session.CurrentChainID(ctx)
				return err
			})
		}()
		log.Info("metrics listening", slog.String("addr", cfg.Metrics.Address))
	}

	server := api.NewServer(cfg.Server.Address, application.Machine, application.History, application.Auth)
	server.BindSession(application.Session)
	if application.Metrics != nil {
		server.Use(application.Metrics.Instrument)
	}
	go func() { errCh <- server.Start(ctx) }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}
