package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ChatWallet/internal/auth"
	"ChatWallet/internal/config"
)

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		scopes []string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <address>",
		Short: "Issue an API bearer token for a wallet address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			authCfg := auth.Config{
				Mode:     auth.ModeJWT,
				Secret:   config.Secret(cfg.Auth.SecretEnv),
				Issuer:   cfg.Auth.Issuer,
				Audience: cfg.Auth.Audience,
				TTL:      time.Duration(cfg.Auth.TTLSeconds) * time.Second,
			}
			if ttl > 0 {
				authCfg.TTL = ttl
			}
			svc, err := auth.NewService(authCfg)
			if err != nil {
				return err
			}
			token, err := svc.Issue(args[0], scopes...)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{"token": token})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeChat, auth.ScopeExecute, auth.ScopeHistory}, "granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.ttl_seconds)")
	return cmd
}
