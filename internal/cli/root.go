// Package cli implements the chatwallet command line: an interactive chat
// session against a local signing key plus offline helpers.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ChatWallet/internal/config"
	"ChatWallet/pkg/logger"
)

type rootOptions struct {
	configPath string
	jsonOutput bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "chatwallet",
		Short: "Talk to your wallet in plain English",
		Long: `chatwallet turns natural-language wallet commands into EVM transactions.

Examples:
  chatwallet chat
  chatwallet parse "swap 100 usdc for eth on polygon"
  chatwallet chains
  chatwallet events tail`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the JSON configuration (default $CHATWALLET_CONFIG or configs/chatwallet.json)")
	root.PersistentFlags().BoolVarP(&opts.jsonOutput, "json", "j", false, "Output in JSON format")

	root.AddCommand(
		newChatCommand(opts),
		newParseCommand(opts),
		newChainsCommand(opts),
		newHistoryCommand(opts),
		newEventsCommand(opts),
		newTokenCommand(opts),
	)
	return root
}

// Execute runs the command tree until ctx ends.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// loadConfig reads the configuration file, falling back to defaults when
// the default path does not exist.
func (o *rootOptions) loadConfig(needFile bool) (*config.Config, error) {
	path := config.ResolvePath(o.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		if !needFile && o.configPath == "" {
			cfg = config.Default(".")
		} else {
			return nil, err
		}
	}
	// The CLI keeps stdout for the conversation.
	if len(cfg.Logging.OutputPaths) == 0 {
		cfg.Logging.OutputPaths = []string{"stderr"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := jsonEncoder(w)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
