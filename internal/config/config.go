package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ChatWallet/pkg/logger"
)

// EnvPath names the variable that overrides the configuration path.
const EnvPath = "CHATWALLET_CONFIG"

// DefaultPath is used when neither a flag nor EnvPath is set.
const DefaultPath = "configs/chatwallet.json"

// Config is the root configuration document.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Metrics MetricsConfig `json:"metrics"`
	Chains  ChainsConfig  `json:"chains"`
	Wallet  WalletConfig  `json:"wallet"`
	Builder BuilderConfig `json:"builder"`
	Intent  IntentConfig  `json:"intent"`
	Storage StorageConfig `json:"storage"`
	Events  EventsConfig  `json:"events"`
	Auth    AuthConfig    `json:"auth"`
	Logging logger.Config `json:"logging"`
	Runtime RuntimeConfig `json:"runtime"`
}

// ServerConfig controls the API listener.
type ServerConfig struct {
	Address string `json:"address"`
}

// MetricsConfig controls the /metrics and /healthz listener.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
}

// ChainsConfig selects the chain table and RPC endpoints.
type ChainsConfig struct {
	// File is a YAML overlay on the built-in chain table.
	File string `json:"file"`
	// RPC maps chain names to node URLs, overriding the table.
	RPC          map[string]string `json:"rpc"`
	DefaultChain string            `json:"default_chain"`
}

// WalletConfig configures the key-holding signing session.
type WalletConfig struct {
	KeyEnv                string `json:"key_env"`
	Chain                 string `json:"chain"`
	Confirmations         uint64 `json:"confirmations"`
	ReceiptTimeoutSeconds int    `json:"receipt_timeout_seconds"`
	PollIntervalMillis    int    `json:"poll_interval_ms"`
}

// BuilderConfig tunes transaction construction.
type BuilderConfig struct {
	GasBufferPercent  int    `json:"gas_buffer_percent"`
	DeadlineMinutes   int    `json:"deadline_minutes"`
	UnlimitedApproval bool   `json:"unlimited_approval"`
	SwapGasLimit      uint64 `json:"swap_gas_limit"`
}

// IntentConfig tunes recognition and validation.
type IntentConfig struct {
	DefaultSlippageBps int      `json:"default_slippage_bps"`
	MaxSlippageBps     int      `json:"max_slippage_bps"`
	Blocklist          []string `json:"blocklist"`
	HistoryLimit       int      `json:"history_limit"`
}

// StorageConfig selects the history and clarification backends.
type StorageConfig struct {
	History HistoryConfig `json:"history"`
	Pending PendingConfig `json:"pending"`
	Redis   RedisConfig   `json:"redis"`
}

// HistoryConfig selects the transaction log backend: memory, file or mysql.
type HistoryConfig struct {
	Driver          string `json:"driver"`
	DSNEnv          string `json:"dsn_env"`
	MaxOpenConns    int    `json:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime_seconds"`
}

// PendingConfig selects the clarification store: memory or redis.
type PendingConfig struct {
	Driver     string `json:"driver"`
	TTLSeconds int    `json:"ttl_seconds"`
	Prefix     string `json:"prefix"`
}

// RedisConfig is shared by the pending store and the Redis event bus.
type RedisConfig struct {
	Address     string `json:"address"`
	PasswordEnv string `json:"password_env"`
	DB          int    `json:"db"`
}

// EventsConfig selects the lifecycle event bus: none, memory, redis or
// rabbitmq.
type EventsConfig struct {
	Driver       string `json:"driver"`
	RedisKey     string `json:"redis_key"`
	RedisMaxLen  int64  `json:"redis_max_len"`
	RabbitURLEnv string `json:"rabbitmq_url_env"`
	Exchange     string `json:"exchange"`
	Queue        string `json:"queue"`
}

// AuthConfig configures API authentication.
type AuthConfig struct {
	Mode       string `json:"mode"`
	SecretEnv  string `json:"secret_env"`
	Issuer     string `json:"issuer"`
	Audience   string `json:"audience"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// RuntimeConfig holds process-wide parameters.
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// ResolvePath picks the configuration path: flag, then EnvPath, then
// DefaultPath.
func ResolvePath(flag string) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	if env := strings.TrimSpace(os.Getenv(EnvPath)); env != "" {
		return env
	}
	return DefaultPath
}

// Load parses the JSON file at path and fills defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults(filepath.Dir(path))
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file exists.
func Default(baseDir string) *Config {
	var cfg Config
	cfg.applyDefaults(baseDir)
	cfg.applyEnv()
	return &cfg
}

func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Chains.DefaultChain == "" {
		c.Chains.DefaultChain = "ethereum"
	}
	c.Chains.File = resolve(baseDir, c.Chains.File)

	if c.Wallet.KeyEnv == "" {
		c.Wallet.KeyEnv = "CHATWALLET_PRIVATE_KEY"
	}
	if c.Wallet.Chain == "" {
		c.Wallet.Chain = c.Chains.DefaultChain
	}
	if c.Wallet.Confirmations == 0 {
		c.Wallet.Confirmations = 1
	}
	if c.Wallet.ReceiptTimeoutSeconds <= 0 {
		c.Wallet.ReceiptTimeoutSeconds = 300
	}
	if c.Wallet.PollIntervalMillis <= 0 {
		c.Wallet.PollIntervalMillis = 2000
	}

	if c.Builder.GasBufferPercent <= 0 {
		c.Builder.GasBufferPercent = 20
	}
	if c.Builder.DeadlineMinutes <= 0 {
		c.Builder.DeadlineMinutes = 20
	}
	if c.Builder.SwapGasLimit == 0 {
		c.Builder.SwapGasLimit = 300_000
	}

	if c.Intent.DefaultSlippageBps <= 0 {
		c.Intent.DefaultSlippageBps = 50
	}
	if c.Intent.MaxSlippageBps <= 0 {
		c.Intent.MaxSlippageBps = 5000
	}
	if c.Intent.HistoryLimit <= 0 {
		c.Intent.HistoryLimit = 10
	}

	if c.Storage.History.Driver == "" {
		c.Storage.History.Driver = "memory"
	}
	if c.Storage.History.DSNEnv == "" {
		c.Storage.History.DSNEnv = "CHATWALLET_MYSQL_DSN"
	}
	if c.Storage.Pending.Driver == "" {
		c.Storage.Pending.Driver = "memory"
	}
	if c.Storage.Pending.TTLSeconds <= 0 {
		c.Storage.Pending.TTLSeconds = 1800
	}
	if c.Storage.Redis.Address == "" {
		c.Storage.Redis.Address = "127.0.0.1:6379"
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}
	if c.Events.RabbitURLEnv == "" {
		c.Events.RabbitURLEnv = "CHATWALLET_RABBITMQ_URL"
	}

	if c.Auth.Mode == "" {
		c.Auth.Mode = "disabled"
	}
	if c.Auth.SecretEnv == "" {
		c.Auth.SecretEnv = "CHATWALLET_JWT_SECRET"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "chatwallet"
	}
	if c.Auth.TTLSeconds <= 0 {
		c.Auth.TTLSeconds = 86400
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "chatwallet"
	}
	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else {
		c.Runtime.DataDir = resolve(baseDir, c.Runtime.DataDir)
	}
	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.log")
	}
}

// applyEnv lets deployments override listeners and log level.
func (c *Config) applyEnv() {
	if v := os.Getenv("CHATWALLET_SERVER_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("CHATWALLET_METRICS_ADDRESS"); v != "" {
		c.Metrics.Address = v
	}
	if v := os.Getenv("CHATWALLET_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects unknown driver names.
func (c *Config) Validate() error {
	var errs []error
	check := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if strings.EqualFold(value, a) {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown value %q (want one of %s)", field, value, strings.Join(allowed, ", ")))
	}
	check("storage.history.driver", c.Storage.History.Driver, "memory", "file", "mysql")
	check("storage.pending.driver", c.Storage.Pending.Driver, "memory", "redis")
	check("events.driver", c.Events.Driver, "none", "memory", "redis", "rabbitmq")
	check("auth.mode", c.Auth.Mode, "disabled", "jwt")
	return errors.Join(errs...)
}

// Secret reads the environment variable named by envName.
func Secret(envName string) string {
	if envName == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(envName))
}

// ReceiptTimeout returns the monitor deadline.
func (w WalletConfig) ReceiptTimeout() time.Duration {
	return time.Duration(w.ReceiptTimeoutSeconds) * time.Second
}

// PollInterval returns the receipt polling interval.
func (w WalletConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMillis) * time.Millisecond
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
