// Package config loads the JSON configuration shared by chatwalletd and the
// chatwallet CLI. Secrets are never stored in the file; fields ending in
// _env name the environment variable that holds them.
package config
