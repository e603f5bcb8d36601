// Package registry holds the static table of supported EVM chains and the
// tokens known on each of them. A Registry is built once at start-up from
// the builtin table plus an optional YAML overlay and is read-only after
// that.
package registry
