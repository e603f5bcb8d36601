package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// File models the YAML chain table. Entries override builtin chains with
// the same name field by field; new names add chains.
type File struct {
	Chains map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition is one chain entry in the YAML table.
type ChainDefinition struct {
	ChainID       uint64                     `yaml:"chain_id"`
	DisplayName   string                     `yaml:"display_name"`
	NativeSymbol  string                     `yaml:"native_symbol"`
	RPCURL        string                     `yaml:"rpc_url"`
	Router        string                     `yaml:"router"`
	WrappedNative string                     `yaml:"wrapped_native"`
	Explorer      string                     `yaml:"explorer"`
	Keywords      []string                   `yaml:"keywords"`
	Tokens        map[string]TokenDefinition `yaml:"tokens"`
	Disabled      bool                       `yaml:"disabled"`
}

// TokenDefinition is one token entry in the YAML table.
type TokenDefinition struct {
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
}

// ParseFile decodes a YAML chain table.
func ParseFile(content []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(content, &f); err != nil {
		return File{}, fmt.Errorf("parse chain table: %w", err)
	}
	for name, def := range f.Chains {
		if def.Router != "" && !common.IsHexAddress(def.Router) {
			return File{}, fmt.Errorf("chain %s: invalid router address %q", name, def.Router)
		}
		for sym, tok := range def.Tokens {
			if !common.IsHexAddress(tok.Address) {
				return File{}, fmt.Errorf("chain %s: token %s has invalid address %q", name, sym, tok.Address)
			}
		}
	}
	return f, nil
}

// Load builds a Registry from the builtin table overlaid with the YAML file
// at path. An empty path yields the builtin table.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return New(Builtin()...)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain table: %w", err)
	}
	f, err := ParseFile(content)
	if err != nil {
		return nil, err
	}
	return New(Overlay(Builtin(), f)...)
}

// Overlay merges f into base and returns the resulting chain list. Chain
// order is base order followed by new chains sorted by name.
func Overlay(base []Chain, f File) []Chain {
	index := make(map[string]int, len(base))
	out := make([]Chain, 0, len(base)+len(f.Chains))
	for _, c := range base {
		index[strings.ToLower(c.Name)] = len(out)
		out = append(out, c)
	}
	disabled := map[string]bool{}

	for _, name := range sortedKeys(f.Chains) {
		def := f.Chains[name]
		key := strings.ToLower(name)
		if def.Disabled {
			disabled[key] = true
			continue
		}
		pos, exists := index[key]
		if !exists {
			index[key] = len(out)
			out = append(out, Chain{Name: key, Tokens: map[string]Token{}})
			pos = index[key]
		}
		out[pos] = merge(out[pos], def)
	}

	filtered := out[:0]
	for _, c := range out {
		if !disabled[strings.ToLower(c.Name)] {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func merge(c Chain, def ChainDefinition) Chain {
	if def.ChainID != 0 {
		c.ChainID = def.ChainID
	}
	if def.DisplayName != "" {
		c.DisplayName = def.DisplayName
	}
	if def.NativeSymbol != "" {
		c.NativeSymbol = def.NativeSymbol
	}
	if def.RPCURL != "" {
		c.RPCURL = def.RPCURL
	}
	if def.Router != "" {
		c.Router = common.HexToAddress(def.Router)
	}
	if def.WrappedNative != "" {
		c.WrappedNative = def.WrappedNative
	}
	if def.Explorer != "" {
		c.Explorer = def.Explorer
	}
	if len(def.Keywords) > 0 {
		c.Keywords = append([]string(nil), def.Keywords...)
	}
	tokens := make(map[string]Token, len(c.Tokens)+len(def.Tokens))
	for sym, tok := range c.Tokens {
		tokens[sym] = tok
	}
	for sym, tok := range def.Tokens {
		tokens[strings.ToUpper(sym)] = Token{
			Address:  common.HexToAddress(tok.Address),
			Decimals: tok.Decimals,
		}
	}
	c.Tokens = tokens
	return c
}

func sortedKeys(m map[string]ChainDefinition) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
