package registry

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeDecimals is the decimal count of every EVM native currency.
const NativeDecimals = 18

// Token is an ERC-20 deployment on a single chain.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// Chain describes one supported network.
type Chain struct {
	Name         string
	ChainID      uint64
	DisplayName  string
	NativeSymbol string
	RPCURL       string
	// Router is the UniswapV2-compatible router. The zero address means
	// swaps are unavailable.
	Router common.Address
	// WrappedNative is the symbol of the wrapped native token, which must
	// also be present in Tokens.
	WrappedNative string
	Explorer      string
	Keywords      []string
	Tokens        map[string]Token
}

// Token looks up symbol (case-insensitive) on the chain.
func (c Chain) Token(symbol string) (Token, bool) {
	tok, ok := c.Tokens[strings.ToUpper(strings.TrimSpace(symbol))]
	return tok, ok
}

// IsNative reports whether symbol names the chain's native currency.
func (c Chain) IsNative(symbol string) bool {
	return strings.EqualFold(strings.TrimSpace(symbol), c.NativeSymbol)
}

// Wrapped returns the wrapped native token.
func (c Chain) Wrapped() (Token, bool) {
	if c.WrappedNative == "" {
		return Token{}, false
	}
	return c.Token(c.WrappedNative)
}

// HasRouter reports whether swaps can be routed on the chain.
func (c Chain) HasRouter() bool {
	return c.Router != (common.Address{})
}

// TxURL links a transaction hash on the chain's block explorer.
func (c Chain) TxURL(hash string) string {
	if c.Explorer == "" || hash == "" {
		return ""
	}
	return strings.TrimRight(c.Explorer, "/") + "/tx/" + hash
}

// Registry indexes chains by name and id.
type Registry struct {
	order    []string
	byName   map[string]Chain
	byID     map[uint64]string
	symbols  []string
	keywords []keywordRule
}

type keywordRule struct {
	chain   string
	pattern *regexp.Regexp
}

// New validates chains and builds a Registry.
func New(chains ...Chain) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Chain, len(chains)),
		byID:   make(map[uint64]string, len(chains)),
	}
	vocab := make(map[string]struct{})
	for _, c := range chains {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" {
			return nil, fmt.Errorf("chain name is required")
		}
		if c.ChainID == 0 {
			return nil, fmt.Errorf("chain %s: chain id is required", name)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("chain %s defined twice", name)
		}
		if other, dup := r.byID[c.ChainID]; dup {
			return nil, fmt.Errorf("chain id %d used by both %s and %s", c.ChainID, other, name)
		}
		if c.NativeSymbol == "" {
			return nil, fmt.Errorf("chain %s: native symbol is required", name)
		}
		c.Name = name
		c.NativeSymbol = strings.ToUpper(c.NativeSymbol)
		c.WrappedNative = strings.ToUpper(c.WrappedNative)
		if c.DisplayName == "" {
			c.DisplayName = name
		}
		tokens := make(map[string]Token, len(c.Tokens))
		for sym, tok := range c.Tokens {
			sym = strings.ToUpper(sym)
			tok.Symbol = sym
			tokens[sym] = tok
			vocab[sym] = struct{}{}
		}
		c.Tokens = tokens
		if c.WrappedNative != "" {
			if _, ok := tokens[c.WrappedNative]; !ok {
				return nil, fmt.Errorf("chain %s: wrapped native %s missing from token list", name, c.WrappedNative)
			}
		}
		vocab[c.NativeSymbol] = struct{}{}

		keywords := append([]string{name}, c.Keywords...)
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			r.keywords = append(r.keywords, keywordRule{
				chain:   name,
				pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`),
			})
		}

		r.byName[name] = c
		r.byID[c.ChainID] = name
		r.order = append(r.order, name)
	}
	for sym := range vocab {
		r.symbols = append(r.symbols, sym)
	}
	sort.Strings(r.symbols)
	return r, nil
}

// Chain returns the chain registered under name.
func (r *Registry) Chain(name string) (Chain, bool) {
	c, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// ChainByID returns the chain with the given EIP-155 id.
func (r *Registry) ChainByID(id uint64) (Chain, bool) {
	name, ok := r.byID[id]
	if !ok {
		return Chain{}, false
	}
	return r.byName[name], true
}

// Names lists chain names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Chains lists every chain in registration order.
func (r *Registry) Chains() []Chain {
	out := make([]Chain, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Symbols is the token vocabulary across all chains, upper-case and sorted.
func (r *Registry) Symbols() []string {
	return append([]string(nil), r.symbols...)
}

// ChainForKeyword returns the chain mentioned in text by name or keyword.
// Matching is on whole words of the lower-cased text.
func (r *Registry) ChainForKeyword(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, rule := range r.keywords {
		if rule.pattern.MatchString(lower) {
			return rule.chain, true
		}
	}
	return "", false
}

// ChainForNative returns the single chain whose native currency is symbol.
func (r *Registry) ChainForNative(symbol string) (string, bool) {
	match := ""
	for _, name := range r.order {
		if r.byName[name].IsNative(symbol) {
			if match != "" {
				return "", false
			}
			match = name
		}
	}
	return match, match != ""
}

// IsNativeSymbol reports whether symbol is the native currency of any chain.
func (r *Registry) IsNativeSymbol(symbol string) bool {
	for _, name := range r.order {
		if r.byName[name].IsNative(symbol) {
			return true
		}
	}
	return false
}

// Token looks up symbol on the named chain.
func (r *Registry) Token(chain, symbol string) (Token, bool) {
	c, ok := r.Chain(chain)
	if !ok {
		return Token{}, false
	}
	return c.Token(symbol)
}

// ExplorerTxURL links hash on the explorer of chainID, or "" when the chain
// is unknown or has no explorer.
func (r *Registry) ExplorerTxURL(chainID uint64, hash string) string {
	c, ok := r.ChainByID(chainID)
	if !ok {
		return ""
	}
	return c.TxURL(hash)
}

// WithRPC returns a copy of r whose chains use the given node URLs, keyed
// by chain name. Unknown names are an error.
func (r *Registry) WithRPC(urls map[string]string) (*Registry, error) {
	chains := r.Chains()
	for name, url := range urls {
		found := false
		for i := range chains {
			if chains[i].Name == strings.ToLower(strings.TrimSpace(name)) {
				chains[i].RPCURL = url
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("rpc override for unknown chain %q", name)
		}
	}
	return New(chains...)
}
