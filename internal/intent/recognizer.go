package intent

import (
	"regexp"
	"strings"

	"ChatWallet/internal/registry"
)

// DefaultSlippageBps is applied to swaps that do not state a tolerance.
const DefaultSlippageBps = 50

// Recognizer maps free text to an Intent by ordered rule matching.
type Recognizer struct {
	schemas     Schemas
	chains      *registry.Registry
	vocab       vocabulary
	rules       []rule
	slippageBps int
}

type rule struct {
	schema   Schema
	triggers []*regexp.Regexp
	requires []*regexp.Regexp
	excludes []*regexp.Regexp
}

// Option customises a Recognizer.
type Option func(*Recognizer)

// WithDefaultSlippage overrides DefaultSlippageBps.
func WithDefaultSlippage(bps int) Option {
	return func(r *Recognizer) {
		if bps >= 0 {
			r.slippageBps = bps
		}
	}
}

// NewRecognizer compiles the rule table against the registry vocabulary.
func NewRecognizer(chains *registry.Registry, schemas Schemas, opts ...Option) *Recognizer {
	r := &Recognizer{
		schemas:     schemas,
		chains:      chains,
		vocab:       newVocabulary(chains.Symbols()),
		slippageBps: DefaultSlippageBps,
	}
	for _, kind := range schemas.Order() {
		schema, _ := schemas.Lookup(kind)
		r.rules = append(r.rules, rule{
			schema:   schema,
			triggers: compilePhrases(schema.Triggers),
			requires: compilePhrases(schema.Requires),
			excludes: compilePhrases(schema.Excludes),
		})
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func compilePhrases(phrases []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		words := strings.Fields(strings.ToLower(p))
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		out = append(out, regexp.MustCompile(`\b`+strings.Join(words, `\s+`)+`\b`))
	}
	return out
}

func (rl rule) matches(lower string) bool {
	if !anyMatch(rl.triggers, lower) {
		return false
	}
	for _, req := range rl.requires {
		if !req.MatchString(lower) {
			return false
		}
	}
	return !anyMatch(rl.excludes, lower)
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// facts are the values extracted once per message.
type facts struct {
	text        string
	amount      string
	recipient   string
	addresses   []string
	symbols     []string
	chain       string
	tokenID     string
	slippageBps int
	pairIn      string
	pairOut     string
	hasPair     bool
}

// Recognize never fails: unmatched text yields an Unknown intent with zero
// confidence. currentChain is used when the text names no chain.
func (r *Recognizer) Recognize(text, currentChain string) Intent {
	lower := strings.ToLower(text)
	var f *facts
	for _, rl := range r.rules {
		if !rl.matches(lower) {
			continue
		}
		if f == nil {
			f = r.extract(text, currentChain)
		}
		params, ok := r.params(rl.schema.Kind, f)
		if !ok {
			continue
		}
		missing := rl.schema.Missing(params)
		return Intent{Params: params, Missing: missing, Confidence: rl.schema.confidence(missing)}
	}
	return Intent{Params: Unknown{}}
}

func (r *Recognizer) extract(text, currentChain string) *facts {
	f := &facts{
		text:        text,
		amount:      firstAmount(text),
		recipient:   recipientAddress(text),
		addresses:   addresses(text),
		symbols:     r.vocab.find(text),
		tokenID:     tokenID(text),
		slippageBps: r.slippageBps,
	}
	if bps, ok := slippageBps(text); ok {
		f.slippageBps = bps
	}
	f.pairIn, f.pairOut, f.hasPair = explicitPair(maskNonAmounts(text))
	f.chain = r.resolveChain(text, f.symbols, currentChain)
	return f
}

// resolveChain prefers an explicit chain keyword, then the chain implied by
// a native symbol the current chain does not know, then currentChain.
func (r *Recognizer) resolveChain(text string, symbols []string, currentChain string) string {
	if name, ok := r.chains.ChainForKeyword(text); ok {
		return name
	}
	current, known := r.chains.Chain(currentChain)
	for _, sym := range symbols {
		if known {
			if _, ok := current.Token(sym); ok || current.IsNative(sym) {
				continue
			}
		}
		if name, ok := r.chains.ChainForNative(sym); ok {
			return name
		}
	}
	if known {
		return current.Name
	}
	return strings.ToLower(strings.TrimSpace(currentChain))
}

func (r *Recognizer) nativeOf(chain string) string {
	if c, ok := r.chains.Chain(chain); ok {
		return c.NativeSymbol
	}
	return ""
}

func (f *facts) firstSymbol() string {
	if len(f.symbols) == 0 {
		return ""
	}
	return f.symbols[0]
}

// firstNonNative returns the first token symbol that is not a native
// coin, or "" when only native symbols were mentioned.
func (r *Recognizer) firstNonNative(f *facts) string {
	for _, sym := range f.symbols {
		if !r.chains.IsNativeSymbol(sym) {
			return sym
		}
	}
	return ""
}

func (r *Recognizer) params(kind Kind, f *facts) (Params, bool) {
	switch kind {
	case KindTransferNative:
		sym := f.firstSymbol()
		if sym != "" && !r.chains.IsNativeSymbol(sym) {
			return nil, false
		}
		if sym == "" {
			sym = r.nativeOf(f.chain)
		}
		return TransferNative{Amount: f.amount, Symbol: sym, Recipient: f.recipient, Chain: f.chain}, true

	case KindTransferToken:
		sym := f.firstSymbol()
		if sym == "" || r.chains.IsNativeSymbol(sym) {
			return nil, false
		}
		return TransferToken{Amount: f.amount, Token: sym, Recipient: f.recipient, Chain: f.chain}, true

	case KindSwap:
		p := Swap{AmountIn: f.amount, SlippageBps: f.slippageBps, Chain: f.chain}
		switch {
		case f.hasPair:
			p.TokenIn, p.TokenOut = f.pairIn, f.pairOut
		case len(f.symbols) >= 2:
			p.TokenIn, p.TokenOut = f.symbols[0], f.symbols[1]
		case len(f.symbols) == 1:
			p.TokenIn = f.symbols[0]
		}
		return p, true

	case KindBuy:
		return Buy{
			Amount:      f.amount,
			Token:       r.firstNonNative(f),
			Native:      r.nativeOf(f.chain),
			SlippageBps: f.slippageBps,
			Chain:       f.chain,
		}, true

	case KindSell:
		return Sell{
			Amount:      f.amount,
			Token:       r.firstNonNative(f),
			Native:      r.nativeOf(f.chain),
			SlippageBps: f.slippageBps,
			Chain:       f.chain,
		}, true

	case KindCheckBalance:
		return CheckBalance{Token: f.firstSymbol(), Chain: f.chain}, true

	case KindTransferNFT:
		p := TransferNFT{TokenID: f.tokenID, Chain: f.chain}
		if m := toAddressPattern.FindStringSubmatch(f.text); m != nil {
			p.Recipient = m[1]
		}
		for _, addr := range f.addresses {
			if addr == p.Recipient {
				continue
			}
			if p.ContractAddress == "" {
				p.ContractAddress = addr
			} else if p.Recipient == "" {
				p.Recipient = addr
			}
		}
		return p, true

	case KindShowAddress:
		return ShowAddress{}, true

	case KindShowHistory:
		return ShowHistory{}, true
	}
	return nil, false
}
