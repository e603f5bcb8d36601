package intent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ChatWallet/internal/registry"
)

const (
	// DefaultMaxSlippageBps rejects tolerances above 50%.
	DefaultMaxSlippageBps = 5000
	// DefaultHighSlippageBps produces a warning above 5%.
	DefaultHighSlippageBps = 500
)

var decimalPattern = regexp.MustCompile(`^(?:\d+(?:\.\d+)?|\.\d+)$`)

// Validation is the result of Validator.Validate.
type Validation struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Validator performs local, deterministic checks on complete intents.
type Validator struct {
	chains          *registry.Registry
	maxSlippageBps  int
	highSlippageBps int
	blocklist       map[common.Address]struct{}
}

// ValidatorOption customises a Validator.
type ValidatorOption func(*Validator)

// WithMaxSlippage sets the largest accepted tolerance.
func WithMaxSlippage(bps int) ValidatorOption {
	return func(v *Validator) {
		if bps > 0 && bps <= 10000 {
			v.maxSlippageBps = bps
		}
	}
}

// WithBlocklist rejects transfers to the given addresses in addition to the
// zero address.
func WithBlocklist(addrs ...string) ValidatorOption {
	return func(v *Validator) {
		for _, a := range addrs {
			if common.IsHexAddress(a) {
				v.blocklist[common.HexToAddress(a)] = struct{}{}
			}
		}
	}
}

// NewValidator creates a Validator. The registry is only consulted for
// static chain metadata.
func NewValidator(chains *registry.Registry, opts ...ValidatorOption) *Validator {
	v := &Validator{
		chains:          chains,
		maxSlippageBps:  DefaultMaxSlippageBps,
		highSlippageBps: DefaultHighSlippageBps,
		blocklist:       map[common.Address]struct{}{{}: {}},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Validate checks in and reports every problem found, in a stable order.
func (v *Validator) Validate(in Intent) Validation {
	var errs, warns []string
	if !in.Complete() {
		names := make([]string, 0, len(in.Missing))
		for _, p := range in.Missing {
			names = append(names, string(p))
		}
		errs = append(errs, "Missing parameters: "+strings.Join(names, ", "))
	}

	switch p := in.Params.(type) {
	case TransferNative:
		errs = v.checkAmount(errs, p.Amount)
		errs = v.checkRecipient(errs, p.Recipient)
		if c, ok := v.chain(p.Chain); !ok {
			errs = append(errs, "Unsupported chain: "+p.Chain)
		} else if !c.IsNative(p.Symbol) {
			errs = append(errs, fmt.Sprintf("%s is not the native currency of %s", p.Symbol, c.DisplayName))
		}
	case TransferToken:
		errs = v.checkAmount(errs, p.Amount)
		errs = v.checkRecipient(errs, p.Recipient)
		if p.Token == "" {
			errs = append(errs, "Token not specified")
		}
		errs = v.checkChain(errs, p.Chain)
	case Swap:
		errs = v.checkAmount(errs, p.AmountIn)
		if p.TokenIn == "" || p.TokenOut == "" {
			errs = append(errs, "Tokens not specified")
		} else if strings.EqualFold(p.TokenIn, p.TokenOut) {
			errs = append(errs, "Cannot swap same token")
		}
		errs, warns = v.checkSlippage(errs, warns, p.SlippageBps)
		errs = v.checkChain(errs, p.Chain)
	case Buy:
		errs = v.checkAmount(errs, p.Amount)
		errs = v.checkTradeToken(errs, p.Token, p.Chain, "Cannot buy %s with %s")
		errs, warns = v.checkSlippage(errs, warns, p.SlippageBps)
		errs = v.checkChain(errs, p.Chain)
	case Sell:
		errs = v.checkAmount(errs, p.Amount)
		errs = v.checkTradeToken(errs, p.Token, p.Chain, "Cannot sell %s for %s")
		errs, warns = v.checkSlippage(errs, warns, p.SlippageBps)
		errs = v.checkChain(errs, p.Chain)
	case TransferNFT:
		if !ValidAddress(p.ContractAddress) {
			errs = append(errs, "Invalid contract address")
		}
		errs = v.checkRecipient(errs, p.Recipient)
		switch {
		case p.TokenID == "":
			errs = append(errs, "Token ID not specified")
		case !allDigits(p.TokenID):
			errs = append(errs, "Invalid token ID")
		}
		errs = v.checkChain(errs, p.Chain)
	case CheckBalance, ShowAddress, ShowHistory:
	default:
		errs = append(errs, "Unrecognized request")
	}
	return Validation{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
}

func (v *Validator) chain(name string) (registry.Chain, bool) {
	if v.chains == nil {
		return registry.Chain{}, false
	}
	return v.chains.Chain(name)
}

func (v *Validator) checkChain(errs []string, name string) []string {
	if _, ok := v.chain(name); !ok {
		return append(errs, "Unsupported chain: "+name)
	}
	return errs
}

func (v *Validator) checkAmount(errs []string, amount string) []string {
	if !ValidAmount(amount) {
		return append(errs, "Invalid amount")
	}
	return errs
}

func (v *Validator) checkRecipient(errs []string, recipient string) []string {
	if !ValidAddress(recipient) {
		return append(errs, "Invalid recipient address")
	}
	if _, blocked := v.blocklist[common.HexToAddress(recipient)]; blocked {
		return append(errs, "Recipient address is blocked")
	}
	return errs
}

func (v *Validator) checkTradeToken(errs []string, token, chain, sameFormat string) []string {
	if token == "" {
		return append(errs, "Token not specified")
	}
	if c, ok := v.chain(chain); ok && c.IsNative(token) {
		return append(errs, fmt.Sprintf(sameFormat, c.NativeSymbol, c.NativeSymbol))
	}
	return errs
}

func (v *Validator) checkSlippage(errs, warns []string, bps int) ([]string, []string) {
	if bps < 0 || bps > v.maxSlippageBps {
		return append(errs, fmt.Sprintf("Slippage must be between 0%% and %s%%", formatBps(v.maxSlippageBps))), warns
	}
	if bps > v.highSlippageBps {
		warns = append(warns, fmt.Sprintf("High slippage tolerance of %s%%", formatBps(bps)))
	}
	return errs, warns
}

// ValidAmount reports whether s is a positive decimal literal.
func ValidAmount(s string) bool {
	if !decimalPattern.MatchString(s) {
		return false
	}
	return strings.Trim(s, "0.") != ""
}

// ValidAddress accepts 0x-prefixed 40-hex-digit addresses that are either
// single-case or carry a correct EIP-55 checksum.
func ValidAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return false
	}
	body := s[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(s).Hex() == s
}

func formatBps(bps int) string {
	whole, frac := bps/100, bps%100
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	return strings.TrimRight(fmt.Sprintf("%d.%02d", whole, frac), "0")
}
