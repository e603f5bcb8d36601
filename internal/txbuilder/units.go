package txbuilder

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseUnits scales a decimal literal such as "1.5" to an integer amount
// with the given decimals. Excess precision is rejected, not rounded.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	whole, frac, hasDot := strings.Cut(amount, ".")
	if amount == "" || (whole == "" && frac == "") || (hasDot && frac == "") {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if !digits(whole) || !digits(frac) {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	trimmed := strings.TrimRight(frac, "0")
	if len(trimmed) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	padded := trimmed + strings.Repeat("0", int(decimals)-len(trimmed))
	v, ok := new(big.Int).SetString(whole+padded, 10)
	if !ok {
		if whole == "" && padded == "" {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	return v, nil
}

// FormatUnits renders v with decimals as a trimmed decimal literal.
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	neg := v.Sign() < 0
	s := new(big.Int).Abs(v).String()
	if decimals > 0 {
		if len(s) <= int(decimals) {
			s = strings.Repeat("0", int(decimals)-len(s)+1) + s
		}
		point := len(s) - int(decimals)
		whole, frac := s[:point], strings.TrimRight(s[point:], "0")
		s = whole
		if frac != "" {
			s += "." + frac
		}
	}
	if neg {
		return "-" + s
	}
	return s
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
