package intent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	addressPattern   = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)
	hexPattern       = regexp.MustCompile(`0x[0-9a-fA-F]*`)
	toAddressPattern = regexp.MustCompile(`(?i)\bto\s+(0x[0-9a-fA-F]{40})`)
	tokenIDPattern   = regexp.MustCompile(`(?i)(?:#|\btoken\s*id\s*:?\s*|\bid\s*:?\s*)(\d+)\b`)
	bareIDPattern    = regexp.MustCompile(`^\s*#?(\d+)\s*$`)
	percentPattern   = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*%`)
	amountPattern    = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	pairPattern      = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*([a-z][a-z0-9]*)\s+(?:for|to|into)\s+([a-z][a-z0-9]*)\b`)
	wordPattern      = regexp.MustCompile(`^\s*\$?([A-Za-z][A-Za-z0-9]{1,10})\s*$`)
)

// symbolAliases maps spoken names to vocabulary symbols.
var symbolAliases = map[string]string{
	"ETHER": "ETH",
}

// vocabulary matches token symbols on word boundaries, case-insensitively,
// so that "weth" never yields ETH.
type vocabulary struct {
	pattern *regexp.Regexp
}

func newVocabulary(symbols []string) vocabulary {
	words := append([]string(nil), symbols...)
	for alias := range symbolAliases {
		words = append(words, alias)
	}
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToUpper(w)))
	}
	if len(quoted) == 0 {
		return vocabulary{}
	}
	return vocabulary{pattern: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)}
}

// find returns every vocabulary symbol in text in order of appearance.
func (v vocabulary) find(text string) []string {
	if v.pattern == nil {
		return nil
	}
	matches := v.pattern.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, canonicalSymbol(m))
	}
	return out
}

func canonicalSymbol(s string) string {
	upper := strings.ToUpper(strings.TrimSpace(s))
	if alias, ok := symbolAliases[upper]; ok {
		return alias
	}
	return upper
}

// maskNonAmounts blanks out hex literals, NFT ids and percentages so that
// the amount extractor only sees quantities.
func maskNonAmounts(text string) string {
	text = hexPattern.ReplaceAllString(text, " ")
	text = tokenIDPattern.ReplaceAllString(text, " ")
	return percentPattern.ReplaceAllString(text, " ")
}

func firstAmount(text string) string {
	return amountPattern.FindString(maskNonAmounts(text))
}

func addresses(text string) []string {
	return addressPattern.FindAllString(text, -1)
}

// recipientAddress prefers an address introduced by "to".
func recipientAddress(text string) string {
	if m := toAddressPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return addressPattern.FindString(text)
}

func tokenID(text string) string {
	if m := tokenIDPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// explicitPair parses "<amount> <A> for|to|into <B>" from already masked text.
func explicitPair(text string) (string, string, bool) {
	m := pairPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return canonicalSymbol(m[2]), canonicalSymbol(m[3]), true
}

// ParseBps converts a percentage literal such as "0.5" into basis points,
// truncating beyond two decimals.
func ParseBps(percent string) (int, bool) {
	percent = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(percent), "%"))
	whole, frac, _ := strings.Cut(percent, ".")
	if whole == "" {
		whole = "0"
	}
	if len(whole) > 6 || !allDigits(whole) || !allDigits(frac) {
		return 0, false
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.Atoi(whole)
	if err != nil {
		return 0, false
	}
	f, err := strconv.Atoi(frac)
	if err != nil {
		return 0, false
	}
	return w*100 + f, true
}

func slippageBps(text string) (int, bool) {
	m := percentPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	return ParseBps(m[1])
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
