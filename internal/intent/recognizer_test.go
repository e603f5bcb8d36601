package intent

import (
	"reflect"
	"testing"

	"ChatWallet/internal/registry"
)

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0x2222222222222222222222222222222222222222"
)

func newTestRecognizer() *Recognizer {
	return NewRecognizer(registry.Default(), DefaultSchemas())
}

func TestRecognizeTransferNative(t *testing.T) {
	r := newTestRecognizer()
	for _, amount := range []string{"0.1", "1", "12.25", "1000"} {
		for _, verb := range []string{"send", "Send", "SEND"} {
			text := verb + " " + amount + " eth to " + addrA
			got := r.Recognize(text, "ethereum")
			want := TransferNative{Amount: amount, Symbol: "ETH", Recipient: addrA, Chain: "ethereum"}
			if got.Params != want {
				t.Fatalf("%q: unexpected params %#v", text, got.Params)
			}
			if len(got.Missing) != 0 || got.Confidence != 0.9 {
				t.Fatalf("%q: expected complete intent, got missing=%v confidence=%v", text, got.Missing, got.Confidence)
			}
		}
	}
}

func TestRecognizeAmountIgnoresAddressDigits(t *testing.T) {
	r := newTestRecognizer()
	got := r.Recognize("send to "+addrA+" 5 ether", "ethereum")
	p, ok := got.Params.(TransferNative)
	if !ok || p.Amount != "5" || p.Recipient != addrA {
		t.Fatalf("unexpected intent %#v", got.Params)
	}
}

func TestRecognizeNativeSymbolImpliesChain(t *testing.T) {
	r := newTestRecognizer()
	got := r.Recognize("send 2 MATIC to "+addrA, "ethereum")
	p, ok := got.Params.(TransferNative)
	if !ok || p.Chain != "polygon" || p.Symbol != "MATIC" {
		t.Fatalf("unexpected intent %#v", got.Params)
	}
}

func TestRecognizeTransferToken(t *testing.T) {
	r := newTestRecognizer()
	got := r.Recognize("pay 3 weth to "+addrB, "ethereum")
	want := TransferToken{Amount: "3", Token: "WETH", Recipient: addrB, Chain: "ethereum"}
	if got.Params != want {
		t.Fatalf("unexpected params %#v", got.Params)
	}

	partial := r.Recognize("send usdc", "ethereum")
	if partial.Kind() != KindTransferToken {
		t.Fatalf("expected token transfer, got %s", partial.Kind())
	}
	if !reflect.DeepEqual(partial.Missing, []Param{ParamAmount, ParamRecipient}) {
		t.Fatalf("unexpected missing params %v", partial.Missing)
	}
	if partial.Confidence != 0.6 {
		t.Fatalf("unexpected confidence %v", partial.Confidence)
	}
}

func TestRecognizeSendTokensWithoutSymbolIsUnknown(t *testing.T) {
	got := newTestRecognizer().Recognize("send tokens", "ethereum")
	if got.Kind() != KindUnknown || got.Confidence != 0 || len(got.Missing) != 0 {
		t.Fatalf("expected unknown intent, got %#v", got)
	}
}

func TestRecognizeSwap(t *testing.T) {
	r := newTestRecognizer()
	cases := []struct {
		text    string
		current string
		want    Swap
	}{
		{"swap 100 USDC for DAI", "ethereum", Swap{AmountIn: "100", TokenIn: "USDC", TokenOut: "DAI", SlippageBps: 50, Chain: "ethereum"}},
		{"exchange 1 weth to usdc with 1% slippage on polygon", "ethereum", Swap{AmountIn: "1", TokenIn: "WETH", TokenOut: "USDC", SlippageBps: 100, Chain: "polygon"}},
		{"I want to trade DAI and USDT, 25 of them", "ethereum", Swap{AmountIn: "25", TokenIn: "DAI", TokenOut: "USDT", SlippageBps: 50, Chain: "ethereum"}},
		{"swap 0.5 bnb into usdt", "ethereum", Swap{AmountIn: "0.5", TokenIn: "BNB", TokenOut: "USDT", SlippageBps: 50, Chain: "bsc"}},
	}
	for _, tc := range cases {
		got := r.Recognize(tc.text, tc.current)
		if got.Params != tc.want {
			t.Fatalf("%q: got %#v want %#v", tc.text, got.Params, tc.want)
		}
		if got.Confidence != 0.85 {
			t.Fatalf("%q: unexpected confidence %v", tc.text, got.Confidence)
		}
	}

	partial := r.Recognize("swap usdc", "ethereum")
	if !reflect.DeepEqual(partial.Missing, []Param{ParamAmountIn, ParamTokenOut}) {
		t.Fatalf("unexpected missing params %v", partial.Missing)
	}
}

func TestRecognizeBuySell(t *testing.T) {
	r := newTestRecognizer()
	buy := r.Recognize("buy usdc with 0.5 eth", "ethereum")
	if buy.Params != (Buy{Amount: "0.5", Token: "USDC", Native: "ETH", SlippageBps: 50, Chain: "ethereum"}) {
		t.Fatalf("unexpected buy params %#v", buy.Params)
	}
	sell := r.Recognize("sell 10 dai", "polygon")
	if sell.Params != (Sell{Amount: "10", Token: "DAI", Native: "MATIC", SlippageBps: 50, Chain: "polygon"}) {
		t.Fatalf("unexpected sell params %#v", sell.Params)
	}
	native := r.Recognize("buy 0.1 eth of pepe", "ethereum")
	if native.Kind() != KindBuy || native.Params.Field(ParamToken) != "" || !reflect.DeepEqual(native.Missing, []Param{ParamToken}) {
		t.Fatalf("a native amount must not become the bought token, got %#v", native)
	}
	missing := r.Recognize("purchase something", "ethereum")
	if missing.Kind() != KindBuy || !reflect.DeepEqual(missing.Missing, []Param{ParamAmount, ParamToken}) {
		t.Fatalf("unexpected partial buy %#v", missing)
	}
}

func TestRecognizeTransferNFT(t *testing.T) {
	r := newTestRecognizer()
	got := r.Recognize("transfer nft #42 from "+addrA+" to "+addrB, "ethereum")
	want := TransferNFT{ContractAddress: addrA, TokenID: "42", Recipient: addrB, Chain: "ethereum"}
	if got.Params != want {
		t.Fatalf("unexpected params %#v", got.Params)
	}
	if got.Confidence != 0.8 {
		t.Fatalf("unexpected confidence %v", got.Confidence)
	}

	partial := r.Recognize("send my nft to "+addrB, "ethereum")
	if !reflect.DeepEqual(partial.Missing, []Param{ParamContract, ParamTokenID}) {
		t.Fatalf("unexpected missing params %v", partial.Missing)
	}
	if partial.Confidence != 0.4 {
		t.Fatalf("unexpected confidence %v", partial.Confidence)
	}
}

func TestRecognizeReadOnlyKinds(t *testing.T) {
	r := newTestRecognizer()
	cases := map[string]Params{
		"what's my balance":        CheckBalance{Chain: "ethereum"},
		"how much USDC do I have?": CheckBalance{Token: "USDC", Chain: "ethereum"},
		"show my address":          ShowAddress{},
		"show me a QR code":        ShowAddress{},
		"recent activity please":   ShowHistory{},
		"hello there":              Unknown{},
	}
	for text, want := range cases {
		got := r.Recognize(text, "ethereum")
		if got.Params != want {
			t.Fatalf("%q: got %#v want %#v", text, got.Params, want)
		}
	}
}

func TestRecognizeRuleOrderIsStable(t *testing.T) {
	r := newTestRecognizer()
	// A transfer mentioning an address keyword still resolves as a transfer.
	got := r.Recognize("send 1 eth to address "+addrA, "ethereum")
	if got.Kind() != KindTransferNative {
		t.Fatalf("expected transfer to win over show-address, got %s", got.Kind())
	}
	// Swap precedes history.
	if k := r.Recognize("trade history", "ethereum").Kind(); k != KindSwap {
		t.Fatalf("expected swap rule to win, got %s", k)
	}
}

func TestParseBps(t *testing.T) {
	cases := map[string]int{"0.5": 50, "1": 100, "1%": 100, "2.25": 225, "0.125": 12, "50": 5000}
	for in, want := range cases {
		got, ok := ParseBps(in)
		if !ok || got != want {
			t.Fatalf("ParseBps(%q) = %d, %v; want %d", in, got, ok, want)
		}
	}
	if _, ok := ParseBps("abc"); ok {
		t.Fatalf("expected failure for non-numeric input")
	}
}
