package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDefaultLookups(t *testing.T) {
	r := Default()

	eth, ok := r.ChainByID(1)
	if !ok || eth.Name != "ethereum" || eth.NativeSymbol != "ETH" {
		t.Fatalf("unexpected chain for id 1: %+v", eth)
	}
	usdc, ok := eth.Token("usdc")
	if !ok || usdc.Decimals != 6 {
		t.Fatalf("expected USDC with 6 decimals, got %+v", usdc)
	}
	if usdc.Address != common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48") {
		t.Fatalf("unexpected USDC address %s", usdc.Address.Hex())
	}
	wrapped, ok := eth.Wrapped()
	if !ok || wrapped.Symbol != "WETH" {
		t.Fatalf("expected WETH as wrapped native, got %+v", wrapped)
	}
	if !eth.HasRouter() {
		t.Fatalf("ethereum must have a router")
	}
	if got := eth.TxURL("0xabc"); got != "https://etherscan.io/tx/0xabc" {
		t.Fatalf("unexpected explorer link %s", got)
	}

	bsc, _ := r.Chain("BSC")
	if tok, _ := bsc.Token("USDT"); tok.Decimals != 18 {
		t.Fatalf("bsc USDT uses 18 decimals, got %d", tok.Decimals)
	}
}

func TestKeywordAndNativeResolution(t *testing.T) {
	r := Default()
	cases := map[string]string{
		"swap 1 usdc for dai on polygon": "polygon",
		"send 1 BNB on Binance":          "bsc",
		"check eth mainnet balance":      "ethereum",
	}
	for text, want := range cases {
		got, ok := r.ChainForKeyword(text)
		if !ok || got != want {
			t.Fatalf("%q: expected %s, got %s (ok=%v)", text, want, got, ok)
		}
	}
	if _, ok := r.ChainForKeyword("send 1 eth to bob"); ok {
		t.Fatalf("symbol alone must not count as a chain keyword")
	}
	if name, ok := r.ChainForNative("matic"); !ok || name != "polygon" {
		t.Fatalf("MATIC should imply polygon, got %s", name)
	}
	if _, ok := r.ChainForNative("USDC"); ok {
		t.Fatalf("USDC is not a native currency")
	}
}

func TestSymbolsVocabulary(t *testing.T) {
	got := map[string]bool{}
	for _, s := range Default().Symbols() {
		got[s] = true
	}
	for _, want := range []string{"ETH", "USDC", "USDT", "DAI", "MATIC", "BNB", "WETH", "WMATIC", "WBNB"} {
		if !got[want] {
			t.Fatalf("vocabulary missing %s", want)
		}
	}
}

func TestNewRejectsInvalidTables(t *testing.T) {
	if _, err := New(Chain{Name: "a", ChainID: 1, NativeSymbol: "A"}, Chain{Name: "b", ChainID: 1, NativeSymbol: "B"}); err == nil {
		t.Fatalf("duplicate chain ids must be rejected")
	}
	if _, err := New(Chain{Name: "a", ChainID: 1, NativeSymbol: "A", WrappedNative: "WA"}); err == nil {
		t.Fatalf("wrapped native must be present in the token list")
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chains.yaml")
	content := `chains:
  ethereum:
    rpc_url: http://localhost:8545
    tokens:
      LINK:
        address: "0x514910771AF9Ca656af840dff83E8264EcF986CA"
        decimals: 18
  anvil:
    chain_id: 31337
    native_symbol: ETH
    rpc_url: http://127.0.0.1:8545
  bsc:
    disabled: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write chain table: %v", err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	eth, _ := r.Chain("ethereum")
	if eth.RPCURL != "http://localhost:8545" {
		t.Fatalf("rpc override not applied: %s", eth.RPCURL)
	}
	if _, ok := eth.Token("LINK"); !ok {
		t.Fatalf("token overlay not applied")
	}
	if _, ok := eth.Token("USDC"); !ok {
		t.Fatalf("builtin tokens must survive the overlay")
	}
	if _, ok := r.ChainByID(31337); !ok {
		t.Fatalf("new chain not added")
	}
	if _, ok := r.Chain("bsc"); ok {
		t.Fatalf("disabled chain still present")
	}
	// ETH is now native on two chains.
	if _, ok := r.ChainForNative("ETH"); ok {
		t.Fatalf("ambiguous native symbol should not resolve")
	}
}

func TestParseFileRejectsBadAddresses(t *testing.T) {
	_, err := ParseFile([]byte("chains:\n  x:\n    router: nope\n"))
	if err == nil {
		t.Fatalf("expected invalid router error")
	}
}

func TestTokenExplorerAndRPCOverride(t *testing.T) {
	r := Default()
	if tok, ok := r.Token("Polygon", "usdc"); !ok || tok.Symbol != "USDC" {
		t.Fatalf("unexpected token %#v", tok)
	}
	if _, ok := r.Token("solana", "USDC"); ok {
		t.Fatalf("unknown chain has no tokens")
	}
	if got := r.ExplorerTxURL(1, "0xabc"); got != "https://etherscan.io/tx/0xabc" {
		t.Fatalf("unexpected url %q", got)
	}
	if got := r.ExplorerTxURL(999, "0xabc"); got != "" {
		t.Fatalf("unexpected url %q", got)
	}

	next, err := r.WithRPC(map[string]string{"bsc": "http://localhost:8545"})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if c, _ := next.Chain("bsc"); c.RPCURL != "http://localhost:8545" {
		t.Fatalf("override not applied: %q", c.RPCURL)
	}
	if c, _ := r.Chain("bsc"); c.RPCURL == "http://localhost:8545" {
		t.Fatalf("original registry must not change")
	}
	if _, err := r.WithRPC(map[string]string{"nope": "x"}); err == nil {
		t.Fatalf("expected error for unknown chain")
	}
}
