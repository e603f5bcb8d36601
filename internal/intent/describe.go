package intent

import "fmt"

// Describe renders a one-line summary of in for previews.
func Describe(in Intent) string {
	switch p := in.Params.(type) {
	case TransferNative:
		return fmt.Sprintf("Send %s %s to %s", p.Amount, p.Symbol, p.Recipient)
	case TransferToken:
		return fmt.Sprintf("Send %s %s to %s", p.Amount, p.Token, p.Recipient)
	case Swap:
		return fmt.Sprintf("Swap %s %s for %s", p.AmountIn, p.TokenIn, p.TokenOut)
	case Buy:
		return fmt.Sprintf("Buy %s with %s %s", p.Token, p.Amount, p.Native)
	case Sell:
		return fmt.Sprintf("Sell %s %s for %s", p.Amount, p.Token, p.Native)
	case TransferNFT:
		return fmt.Sprintf("Transfer NFT #%s to %s", p.TokenID, p.Recipient)
	case CheckBalance:
		if p.Token != "" {
			return fmt.Sprintf("Check %s balance", p.Token)
		}
		return "Check balance"
	case ShowAddress:
		return "Show wallet address"
	case ShowHistory:
		return "Show transaction history"
	default:
		return "Unknown action"
	}
}
