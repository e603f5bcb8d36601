package conversation

import (
	"ChatWallet/internal/execution"
	"ChatWallet/internal/history"
	"ChatWallet/internal/intent"
)

// ReplyKind classifies a Reply for the presentation layer.
type ReplyKind string

const (
	ReplyHelp          ReplyKind = "help"
	ReplyClarification ReplyKind = "clarification"
	ReplyInvalid       ReplyKind = "invalid"
	ReplyPreview       ReplyKind = "preview"
	ReplyBalance       ReplyKind = "balance"
	ReplyAddress       ReplyKind = "address"
	ReplyHistory       ReplyKind = "history"
	ReplyCancelled     ReplyKind = "cancelled"
	ReplyError         ReplyKind = "error"
)

// Reply answers one user message.
type Reply struct {
	ConversationID string            `json:"conversationId"`
	Kind           ReplyKind         `json:"kind"`
	Message        string            `json:"message"`
	Phase          Phase             `json:"phase"`
	Intent         *intent.Intent    `json:"intent,omitempty"`
	Errors         []string          `json:"errors,omitempty"`
	Preview        *Preview          `json:"preview,omitempty"`
	Balance        *Balance          `json:"balance,omitempty"`
	Address        string            `json:"address,omitempty"`
	History        []*history.Record `json:"history,omitempty"`
	Code           string            `json:"code,omitempty"`
	Retryable      bool              `json:"retryable,omitempty"`
}

// Preview summarises a built operation awaiting confirmation.
type Preview struct {
	OperationID   string   `json:"operationId"`
	Description   string   `json:"description"`
	Chain         string   `json:"chain"`
	From          string   `json:"from"`
	To            string   `json:"to"`
	Value         string   `json:"value"`
	GasLimit      uint64   `json:"gasLimit"`
	NeedsApproval bool     `json:"needsApproval"`
	Quote         *Quote   `json:"quote,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	// BuildError is set when the transaction could not be built yet.
	BuildError string `json:"buildError,omitempty"`
}

// Quote is the display form of a swap quote in human units.
type Quote struct {
	AmountIn     string   `json:"amountIn"`
	AmountOut    string   `json:"amountOut"`
	AmountOutMin string   `json:"amountOutMin"`
	SlippageBps  int      `json:"slippageBps"`
	Path         []string `json:"path"`
	// PriceImpact is always null; it is not computed.
	PriceImpact *float64 `json:"priceImpact"`
	Deadline    int64    `json:"deadline"`
}

// Balance is the answer to a balance query.
type Balance struct {
	Chain  string `json:"chain"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
}

// Snapshot is the externally visible state of a conversation.
type Snapshot struct {
	ID       string           `json:"id"`
	Phase    Phase            `json:"phase"`
	Preview  *Preview         `json:"preview,omitempty"`
	Last     *execution.State `json:"last,omitempty"`
	Awaiting *intent.Intent   `json:"awaiting,omitempty"`
}
