// Package history keeps the transaction log shown by "show history".
package history

import (
	"strings"

	xerrors "ChatWallet/internal/errors"
)

// Status is the lifecycle status of a logged transaction.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusTimedOut Status = "timed_out"
)

// Record is one operation the user confirmed.
type Record struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Account        string `json:"account"`
	Chain          string `json:"chain"`
	ChainID        uint64 `json:"chain_id"`
	Kind           string `json:"kind"`
	Description    string `json:"description"`
	Amount         string `json:"amount,omitempty"`
	Token          string `json:"token,omitempty"`
	Recipient      string `json:"recipient,omitempty"`
	TxHash         string `json:"tx_hash,omitempty"`
	ApprovalHash   string `json:"approval_hash,omitempty"`
	Status         Status `json:"status"`
	ErrorCode      string `json:"error_code,omitempty"`
	Detail         string `json:"detail,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// Update carries the mutable fields of a Record. Empty strings leave the
// stored value untouched.
type Update struct {
	Status       Status
	TxHash       string
	ApprovalHash string
	ErrorCode    string
	Detail       string
}

var (
	// ErrRecordNotFound is returned for unknown ids.
	ErrRecordNotFound = xerrors.New(xerrors.CodeNotFound, "transaction record not found")
	// ErrRecordConflict is returned when an id is reused.
	ErrRecordConflict = xerrors.New(xerrors.CodeConflict, "transaction record already exists", xerrors.WithSeverity(xerrors.SeverityWarning))
)

// IsValidStatus reports whether status is a known value.
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusSuccess, StatusFailed, StatusTimedOut:
		return true
	default:
		return false
	}
}

// Terminal reports whether status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

func validateRecord(rec *Record) error {
	if rec == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "record is required")
	}
	if strings.TrimSpace(rec.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "record id is required")
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if !IsValidStatus(rec.Status) {
		return xerrors.New(xerrors.CodeInvalidArgument, "unknown record status "+string(rec.Status))
	}
	return nil
}

// Apply merges u into rec.
func (u Update) Apply(rec *Record) {
	if u.Status != "" {
		rec.Status = u.Status
	}
	if u.TxHash != "" {
		rec.TxHash = u.TxHash
	}
	if u.ApprovalHash != "" {
		rec.ApprovalHash = u.ApprovalHash
	}
	if u.ErrorCode != "" {
		rec.ErrorCode = u.ErrorCode
	}
	if u.Detail != "" {
		rec.Detail = u.Detail
	}
}
