package history

import (
	"strings"
)

// SortOrder defines how results are ordered when listing records.
type SortOrder int

const (
	// SortByCreatedDesc lists the most recent records first.
	SortByCreatedDesc SortOrder = iota
	// SortByCreatedAsc lists the oldest records first.
	SortByCreatedAsc
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ListOptions controls which records are selected.
type ListOptions struct {
	Limit    int
	Offset   int
	Account  string
	Chain    string
	Statuses []Status
	Order    SortOrder
}

func (opts *ListOptions) applyDefaults() {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Statuses != nil {
		opts.Statuses = normalizeStatuses(opts.Statuses)
	}
	if opts.Order != SortByCreatedAsc {
		opts.Order = SortByCreatedDesc
	}
	opts.Account = strings.ToLower(strings.TrimSpace(opts.Account))
	opts.Chain = strings.ToLower(strings.TrimSpace(opts.Chain))
}

// ListOption mutates ListOptions.
type ListOption func(*ListOptions)

// WithLimit limits the number of records returned.
func WithLimit(limit int) ListOption {
	return func(opts *ListOptions) {
		opts.Limit = limit
	}
}

// WithOffset skips the first n matching records.
func WithOffset(offset int) ListOption {
	return func(opts *ListOptions) {
		opts.Offset = offset
	}
}

// WithAccount selects records sent from account.
func WithAccount(account string) ListOption {
	return func(opts *ListOptions) {
		opts.Account = account
	}
}

// WithChain selects records of one chain.
func WithChain(chain string) ListOption {
	return func(opts *ListOptions) {
		opts.Chain = chain
	}
}

// WithStatuses filters records by status.
func WithStatuses(statuses ...Status) ListOption {
	return func(opts *ListOptions) {
		opts.Statuses = append(opts.Statuses[:0], statuses...)
	}
}

// WithSortOrder changes the returned order.
func WithSortOrder(order SortOrder) ListOption {
	return func(opts *ListOptions) {
		opts.Order = order
	}
}

// BuildListOptions applies option functions on top of defaults.
func BuildListOptions(opts []ListOption) ListOptions {
	options := ListOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	options.applyDefaults()
	return options
}

func normalizeStatuses(input []Status) []Status {
	if len(input) == 0 {
		return nil
	}
	seen := make(map[Status]struct{}, len(input))
	result := make([]Status, 0, len(input))
	for _, status := range input {
		if !IsValidStatus(status) {
			continue
		}
		if _, ok := seen[status]; ok {
			continue
		}
		seen[status] = struct{}{}
		result = append(result, status)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// Matches reports whether rec passes the filters of opts.
func (opts ListOptions) Matches(rec *Record) bool {
	if opts.Account != "" && !strings.EqualFold(rec.Account, opts.Account) {
		return false
	}
	if opts.Chain != "" && !strings.EqualFold(rec.Chain, opts.Chain) {
		return false
	}
	if len(opts.Statuses) > 0 {
		matched := false
		for _, status := range opts.Statuses {
			if rec.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
