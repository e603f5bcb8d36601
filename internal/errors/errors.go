package errors

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"
)

// Code identifies a class of failure across the wallet pipeline.
type Code string

// Severity grades a failure for logging and alerting.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Level maps s to the log level used when reporting it.
func (s Severity) Level() slog.Level {
	switch s {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityCritical:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Attributes are the defaults attached to a code.
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
	Alert     bool
}

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:               {Message: "unknown error", Severity: SeverityCritical, Alert: true},
		CodeInvalidArgument:       {Message: "invalid argument", Severity: SeverityInfo},
		CodeNotFound:              {Message: "resource not found", Severity: SeverityInfo},
		CodeConflict:              {Message: "resource conflict", Severity: SeverityWarning},
		CodeInitializationFailure: {Message: "service not initialized", Severity: SeverityWarning, Retryable: true, Alert: true},
		CodeStorageFailure:        {Message: "storage failure", Severity: SeverityCritical, Retryable: true, Alert: true},
		CodeQueueFailure:          {Message: "event bus failure", Severity: SeverityWarning, Retryable: true, Alert: true},
		CodeTimeout:               {Message: "operation timed out", Severity: SeverityWarning, Retryable: true},

		CodeChainUnsupported:    {Message: "chain not supported", Severity: SeverityInfo},
		CodeChainMismatch:       {Message: "wallet is connected to a different chain", Severity: SeverityInfo},
		CodeTokenNotFound:       {Message: "token not found", Severity: SeverityInfo},
		CodeInsufficientBalance: {Message: "insufficient balance", Severity: SeverityInfo},
		CodeNotOwner:            {Message: "you do not own this NFT", Severity: SeverityInfo},
		CodeRouterUnavailable:   {Message: "router not available for this chain", Severity: SeverityInfo},
		CodeBuildFailed:         {Message: "could not build transaction", Severity: SeverityWarning, Retryable: true},
		CodeSigningRejected:     {Message: "signature request rejected", Severity: SeverityInfo},
		CodeSubmissionFailed:    {Message: "transaction submission failed", Severity: SeverityWarning, Retryable: true, Alert: true},
		CodeReverted:            {Message: "transaction reverted", Severity: SeverityWarning},
		CodeApprovalFailed:      {Message: "approval transaction failed", Severity: SeverityWarning},
		CodeSessionChanged:      {Message: "wallet session changed", Severity: SeverityInfo},
		CodeOperationInProgress: {Message: "an operation is already in progress", Severity: SeverityInfo},
		CodeUnauthenticated:     {Message: "session credential missing or invalid", Severity: SeverityInfo},
		CodePermissionDenied:    {Message: "not permitted for this account", Severity: SeverityWarning},
	}
)

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodeQueueFailure          Code = "QUEUE_FAILURE"
	CodeTimeout               Code = "TIMEOUT"

	CodeChainUnsupported    Code = "CHAIN_UNSUPPORTED"
	CodeChainMismatch       Code = "CHAIN_MISMATCH"
	CodeTokenNotFound       Code = "TOKEN_NOT_FOUND"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeNotOwner            Code = "NOT_OWNER"
	CodeRouterUnavailable   Code = "ROUTER_UNAVAILABLE"
	CodeBuildFailed         Code = "BUILD_FAILED"
	CodeSigningRejected     Code = "SIGNING_REJECTED"
	CodeSubmissionFailed    Code = "SUBMISSION_FAILED"
	CodeReverted            Code = "TX_REVERTED"
	CodeApprovalFailed      Code = "APPROVAL_FAILED"
	CodeSessionChanged      Code = "SESSION_CHANGED"
	CodeOperationInProgress Code = "OPERATION_IN_PROGRESS"
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodePermissionDenied    Code = "PERMISSION_DENIED"
)

// Register adds or replaces the attributes of a code. Call it from init.
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf returns the attributes registered for code, falling back to UNKNOWN.
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	attr, ok := registry[code]
	registryMu.RUnlock()
	if ok {
		return attr
	}
	registryMu.RLock()
	fallback := registry[CodeUnknown]
	registryMu.RUnlock()
	return fallback
}

// Error is the coded error returned by every pipeline stage.
type Error struct {
	code      Code
	message   string
	cause     error
	metadata  map[string]string
	retryable *bool
	alert     *bool
	severity  *Severity
}

// Option customises an Error.
type Option func(*Error)

// WithMetadata attaches a key/value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithRetryable overrides the retryable default.
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithAlert overrides the alert default.
func WithAlert(alert bool) Option {
	return func(e *Error) {
		e.alert = &alert
	}
}

// WithSeverity overrides the severity default.
func WithSeverity(sev Severity) Option {
	return func(e *Error) {
		e.severity = &sev
	}
}

// New creates an error. An empty message uses the registered one.
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap creates an error carrying cause.
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message returns the user-facing text without the code prefix or cause.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		clone[k] = v
	}
	return clone
}

func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	if e.retryable != nil {
		return *e.retryable
	}
	attr := AttributesOf(e.code)
	return attr.Retryable
}

func (e *Error) ShouldAlert() bool {
	if e == nil {
		return false
	}
	if e.alert != nil {
		return *e.alert
	}
	attr := AttributesOf(e.code)
	return attr.Alert
}

func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	if e.severity != nil {
		return *e.severity
	}
	attr := AttributesOf(e.code)
	return attr.Severity
}

// From extracts an *Error from the chain of err.
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code of err, or UNKNOWN.
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

func RetryableError(err error) bool {
	if e, ok := From(err); ok {
		return e.Retryable()
	}
	return false
}

func ShouldAlert(err error) bool {
	if e, ok := From(err); ok {
		return e.ShouldAlert()
	}
	return false
}

func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}

// MessageOf returns the user-facing message of err. Uncoded errors yield
// their Error() text.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := From(err); ok {
		return e.Message()
	}
	return err.Error()
}
