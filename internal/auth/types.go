// Package auth verifies the session credentials that front the
// conversation API. A credential is an HS256 JWT whose subject is the
// wallet address that completed the sign-in handshake.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrDisabled        = errors.New("authentication disabled")
	ErrInvalidToken    = errors.New("invalid token")
	ErrMissingToken    = errors.New("missing bearer token")
	ErrExpiredToken    = errors.New("token expired")
	ErrScopeDenied     = errors.New("scope denied")
	ErrInvalidSubject  = errors.New("token subject is not a wallet address")
	ErrSecretMissing   = errors.New("jwt secret must be configured")
	ErrUnsupportedMode = errors.New("unsupported auth mode")
)

// Scopes granted to session credentials.
const (
	ScopeChat    = "chat"
	ScopeExecute = "execute"
	ScopeHistory = "history"
)

// Subject is the authenticated caller.
type Subject struct {
	Account   string
	Scopes    []string
	ExpiresAt time.Time
}

// HasScope reports whether the subject was granted scope.
func (s *Subject) HasScope(scope string) bool {
	if s == nil {
		return false
	}
	for _, granted := range s.Scopes {
		if strings.EqualFold(strings.TrimSpace(granted), scope) {
			return true
		}
	}
	return false
}

// Authorize ensures the subject has every scope in scopes.
func (s *Subject) Authorize(scopes ...string) error {
	if s == nil {
		return ErrInvalidToken
	}
	for _, scope := range scopes {
		if scope == "" {
			continue
		}
		if !s.HasScope(scope) {
			return fmt.Errorf("%w: missing %s", ErrScopeDenied, scope)
		}
	}
	return nil
}

// Mode selects how requests are authenticated.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeJWT      Mode = "jwt"
)

// Config configures the Service.
type Config struct {
	Mode     Mode
	Secret   string
	Issuer   string
	Audience string
	// TTL bounds credentials issued by Issue.
	TTL time.Duration
	// Leeway tolerates clock skew on exp/iat checks.
	Leeway time.Duration
}
