package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v4"

	"ChatWallet/pkg/logger"
)

const defaultTTL = 24 * time.Hour

// claims is the payload of a session credential.
type claims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// Service authenticates API requests.
type Service struct {
	mode     Mode
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	leeway   time.Duration
	now      func() time.Time
	audit    *slog.Logger
}

// NewService validates cfg and builds a Service.
func NewService(cfg Config) (*Service, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(string(cfg.Mode))))
	if mode == "" {
		mode = ModeDisabled
	}
	svc := &Service{
		mode:     mode,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		leeway:   cfg.Leeway,
		now:      time.Now,
		audit:    logger.Audit(),
	}
	switch mode {
	case ModeDisabled:
		return svc, nil
	case ModeJWT:
		if strings.TrimSpace(cfg.Secret) == "" {
			return nil, ErrSecretMissing
		}
		svc.secret = []byte(cfg.Secret)
		if svc.ttl <= 0 {
			svc.ttl = defaultTTL
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, cfg.Mode)
	}
}

// Mode returns the configured mode.
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeDisabled
	}
	return s.mode
}

// Issue signs a credential for account. The sign-in handshake calls this
// once the wallet signature has been checked.
func (s *Service) Issue(account string, scopes ...string) (string, error) {
	if s == nil || s.mode != ModeJWT {
		return "", ErrDisabled
	}
	if !common.IsHexAddress(account) {
		return "", ErrInvalidSubject
	}
	now := s.now()
	c := claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   common.HexToAddress(account).Hex(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if s.audience != "" {
		c.Audience = jwt.ClaimStrings{s.audience}
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// AuthenticateRequest verifies the Authorization header.
func (s *Service) AuthenticateRequest(ctx context.Context, header string) (*Subject, error) {
	if s == nil || s.mode == ModeDisabled {
		return nil, ErrDisabled
	}
	if header == "" {
		return nil, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	return s.Verify(ctx, strings.TrimSpace(token))
}

// Verify parses and checks a credential.
func (s *Service) Verify(_ context.Context, token string) (*Subject, error) {
	if s == nil || s.mode != ModeJWT {
		return nil, ErrDisabled
	}
	var c claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if _, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	now := s.now()
	if c.ExpiresAt == nil || now.After(c.ExpiresAt.Add(s.leeway)) {
		return nil, ErrExpiredToken
	}
	if c.NotBefore != nil && now.Add(s.leeway).Before(c.NotBefore.Time) {
		return nil, ErrInvalidToken
	}
	if s.issuer != "" && c.Issuer != s.issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	}
	if s.audience != "" && !c.VerifyAudience(s.audience, true) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}
	if !common.IsHexAddress(c.Subject) {
		return nil, ErrInvalidSubject
	}
	return &Subject{
		Account:   common.HexToAddress(c.Subject).Hex(),
		Scopes:    c.Scopes,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
