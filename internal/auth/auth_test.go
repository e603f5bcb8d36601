package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const account = "0x00000000000000000000000000000000000000a1"

func newTestService(t *testing.T, now time.Time) *Service {
	t.Helper()
	svc, err := NewService(Config{Mode: ModeJWT, Secret: "s3cret", Issuer: "chatwallet", Audience: "api", TTL: time.Hour})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.now = func() time.Time { return now }
	return svc
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	svc := newTestService(t, now)
	token, err := svc.Issue(account, ScopeChat, ScopeExecute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	subject, err := svc.AuthenticateRequest(context.Background(), "Bearer "+token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if subject.Account != "0x00000000000000000000000000000000000000A1" {
		t.Fatalf("unexpected account %s", subject.Account)
	}
	if !subject.HasScope("CHAT") || subject.HasScope(ScopeHistory) {
		t.Fatalf("unexpected scopes %v", subject.Scopes)
	}
	if !subject.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", subject.ExpiresAt)
	}
}

func TestVerifyRejections(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	svc := newTestService(t, now)
	valid, _ := svc.Issue(account)

	other := newTestService(t, now)
	other.secret = []byte("different")
	forged, _ := other.Issue(account)

	wrongIssuer := newTestService(t, now)
	wrongIssuer.issuer = "someone-else"
	foreign, _ := wrongIssuer.Issue(account)

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]struct {
		header string
		want   error
	}{
		"missing":       {"", ErrMissingToken},
		"wrong scheme":  {"Basic " + valid, ErrMissingToken},
		"forged":        {"Bearer " + forged, ErrInvalidToken},
		"wrong issuer":  {"Bearer " + foreign, ErrInvalidToken},
		"alg none":      {"Bearer " + none, ErrInvalidToken},
		"garbage":       {"Bearer abc.def.ghi", ErrInvalidToken},
		"bearer casing": {"bearer " + valid, nil},
	}
	for name, tc := range cases {
		_, err := svc.AuthenticateRequest(context.Background(), tc.header)
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", name, err, tc.want)
		}
	}

	svc.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := svc.Verify(context.Background(), valid); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestNewServiceModes(t *testing.T) {
	if _, err := NewService(Config{Mode: ModeJWT}); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected missing secret, got %v", err)
	}
	if _, err := NewService(Config{Mode: "oauth"}); !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("expected unsupported mode, got %v", err)
	}
	svc, err := NewService(Config{})
	if err != nil || svc.Mode() != ModeDisabled {
		t.Fatalf("empty mode should disable auth: %v", err)
	}
	if _, err := svc.Issue(account); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected disabled, got %v", err)
	}
	if _, err := newTestService(t, time.Now()).Issue("bob"); !errors.Is(err, ErrInvalidSubject) {
		t.Fatalf("expected invalid subject, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	now := time.Now()
	svc := newTestService(t, now)
	chatOnly, _ := svc.Issue(account, ScopeChat)

	handler := svc.Middleware(MiddlewareConfig{RequiredScopes: []string{ScopeExecute}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SubjectFromContext(r.Context()) == nil {
			t.Errorf("subject missing from context")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/x", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/x", nil)
	req.Header.Set("Authorization", "Bearer "+chatOnly)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	full, _ := svc.Issue(account, ScopeChat, ScopeExecute)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/x", nil)
	req.Header.Set("Authorization", "Bearer "+full)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	disabled, _ := NewService(Config{Mode: ModeDisabled})
	open := disabled.Middleware(MiddlewareConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("disabled auth must pass through, got %d", rec.Code)
	}
}
