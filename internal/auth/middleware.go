package auth

import (
	"errors"
	"net/http"
	"time"

	"ChatWallet/pkg/logger"
)

// MiddlewareConfig configures the authentication middleware.
type MiddlewareConfig struct {
	// RequiredScopes must all be granted to the caller.
	RequiredScopes []string
	// AuditEvent names the audit record; it defaults to the request path.
	AuditEvent string
}

// Middleware authenticates requests, enforces scopes and writes an audit
// record per request. A disabled Service passes every request through.
func (s *Service) Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s == nil || s.mode == ModeDisabled {
				next.ServeHTTP(w, r)
				return
			}
			audit := s.audit
			if audit == nil {
				audit = logger.Audit()
			}

			subject, err := s.AuthenticateRequest(r.Context(), r.Header.Get("Authorization"))
			if err == nil {
				err = subject.Authorize(cfg.RequiredScopes...)
			}
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, ErrScopeDenied) {
					status = http.StatusForbidden
				}
				writeError(w, status)
				audit.Warn("access_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"status", status,
					"error", err.Error(),
				)
				return
			}

			start := time.Now()
			aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(aw, r.WithContext(WithSubject(r.Context(), subject)))
			event := cfg.AuditEvent
			if event == "" {
				event = r.URL.Path
			}
			audit.Info("api_request",
				"event", event,
				"method", r.Method,
				"path", r.URL.Path,
				"status", aw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"account", subject.Account,
			)
		})
	}
}

func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="chatwallet"`)
	w.WriteHeader(status)
	code := "UNAUTHENTICATED"
	if status == http.StatusForbidden {
		code = "FORBIDDEN"
	}
	_, _ = w.Write([]byte(`{"code":"` + code + `","message":"` + http.StatusText(status) + `"}` + "\n"))
}

// auditWriter captures the response status.
type auditWriter struct {
	http.ResponseWriter
	status int
}

func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the wrapper.
func (w *auditWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
