package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ChatWallet/internal/auth"
	"ChatWallet/internal/conversation"
	xerrors "ChatWallet/internal/errors"
	"ChatWallet/internal/execution"
	"ChatWallet/internal/history"
	"ChatWallet/pkg/logger"
)

const maxBodyBytes = 16 << 10

// Conversations is the conversation machine as seen by the API.
type Conversations interface {
	Open(owner string) string
	Owner(id string) (string, bool)
	HandleMessage(ctx context.Context, id, text string) (conversation.Reply, error)
	Confirm(ctx context.Context, id string) (<-chan execution.State, error)
	Cancel(ctx context.Context, id string) (conversation.Reply, error)
	Snapshot(ctx context.Context, id string) (conversation.Snapshot, bool)
}

// AccountSource reports the account the wallet session signs for.
type AccountSource interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
}

// Server serves the REST API.
type Server struct {
	addr          string
	conversations Conversations
	history       history.Store
	auth          *auth.Service
	session       AccountSource
	instrument    func(name string, next http.Handler) http.Handler
	log           *slog.Logger
}

// NewServer builds a Server. authSvc may be nil to disable authentication.
func NewServer(addr string, conversations Conversations, hist history.Store, authSvc *auth.Service) *Server {
	return &Server{
		addr:          addr,
		conversations: conversations,
		history:       hist,
		auth:          authSvc,
		log:           logger.Named("api"),
	}
}

// Use installs a per-route wrapper, typically request metrics.
func (s *Server) Use(instrument func(name string, next http.Handler) http.Handler) {
	s.instrument = instrument
}

// BindSession rejects authenticated callers whose token account is not
// the account src signs for.
func (s *Server) BindSession(src AccountSource) {
	s.session = src
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern, event string, h http.HandlerFunc, scopes ...string) {
		var handler http.Handler = s.auth.Middleware(auth.MiddlewareConfig{RequiredScopes: scopes, AuditEvent: event})(s.sessionAccount(h))
		if s.instrument != nil {
			handler = s.instrument(event, handler)
		}
		mux.Handle(pattern, handler)
	}
	route("POST /api/v1/conversations", "conversation.open", s.handleOpen, auth.ScopeChat)
	route("GET /api/v1/conversations/{id}", "conversation.get", s.handleSnapshot, auth.ScopeChat)
	route("POST /api/v1/conversations/{id}/messages", "conversation.message", s.handleMessage, auth.ScopeChat)
	route("POST /api/v1/conversations/{id}/confirm", "conversation.confirm", s.handleConfirm, auth.ScopeExecute)
	route("POST /api/v1/conversations/{id}/cancel", "conversation.cancel", s.handleCancel, auth.ScopeChat)
	route("GET /api/v1/history", "history.list", s.handleHistory, auth.ScopeHistory)
	return mux
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("api listening", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type openResponse struct {
	ID string `json:"id"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sessionAccount passes requests whose subject is the session account.
func (s *Server) sessionAccount(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := auth.SubjectFromContext(r.Context())
		if subject == nil || s.session == nil {
			next(w, r)
			return
		}
		accounts, err := s.session.RequestAccounts(r.Context())
		if err != nil {
			s.writeError(w, xerrors.Wrap(xerrors.CodeUnauthenticated, err, "wallet session unavailable"))
			return
		}
		if len(accounts) == 0 || !strings.EqualFold(accounts[0].Hex(), subject.Account) {
			s.writeError(w, xerrors.New(xerrors.CodePermissionDenied, "token account does not match the wallet session"))
			return
		}
		next(w, r)
	}
}

// conversationID returns the path id when the caller owns it. Foreign
// conversations are reported as missing.
func (s *Server) conversationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	owner, ok := s.conversations.Owner(id)
	if !ok || !strings.EqualFold(owner, callerAccount(r)) {
		s.writeError(w, xerrors.New(xerrors.CodeNotFound, "conversation not found"))
		return "", false
	}
	return id, true
}

func callerAccount(r *http.Request) string {
	if subject := auth.SubjectFromContext(r.Context()); subject != nil {
		return subject.Account
	}
	return ""
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, openResponse{ID: s.conversations.Open(callerAccount(r))})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := s.conversationID(w, r)
	if !ok {
		return
	}
	snap, ok := s.conversations.Snapshot(r.Context(), id)
	if !ok {
		s.writeError(w, xerrors.New(xerrors.CodeNotFound, "conversation not found"))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.conversationID(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "request body must be JSON with a text field"))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "text is required"))
		return
	}
	reply, err := s.conversations.HandleMessage(r.Context(), id, req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// handleConfirm streams execution states as newline-delimited JSON. A
// client that disconnects stops the stream, not the operation.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := s.conversationID(w, r)
	if !ok {
		return
	}
	states, err := s.conversations.Confirm(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if err := enc.Encode(st); err != nil {
				s.log.Warn("stream state", slog.Any("error", err))
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.conversationID(w, r)
	if !ok {
		return
	}
	reply, err := s.conversations.Cancel(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, xerrors.New(xerrors.CodeStorageFailure, "history is not configured"))
		return
	}
	q := r.URL.Query()
	opts := []history.ListOption{history.WithLimit(20)}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			s.writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "limit must be a positive integer"))
			return
		}
		opts = append(opts, history.WithLimit(limit))
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset > 0 {
			opts = append(opts, history.WithOffset(offset))
		}
	}
	if chain := q.Get("chain"); chain != "" {
		opts = append(opts, history.WithChain(chain))
	}
	if raw := q.Get("status"); raw != "" {
		var statuses []history.Status
		for _, part := range strings.Split(raw, ",") {
			status := history.Status(strings.TrimSpace(part))
			if !history.IsValidStatus(status) {
				s.writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "unknown status "+string(status)))
				return
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, history.WithStatuses(statuses...))
	}
	account := q.Get("account")
	if subject := auth.SubjectFromContext(r.Context()); subject != nil {
		account = subject.Account
	}
	if account != "" {
		opts = append(opts, history.WithAccount(account))
	}

	records, err := s.history.List(r.Context(), opts...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []*history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	status := statusFor(code)
	s.log.Log(context.Background(), xerrors.SeverityOf(err).Level(), "request failed",
		slog.String("code", string(code)),
		slog.Int("status", status),
		slog.Any("error", err),
	)
	if xerrors.ShouldAlert(err) {
		logger.Audit().Warn("alert", slog.String("code", string(code)), slog.Any("error", err))
	}
	writeJSON(w, status, errorResponse{Code: string(code), Message: xerrors.MessageOf(err)})
}

func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case xerrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case xerrors.CodePermissionDenied:
		return http.StatusForbidden
	case xerrors.CodeNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict, xerrors.CodeOperationInProgress, xerrors.CodeSessionChanged:
		return http.StatusConflict
	case xerrors.CodeChainUnsupported, xerrors.CodeChainMismatch:
		return http.StatusUnprocessableEntity
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// withContext rejects requests once the root context is cancelled.
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
