package chatwallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestOpenAndSend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/conversations", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "conv-1"})
	})
	mux.HandleFunc("POST /api/v1/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text != "what's my balance" {
			t.Errorf("unexpected body %+v (%v)", body, err)
		}
		_ = json.NewEncoder(w).Encode(Reply{
			ConversationID: r.PathValue("id"),
			Kind:           "balance",
			Message:        "You have 1.5 ETH on Ethereum.",
			Balance:        &Balance{Chain: "ethereum", Symbol: "ETH", Amount: "1.5"},
		})
	})
	client := newTestClient(t, mux)
	client.SetAccessToken("token")

	id, err := client.Open(context.Background())
	if err != nil || id != "conv-1" {
		t.Fatalf("open: %q %v", id, err)
	}
	reply, err := client.Send(context.Background(), id, "what's my balance")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.ConversationID != "conv-1" || reply.Balance == nil || reply.Balance.Amount != "1.5" {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestConfirmStreamsStates(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/conversations/conv-1/confirm" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		_ = enc.Encode(State{Phase: "confirming", Step: "awaiting-signature"})
		_ = enc.Encode(State{Phase: "pending", TxHash: "0xabc"})
		_ = enc.Encode(State{Phase: "success", TxHash: "0xabc"})
	}))

	var phases []string
	last, err := client.Confirm(context.Background(), "conv-1", func(st State) error {
		phases = append(phases, st.Phase)
		return nil
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if last.Phase != "success" || len(phases) != 3 {
		t.Fatalf("unexpected stream %v last=%+v", phases, last)
	}
}

func TestConfirmTruncatedStream(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(State{Phase: "pending", TxHash: "0xabc"})
	}))
	last, err := client.Confirm(context.Background(), "conv-1", nil)
	if err == nil {
		t.Fatal("expected an error for a stream without a terminal state")
	}
	if last.TxHash != "0xabc" {
		t.Fatalf("last state lost: %+v", last)
	}
}

func TestAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"CONFLICT","message":"There is nothing to cancel."}`))
	}))
	_, err := client.Cancel(context.Background(), "conv-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Code != "CONFLICT" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestHistoryQuery(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "5" || q.Get("chain") != "polygon" || q.Get("status") != "success" || q.Has("offset") {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode([]Record{{ID: "op-1", Chain: "polygon", Status: "success"}})
	}))
	records, err := client.History(context.Background(), HistoryQuery{Limit: 5, Chain: "polygon", Status: "success"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 || records[0].ID != "op-1" {
		t.Fatalf("unexpected records %+v", records)
	}
}
