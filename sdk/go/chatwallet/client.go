// Package chatwallet is a Go client for the ChatWallet conversation API.
package chatwallet

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"
)

// DefaultHTTPTimeout bounds every call except Confirm, whose stream lasts
// until the transaction settles.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the ChatWallet REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// Reply answers one message. Intent and preview details are kept raw so
// the client does not pin their schema.
type Reply struct {
	ConversationID string          `json:"conversationId"`
	Kind           string          `json:"kind"`
	Message        string          `json:"message"`
	Phase          string          `json:"phase"`
	Code           string          `json:"code,omitempty"`
	Retryable      bool            `json:"retryable,omitempty"`
	Errors         []string        `json:"errors,omitempty"`
	Address        string          `json:"address,omitempty"`
	Intent         json.RawMessage `json:"intent,omitempty"`
	Preview        *Preview        `json:"preview,omitempty"`
	Balance        *Balance        `json:"balance,omitempty"`
}

// Preview describes a built transaction awaiting confirmation.
type Preview struct {
	OperationID   string          `json:"operationId"`
	Description   string          `json:"description"`
	Chain         string          `json:"chain"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	Value         string          `json:"value"`
	GasLimit      uint64          `json:"gasLimit"`
	NeedsApproval bool            `json:"needsApproval"`
	Quote         json.RawMessage `json:"quote,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
	BuildError    string          `json:"buildError,omitempty"`
}

// Balance is the answer to a balance question.
type Balance struct {
	Chain  string `json:"chain"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
}

// State is one step of an executing operation.
type State struct {
	Phase        string `json:"phase"`
	Step         string `json:"step,omitempty"`
	TxHash       string `json:"txHash,omitempty"`
	ApprovalHash string `json:"approvalHash,omitempty"`
	ExplorerURL  string `json:"explorerUrl,omitempty"`
	Detail       string `json:"detail,omitempty"`
	Code         string `json:"code,omitempty"`
	Retryable    bool   `json:"retryable,omitempty"`
}

// Terminal reports whether no further state follows s.
func (s State) Terminal() bool {
	switch s.Phase {
	case "success", "failed", "timed_out":
		return true
	}
	return false
}

// Record is one entry of the transaction log.
type Record struct {
	ID          string `json:"id"`
	Account     string `json:"account"`
	Chain       string `json:"chain"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	TxHash      string `json:"tx_hash,omitempty"`
	Status      string `json:"status"`
	ErrorCode   string `json:"error_code,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// HistoryQuery filters History. Zero fields are omitted.
type HistoryQuery struct {
	Limit  int
	Offset int
	Chain  string
	Status string
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("chatwallet api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("chatwallet api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the API at rawURL. When httpClient is
// nil, a client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// AccessToken returns the bearer token sent with every call.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetAccessToken sets the bearer token. An empty token sends none.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// Open starts a conversation and returns its identifier.
func (c *Client) Open(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/conversations", nil, nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Send posts one user message.
func (c *Client) Send(ctx context.Context, conversationID, text string) (Reply, error) {
	var reply Reply
	body := map[string]string{"text": text}
	err := c.call(ctx, http.MethodPost, conversationPath(conversationID, "messages"), nil, body, &reply)
	return reply, err
}

// Cancel discards the pending preview or clarification.
func (c *Client) Cancel(ctx context.Context, conversationID string) (Reply, error) {
	var reply Reply
	err := c.call(ctx, http.MethodPost, conversationPath(conversationID, "cancel"), nil, nil, &reply)
	return reply, err
}

// Confirm executes the previewed transaction and calls handle for every
// state until the operation settles or handle fails. It returns the last
// state received.
func (c *Client) Confirm(ctx context.Context, conversationID string, handle func(State) error) (State, error) {
	req, err := c.newRequest(ctx, http.MethodPost, conversationPath(conversationID, "confirm"), nil, nil)
	if err != nil {
		return State{}, err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	stream := *c.httpClient
	stream.Timeout = 0
	resp, err := stream.Do(req)
	if err != nil {
		return State{}, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return State{}, decodeError(resp)
	}

	var last State
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var st State
		if err := json.Unmarshal(line, &st); err != nil {
			return last, fmt.Errorf("decode state: %w", err)
		}
		last = st
		if handle != nil {
			if err := handle(st); err != nil {
				return last, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return last, fmt.Errorf("read stream: %w", err)
	}
	if !last.Terminal() {
		return last, errors.New("chatwallet: stream ended before the operation settled")
	}
	return last, nil
}

// History lists the transaction log of the authenticated account.
func (c *Client) History(ctx context.Context, q HistoryQuery) ([]Record, error) {
	values := url.Values{}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		values.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Chain != "" {
		values.Set("chain", q.Chain)
	}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	var records []Record
	if err := c.call(ctx, http.MethodGet, "/api/v1/history", values, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func conversationPath(id, action string) string {
	return "/api/v1/conversations/" + url.PathEscape(id) + "/" + action
}

func (c *Client) call(ctx context.Context, method, endpoint string, query url.Values, payload, out any) error {
	req, err := c.newRequest(ctx, method, endpoint, query, payload)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, endpoint)
	u.RawPath = ""
	u.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read error response: %w", err)
	}
	if len(data) > 0 {
		_ = json.Unmarshal(data, apiErr)
	}
	if apiErr.Message == "" {
		apiErr.Message = string(bytes.TrimSpace(data))
	}
	return apiErr
}
