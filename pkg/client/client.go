// Package client is a Go SDK for the chat API. It sends messages, follows
// the generation stream and reattaches to it after a dropped connection,
// merging everything it receives into a MessageStore.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/stream"
)

var (
	// ErrNotFound is returned by Resume when the chat has no streams.
	ErrNotFound = errors.New("chat or stream not found")
	// ErrSuperseded means a newer Send for the same chat cancelled the call.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrUnauthorized means the session token is missing or rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client talks to one backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	Store   *MessageStore

	mu    sync.Mutex
	token string
	chats map[string]*chatToken
}

// chatToken is the per-chat cancellation token. Every Send replaces it;
// work started under an older token is cancelled and its events dropped.
type chatToken struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// New creates a client for baseURL, e.g. http://localhost:8080/api/v1.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// no overall timeout: generation streams are long-lived
		http:  &http.Client{Transport: http.DefaultTransport},
		Store: NewMessageStore(),
		chats: make(map[string]*chatToken),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) current(chatID string) *chatToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.chats[chatID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		t = &chatToken{ctx: ctx, cancel: cancel}
		c.chats[chatID] = t
	}
	return t
}

// invalidate cancels everything running under the chat's current token and
// returns the new one.
func (c *Client) invalidate(chatID string) *chatToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	var gen uint64
	if old, ok := c.chats[chatID]; ok {
		old.cancel()
		gen = old.gen + 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &chatToken{gen: gen, ctx: ctx, cancel: cancel}
	c.chats[chatID] = t
	return t
}

func (c *Client) isCurrent(chatID string, t *chatToken) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chats[chatID] == t
}

// Signup, Login and Guest store the issued token on the client.
func (c *Client) Signup(ctx context.Context, email, password, name string) (*models.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/signup", models.SignupRequest{Email: email, Password: password, Name: name})
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", models.LoginRequest{Email: email, Password: password})
}

func (c *Client) Guest(ctx context.Context) (*models.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/guest", nil)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return &resp, nil
}

// SendOptions tunes Send.
type SendOptions struct {
	Visibility string
}

// Send posts msg to the chat and follows the reply stream until it ends.
// The chat's token is replaced first, so pending resumes for the chat are
// cancelled and cannot apply stale events afterwards. It reports whether
// the stream ended cleanly; false means the connection dropped and the
// caller may Resume.
func (c *Client) Send(ctx context.Context, chatID string, msg models.Message, opts SendOptions) (bool, error) {
	tok := c.invalidate(chatID)
	if msg.Role == "" {
		msg.Role = models.RoleUser
	}
	msg.ChatID = chatID
	c.Store.Merge(chatID, msg)

	body, err := json.Marshal(models.GenerateRequest{ChatID: chatID, Message: msg, Visibility: opts.Visibility})
	if err != nil {
		return false, err
	}

	ctx, cancel := bind(ctx, tok.ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/generate", bytes.NewReader(body), "application/json")
	if err != nil {
		return false, c.superseded(chatID, tok, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, decodeError(resp)
	}
	done, err := c.consume(chatID, tok, resp.Body)
	return done, c.superseded(chatID, tok, err)
}

// Resume reattaches to the chat's latest stream. Events are applied only
// while the token captured at the start is still current. A disabled
// feature (204) is not an error.
func (c *Client) Resume(ctx context.Context, chatID string) (bool, error) {
	tok := c.current(chatID)
	ctx, cancel := bind(ctx, tok.ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/generate/"+url.PathEscape(chatID)+"/resume", nil, "")
	if err != nil {
		return false, c.superseded(chatID, tok, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, ErrNotFound
	default:
		return false, decodeError(resp)
	}
	done, err := c.consume(chatID, tok, resp.Body)
	return done, c.superseded(chatID, tok, err)
}

// History loads persisted messages and merges them into the store.
func (c *Client) History(ctx context.Context, chatID string) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/chats/"+url.PathEscape(chatID)+"/messages", nil, &resp); err != nil {
		return nil, err
	}
	for _, m := range resp.Messages {
		c.Store.Merge(chatID, m)
	}
	return c.Store.Messages(chatID), nil
}

// ListChats returns the first page of the caller's chats.
func (c *Client) ListChats(ctx context.Context, limit int) (*models.ChatPage, error) {
	var page models.ChatPage
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/chats?limit=%d", limit), nil, &page)
	return &page, err
}

func (c *Client) consume(chatID string, tok *chatToken, body io.Reader) (bool, error) {
	cur := NewCursor()
	return readSSE(body, func(data string) error {
		ev, err := stream.UnmarshalEvent([]byte(data))
		if err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if !c.applyIfCurrent(chatID, tok, ev, cur) {
			return ErrSuperseded
		}
		return nil
	})
}

// applyIfCurrent folds ev into the store only while tok is the chat's
// token. c.mu is held across the check and the write, so once invalidate
// returns no event read under the old token can reach the store.
func (c *Client) applyIfCurrent(chatID string, tok *chatToken, ev stream.Event, cur *Cursor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chats[chatID] != tok {
		return false
	}
	c.Store.Apply(chatID, ev, cur)
	return true
}

func (c *Client) superseded(chatID string, tok *chatToken, err error) error {
	if err != nil && !c.isCurrent(chatID, tok) {
		return ErrSuperseded
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, text/event-stream")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return c.http.Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := c.do(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&envelope); err == nil && envelope.Error != nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

// bind returns a context cancelled when either parent is.
func bind(ctx, other context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
