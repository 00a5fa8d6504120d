package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrUnavailable means the bridge could not be reached or answered with
	// a server error. Callers must not take destructive action on it.
	ErrUnavailable = errors.New("bridge unavailable")

	// ErrSessionExists is returned by CreateSession when the bridge already
	// knows the session. Callers fall through to a status check.
	ErrSessionExists = errors.New("session already exists")
)

// Error is a non-2xx bridge response.
type Error struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("bridge %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Config carries the per-tenant connection settings. Clients are stateless;
// construct one per call site with the tenant's base URL and API key.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Client is a thin HTTP adapter over the WhatsApp bridge API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a bridge client for one tenant's configuration.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    httpClient,
	}
}

// MeInfo identifies the authenticated account behind a session.
type MeInfo struct {
	ID       string `json:"id"`
	PushName string `json:"pushName"`
}

// SessionInfo is the bridge's view of one session.
type SessionInfo struct {
	Name   string  `json:"name"`
	Status string  `json:"status"`
	Me     *MeInfo `json:"me"`
}

// QR is a pairing code. Newer bridges return a short raw payload to render
// client-side; older ones return a base64 PNG. Callers branch on IsImage.
type QR struct {
	Value    string `json:"value"`
	IsImage  bool   `json:"is_image"`
	MimeType string `json:"mime_type,omitempty"`
}

// CreateSession registers a session with the bridge. An already-existing
// session (409/422) is reported as ErrSessionExists, not a failure.
func (c *Client) CreateSession(ctx context.Context, name string) error {
	body := map[string]interface{}{"name": name, "start": false}
	err := c.do(ctx, http.MethodPost, "/api/sessions", body, nil)
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		if bridgeErr.StatusCode == http.StatusConflict || bridgeErr.StatusCode == http.StatusUnprocessableEntity {
			return ErrSessionExists
		}
	}
	return err
}

func (c *Client) StartSession(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+name+"/start", nil, nil)
}

func (c *Client) StopSession(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+name+"/stop", nil, nil)
}

func (c *Client) DeleteSession(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+name, nil, nil)
}

func (c *Client) GetSession(ctx context.Context, name string) (*SessionInfo, error) {
	var info SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+name, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Logout de-authenticates the session but keeps it registered.
func (c *Client) Logout(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+name+"/logout", nil, nil)
}

// GetQR fetches the pairing code with format=raw. The response is either
// {"value": "<raw payload>"} or a legacy {"mimetype": ..., "data": <base64>}.
func (c *Client) GetQR(ctx context.Context, name string) (*QR, error) {
	var raw struct {
		Value    string `json:"value"`
		MimeType string `json:"mimetype"`
		Data     string `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/"+name+"/auth/qr?format=raw", nil, &raw); err != nil {
		return nil, err
	}
	if raw.Value != "" {
		return &QR{Value: raw.Value}, nil
	}
	if raw.Data != "" {
		return &QR{Value: raw.Data, IsImage: true, MimeType: raw.MimeType}, nil
	}
	return nil, fmt.Errorf("bridge qr: empty response")
}

// SendText transmits a text message. chatID is the full chat address
// (e.g. "5215551234567@c.us"). Returns the provider message id when the
// bridge supplies one; may be empty.
func (c *Client) SendText(ctx context.Context, session, chatID, text string) (string, error) {
	body := map[string]interface{}{
		"session": session,
		"chatId":  chatID,
		"text":    text,
	}
	var resp map[string]interface{}
	if err := c.do(ctx, http.MethodPost, "/api/sendText", body, &resp); err != nil {
		return "", err
	}
	return extractMessageID(resp), nil
}

// extractMessageID probes the known locations of the id in send responses.
func extractMessageID(resp map[string]interface{}) string {
	if id, ok := resp["id"].(string); ok {
		return id
	}
	if key, ok := resp["key"].(map[string]interface{}); ok {
		if id, ok := key["id"].(string); ok {
			return id
		}
	}
	if data, ok := resp["_data"].(map[string]interface{}); ok {
		if id, ok := data["id"].(string); ok {
			return id
		}
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("bridge %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("bridge %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s %s: status %d", ErrUnavailable, method, path, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: method + " " + path, StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("bridge %s %s: decode: %w", method, path, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
