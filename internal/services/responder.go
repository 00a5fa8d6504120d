package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Responder proposes an automated reply for an inbound message. It is an
// external service with its own failure domain; the pipeline treats an
// error and "no reply" the same way.
type Responder interface {
	Respond(ctx context.Context, orgID, conversationID uint, customerPhone, text string) (reply string, ok bool, err error)
}

// HTTPResponder calls the AI responder service over HTTP.
type HTTPResponder struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewHTTPResponder creates a responder adapter for the given endpoint.
func NewHTTPResponder(endpoint, apiKey string) *HTTPResponder {
	return &HTTPResponder{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type respondRequest struct {
	OrganizationID uint   `json:"organization_id"`
	ConversationID uint   `json:"conversation_id"`
	CustomerPhone  string `json:"customer_phone"`
	Text           string `json:"text"`
}

type respondResponse struct {
	Reply *string `json:"reply"`
}

func (r *HTTPResponder) Respond(ctx context.Context, orgID, conversationID uint, customerPhone, text string) (string, bool, error) {
	body, err := json.Marshal(respondRequest{
		OrganizationID: orgID,
		ConversationID: conversationID,
		CustomerPhone:  customerPhone,
		Text:           text,
	})
	if err != nil {
		return "", false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return "", false, fmt.Errorf("responder status %d: %s", resp.StatusCode, data)
	}

	var out respondResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, err
	}
	if out.Reply == nil || *out.Reply == "" {
		return "", false, nil
	}
	return *out.Reply, true, nil
}

// NoopResponder never replies. Used when no responder endpoint is
// configured so the pipeline's bot gate still has something to call.
type NoopResponder struct{}

func (NoopResponder) Respond(ctx context.Context, orgID, conversationID uint, customerPhone, text string) (string, bool, error) {
	return "", false, nil
}
