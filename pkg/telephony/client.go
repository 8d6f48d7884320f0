// Copyright 2024-2026 Aiku AI

// Package telephony is a client for the phone/SMS provider's REST API.
package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Message is the provider's view of an outbound SMS after submission.
type Message struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Options configures a Client. Zero values get production defaults.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to the telephony provider. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		http:    httpClient,
		log:     opts.Logger.With().Str("component", "telephony-client").Logger(),
	}
}

type sendMessageRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Content string   `json:"content"`
}

type sendMessageResponse struct {
	Data Message `json:"data"`
}

// SendMessage submits one SMS from the given number to the given number and
// returns the provider's delivery record. The provider expects the API key
// as a raw Authorization header value, not a bearer token.
func (c *Client) SendMessage(ctx context.Context, from, to, text string) (*Message, error) {
	payload, err := json.Marshal(sendMessageRequest{
		From:    from,
		To:      []string{to},
		Content: text,
	})
	if err != nil {
		return nil, fmt.Errorf("telephony sendMessage: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("telephony sendMessage: build request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-Id", uuid.NewString())

	c.log.Trace().Str("to", to).Msg("Telephony send request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telephony sendMessage: %w", err)
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("telephony sendMessage: read response: %w", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("telephony sendMessage failed: status=%d message=%s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out sendMessageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("telephony sendMessage: decode response: %w", err)
	}
	return &out.Data, nil
}
