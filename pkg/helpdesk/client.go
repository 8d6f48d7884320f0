// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package helpdesk is a client for the ticketing platform's graph-query API.
// Every operation the bridge needs is exposed as a named method wrapping one
// query document; the wire format stays inside this package.
package helpdesk

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

// Actor types attached to thread chats by the platform. ActorMachine is the
// reserved non-human identity the bridge writes with; the echo guard keys on
// it to tell relay-authored chats apart from human ones.
const (
	ActorCustomer = "customer"
	ActorUser     = "user"
	ActorMachine  = "machine"
	ActorSystem   = "system"
)

// Customer is a ticketing-platform customer record. ExternalID carries the
// E.164 phone number the bridge keys identities on.
type Customer struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
	FullName   string `json:"fullName"`
	Email      string `json:"email,omitempty"`
}

// Thread is a conversation thread owned by the ticketing platform.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CustomerOnCreate holds the fields applied only when an upsert creates the
// customer. Existing records keep their fields untouched.
type CustomerOnCreate struct {
	FullName string  `json:"fullName"`
	Email    *string `json:"email,omitempty"`
}

// UpsertCustomerRequest identifies a customer by external id and supplies
// create-only fields.
type UpsertCustomerRequest struct {
	ExternalID string
	OnCreate   CustomerOnCreate
}

// Options configures a Client. Zero values get production defaults.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to the ticketing platform. Safe for concurrent use.
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
		log:     opts.Logger.With().Str("component", "helpdesk-client").Logger(),
	}
}

const upsertCustomerQuery = `mutation upsertCustomer($externalId: String!, $fullName: String!, $email: String) {
  upsertCustomer(input: {identifier: {externalId: $externalId}, onCreate: {fullName: $fullName, email: $email}}) {
    customer { id externalId fullName email }
  }
}`

// UpsertCustomer ensures a customer exists for req.ExternalID. The onCreate
// fields apply only when the record is created; an existing customer is
// returned as-is, never overwritten.
func (c *Client) UpsertCustomer(ctx context.Context, req UpsertCustomerRequest) (*Customer, error) {
	vars := map[string]any{
		"externalId": req.ExternalID,
		"fullName":   req.OnCreate.FullName,
		"email":      req.OnCreate.Email,
	}
	var out struct {
		UpsertCustomer struct {
			Customer Customer `json:"customer"`
		} `json:"upsertCustomer"`
	}
	if err := c.do(ctx, "upsertCustomer", upsertCustomerQuery, vars, &out); err != nil {
		return nil, err
	}
	return &out.UpsertCustomer.Customer, nil
}

const createThreadQuery = `mutation createThread($customerId: ID!, $title: String!) {
  createThread(input: {customerId: $customerId, title: $title}) {
    thread { id title createdAt updatedAt }
  }
}`

// CreateThread opens a new thread for the customer.
func (c *Client) CreateThread(ctx context.Context, customerID, title string) (*Thread, error) {
	vars := map[string]any{"customerId": customerID, "title": title}
	var out struct {
		CreateThread struct {
			Thread Thread `json:"thread"`
		} `json:"createThread"`
	}
	if err := c.do(ctx, "createThread", createThreadQuery, vars, &out); err != nil {
		return nil, err
	}
	return &out.CreateThread.Thread, nil
}

const recentThreadsQuery = `query recentThreads($customerId: ID!, $first: Int!) {
  threads(filter: {customerId: $customerId}, sortBy: {field: CREATED_AT, direction: DESC}, first: $first) {
    items { id title createdAt updatedAt }
  }
}`

// ListRecentThreads returns up to limit threads for the customer, newest
// created first. The platform's ordering is authoritative; callers must not
// re-sort.
func (c *Client) ListRecentThreads(ctx context.Context, customerID string, limit int) ([]Thread, error) {
	vars := map[string]any{"customerId": customerID, "first": limit}
	var out struct {
		Threads struct {
			Items []Thread `json:"items"`
		} `json:"threads"`
	}
	if err := c.do(ctx, "recentThreads", recentThreadsQuery, vars, &out); err != nil {
		return nil, err
	}
	return out.Threads.Items, nil
}

const createThreadEventQuery = `mutation createThreadEvent($threadId: ID!, $title: String!, $text: String!) {
  createThreadEvent(input: {threadId: $threadId, title: $title, text: $text}) {
    threadEvent { id }
  }
}`

// CreateThreadEvent appends a titled text event to the thread's timeline.
func (c *Client) CreateThreadEvent(ctx context.Context, threadID, title, text string) error {
	vars := map[string]any{"threadId": threadID, "title": title, "text": text}
	return c.do(ctx, "createThreadEvent", createThreadEventQuery, vars, nil)
}

const sendCustomerChatQuery = `mutation sendCustomerChat($customerId: ID!, $threadId: ID!, $text: String!) {
  sendCustomerChat(input: {customerId: $customerId, threadId: $threadId, text: $text}) {
    chat { id }
  }
}`

// SendMessageAsCustomer writes text into the thread authored as the customer.
func (c *Client) SendMessageAsCustomer(ctx context.Context, customerID, threadID, text string) error {
	vars := map[string]any{"customerId": customerID, "threadId": threadID, "text": text}
	return c.do(ctx, "sendCustomerChat", sendCustomerChatQuery, vars, nil)
}

const sendRelayChatQuery = `mutation sendRelayChat($threadId: ID!, $text: String!, $customerExternalId: String!) {
  sendRelayChat(input: {threadId: $threadId, text: $text, impersonate: {customerExternalId: $customerExternalId}}) {
    chat { id }
  }
}`

// SendMessageAsRelayActor writes text into the thread as the machine actor,
// displayed on behalf of the customer identified by customerExternalID.
// Chats written this way come back on the webhook tagged ActorMachine.
func (c *Client) SendMessageAsRelayActor(ctx context.Context, threadID, text, customerExternalID string) error {
	vars := map[string]any{"threadId": threadID, "text": text, "customerExternalId": customerExternalID}
	return c.do(ctx, "sendRelayChat", sendRelayChatQuery, vars, nil)
}

type graphQLRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

// do posts one operation to the graph endpoint and decodes the data field
// into out (out may be nil for mutations whose result is not needed).
func (c *Client) do(ctx context.Context, operationName, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(graphQLRequest{
		OperationName: operationName,
		Query:         query,
		Variables:     variables,
	})
	if err != nil {
		return fmt.Errorf("helpdesk %s: encode request: %w", operationName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("helpdesk %s: build request: %w", operationName, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-Id", uuid.NewString())

	c.log.Trace().Str("operation", operationName).Msg("Helpdesk request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("helpdesk %s: %w", operationName, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("helpdesk %s: read response: %w", operationName, readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("helpdesk %s failed: status=%d message=%s",
			operationName, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var gr graphQLResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return fmt.Errorf("helpdesk %s: decode response: %w", operationName, err)
	}
	if len(gr.Errors) > 0 {
		return fmt.Errorf("helpdesk %s failed: %s", operationName, gr.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(gr.Data, out); err != nil {
			return fmt.Errorf("helpdesk %s: decode data: %w", operationName, err)
		}
	}
	return nil
}
