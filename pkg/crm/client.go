// Copyright 2024-2026 Aiku AI

// Package crm is a client for the CRM's object search API, used only for
// best-effort identity enrichment. Callers must treat every failure here as
// non-fatal.
package crm

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

// Contact is a CRM person record matched by phone number.
type Contact struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

// Company is a CRM organization record matched by phone number.
type Company struct {
	ID   string
	Name string
}

// Options configures a Client. Zero values get production defaults.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client talks to the CRM. Safe for concurrent use.
type Client struct {
	baseURL string
	token   string
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
		token:   opts.Token,
		http:    httpClient,
		log:     opts.Logger.With().Str("component", "crm-client").Logger(),
	}
}

type searchFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type searchFilterGroup struct {
	Filters []searchFilter `json:"filters"`
}

type searchRequest struct {
	FilterGroups []searchFilterGroup `json:"filterGroups"`
	Properties   []string            `json:"properties"`
	Limit        int                 `json:"limit"`
}

type searchResult struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type searchResponse struct {
	Total   int            `json:"total"`
	Results []searchResult `json:"results"`
}

// SearchContactsByPhone returns contacts whose phone property equals number.
func (c *Client) SearchContactsByPhone(ctx context.Context, number string) ([]Contact, error) {
	results, err := c.search(ctx, "contacts", number, []string{"firstname", "lastname", "email"})
	if err != nil {
		return nil, err
	}
	contacts := make([]Contact, 0, len(results))
	for _, r := range results {
		contacts = append(contacts, Contact{
			ID:        r.ID,
			FirstName: r.Properties["firstname"],
			LastName:  r.Properties["lastname"],
			Email:     r.Properties["email"],
		})
	}
	return contacts, nil
}

// SearchCompaniesByPhone returns companies whose phone property equals number.
func (c *Client) SearchCompaniesByPhone(ctx context.Context, number string) ([]Company, error) {
	results, err := c.search(ctx, "companies", number, []string{"name"})
	if err != nil {
		return nil, err
	}
	companies := make([]Company, 0, len(results))
	for _, r := range results {
		companies = append(companies, Company{ID: r.ID, Name: r.Properties["name"]})
	}
	return companies, nil
}

func (c *Client) search(ctx context.Context, objectType, number string, properties []string) ([]searchResult, error) {
	payload, err := json.Marshal(searchRequest{
		FilterGroups: []searchFilterGroup{{
			Filters: []searchFilter{{PropertyName: "phone", Operator: "EQ", Value: number}},
		}},
		Properties: properties,
		Limit:      5,
	})
	if err != nil {
		return nil, fmt.Errorf("crm %s search: encode request: %w", objectType, err)
	}

	url := fmt.Sprintf("%s/crm/v3/objects/%s/search", c.baseURL, objectType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("crm %s search: build request: %w", objectType, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-Id", uuid.NewString())

	c.log.Trace().Str("object_type", objectType).Msg("CRM search request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm %s search: %w", objectType, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("crm %s search: read response: %w", objectType, readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("crm %s search failed: status=%d message=%s",
			objectType, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("crm %s search: decode response: %w", objectType, err)
	}
	return out.Results, nil
}
