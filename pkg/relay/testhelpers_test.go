// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/phonedesk-bridge/pkg/helpdesk"
	"github.com/aiku/phonedesk-bridge/pkg/telephony"
)

// fakeHelpdesk implements HelpdeskAPI in memory. It records operation calls
// and serves canned customers and threads.
type fakeHelpdesk struct {
	mu    sync.Mutex
	calls []string

	// Customers maps external ID to the stored customer record.
	Customers map[string]*helpdesk.Customer
	// Threads maps customer ID to that customer's threads, most recently
	// created first, the order ListRecentThreads serves them in.
	Threads map[string][]helpdesk.Thread
	// ThreadEvents records CreateThreadEvent bodies keyed by thread ID.
	ThreadEvents map[string][]string
	// Messages records SendMessageAsCustomer texts keyed by thread ID.
	Messages map[string][]string
	// FailOps causes the named operations to return an error.
	FailOps map[string]bool

	// LastListLimit remembers the page size of the most recent
	// ListRecentThreads call.
	LastListLimit int

	nextID int
}

func newFakeHelpdesk() *fakeHelpdesk {
	return &fakeHelpdesk{
		Customers:    make(map[string]*helpdesk.Customer),
		Threads:      make(map[string][]helpdesk.Thread),
		ThreadEvents: make(map[string][]string),
		Messages:     make(map[string][]string),
		FailOps:      make(map[string]bool),
	}
}

func (f *fakeHelpdesk) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

func (f *fakeHelpdesk) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]string, len(f.calls))
	copy(cp, f.calls)
	return cp
}

func (f *fakeHelpdesk) CallCount(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeHelpdesk) UpsertCustomer(_ context.Context, req helpdesk.UpsertCustomerRequest) (*helpdesk.Customer, error) {
	f.record("upsertCustomer")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOps["upsertCustomer"] {
		return nil, errors.New("fake upsert error")
	}
	// Create-only semantics: an existing record comes back untouched.
	if existing, ok := f.Customers[req.ExternalID]; ok {
		return existing, nil
	}
	f.nextID++
	customer := &helpdesk.Customer{
		ID:         fmt.Sprintf("cust-%d", f.nextID),
		ExternalID: req.ExternalID,
		FullName:   req.OnCreate.FullName,
	}
	if req.OnCreate.Email != nil {
		customer.Email = *req.OnCreate.Email
	}
	f.Customers[req.ExternalID] = customer
	return customer, nil
}

func (f *fakeHelpdesk) CreateThread(_ context.Context, customerID, title string) (*helpdesk.Thread, error) {
	f.record("createThread")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOps["createThread"] {
		return nil, errors.New("fake create thread error")
	}
	f.nextID++
	now := time.Now()
	thread := helpdesk.Thread{
		ID:        fmt.Sprintf("thread-%d", f.nextID),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.Threads[customerID] = append([]helpdesk.Thread{thread}, f.Threads[customerID]...)
	return &thread, nil
}

func (f *fakeHelpdesk) ListRecentThreads(_ context.Context, customerID string, limit int) ([]helpdesk.Thread, error) {
	f.record("listRecentThreads")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastListLimit = limit
	if f.FailOps["listRecentThreads"] {
		return nil, errors.New("fake list threads error")
	}
	threads := f.Threads[customerID]
	if limit > 0 && len(threads) > limit {
		threads = threads[:limit]
	}
	cp := make([]helpdesk.Thread, len(threads))
	copy(cp, threads)
	return cp, nil
}

func (f *fakeHelpdesk) CreateThreadEvent(_ context.Context, threadID, title, text string) error {
	f.record("createThreadEvent")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOps["createThreadEvent"] {
		return errors.New("fake thread event error")
	}
	f.ThreadEvents[threadID] = append(f.ThreadEvents[threadID], text)
	return nil
}

func (f *fakeHelpdesk) SendMessageAsCustomer(_ context.Context, customerID, threadID, text string) error {
	f.record("sendMessageAsCustomer")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOps["sendMessageAsCustomer"] {
		return errors.New("fake send message error")
	}
	f.Messages[threadID] = append(f.Messages[threadID], text)
	return nil
}

// seedThread installs a thread for customerID whose updatedAt lies age in
// the past, as the most recent one.
func (f *fakeHelpdesk) seedThread(customerID, threadID string, age time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	when := time.Now().Add(-age)
	thread := helpdesk.Thread{ID: threadID, CreatedAt: when, UpdatedAt: when}
	f.Threads[customerID] = append([]helpdesk.Thread{thread}, f.Threads[customerID]...)
}

type smsSend struct {
	From string
	To   string
	Text string
}

// fakeSMS implements SMSGateway and records outbound sends.
type fakeSMS struct {
	mu    sync.Mutex
	sends []smsSend
	Fail  bool
}

func (f *fakeSMS) SendMessage(_ context.Context, from, to, text string) (*telephony.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return nil, errors.New("fake sms error")
	}
	f.sends = append(f.sends, smsSend{From: from, To: to, Text: text})
	return &telephony.Message{ID: fmt.Sprintf("sms-%d", len(f.sends)), Status: "queued"}, nil
}

func (f *fakeSMS) Sends() []smsSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]smsSend, len(f.sends))
	copy(cp, f.sends)
	return cp
}

// fakeEnricher implements Enricher with a canned result or error and
// records the numbers it was asked about.
type fakeEnricher struct {
	mu      sync.Mutex
	Result  *Enrichment
	Err     error
	lookups []string
}

func (f *fakeEnricher) EnrichPhone(_ context.Context, number string) (*Enrichment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, number)
	return f.Result, f.Err
}

func (f *fakeEnricher) Lookups() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]string, len(f.lookups))
	copy(cp, f.lookups)
	return cp
}

// testConfig returns a ready-to-use config with a 12 hour continuity window
// and test credentials, bypassing file loading.
func testConfig() *Config {
	return &Config{
		ListenAddr:             ":0",
		TelephonyAPIKey:        "test-telephony-key",
		HelpdeskAPIKey:         "test-helpdesk-key",
		FromNumber:             "+15550001111",
		DefaultRegion:          "US",
		PlaceholderEmailDomain: "sms.invalid",
		continuityWindow:       12 * time.Hour,
	}
}

// newTestBridge wires a Bridge to in-memory fakes with enrichment disabled.
func newTestBridge(t *testing.T) (*Bridge, *fakeHelpdesk, *fakeSMS) {
	t.Helper()
	hd := newFakeHelpdesk()
	sms := &fakeSMS{}
	bridge := NewBridge(testConfig(), hd, sms, nil, zerolog.Nop())
	return bridge, hd, sms
}

// rawJSON marshals v for use as an event object in tests.
func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal test payload: %v", err)
	}
	return data
}

var (
	_ HelpdeskAPI = (*fakeHelpdesk)(nil)
	_ SMSGateway  = (*fakeSMS)(nil)
	_ Enricher    = (*fakeEnricher)(nil)
)
