// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aiku/phonedesk-bridge/pkg/helpdesk"
	"github.com/aiku/phonedesk-bridge/pkg/telephony"
)

// HelpdeskAPI is the slice of the ticketing platform the engine calls.
// *helpdesk.Client implements it; tests substitute a recording fake.
type HelpdeskAPI interface {
	UpsertCustomer(ctx context.Context, req helpdesk.UpsertCustomerRequest) (*helpdesk.Customer, error)
	CreateThread(ctx context.Context, customerID, title string) (*helpdesk.Thread, error)
	ListRecentThreads(ctx context.Context, customerID string, limit int) ([]helpdesk.Thread, error)
	CreateThreadEvent(ctx context.Context, threadID, title, text string) error
	SendMessageAsCustomer(ctx context.Context, customerID, threadID, text string) error
}

// SMSGateway is the slice of the telephony provider the engine calls.
type SMSGateway interface {
	SendMessage(ctx context.Context, from, to, text string) (*telephony.Message, error)
}

// Enrichment is CRM-derived identity data for one phone number.
type Enrichment struct {
	FirstName string
	LastName  string
	Email     string
	Company   string
}

// DisplayName derives a customer display name from the richest available
// field: the person's name if any part of it is set, else the company name,
// else empty.
func (e *Enrichment) DisplayName() string {
	switch {
	case e == nil:
		return ""
	case e.FirstName != "" && e.LastName != "":
		return e.FirstName + " " + e.LastName
	case e.FirstName != "":
		return e.FirstName
	case e.LastName != "":
		return e.LastName
	default:
		return e.Company
	}
}

// Enricher looks up best-effort identity data for a normalized phone number.
// A nil result with a nil error means no match. Implementations must be safe
// for concurrent use and must never be load-bearing: the resolver absorbs
// every error returned here.
type Enricher interface {
	EnrichPhone(ctx context.Context, number string) (*Enrichment, error)
}

// Bridge is the conversation synchronization engine. It classifies inbound
// webhook events, resolves phone numbers to helpdesk customers, applies the
// thread continuity policy, and relays content to the opposite platform.
// Bridge keeps no state between events; every handler call is independent.
type Bridge struct {
	cfg      *Config
	helpdesk HelpdeskAPI
	sms      SMSGateway
	enricher Enricher
	log      zerolog.Logger
}

// NewBridge wires the engine to its gateways. A nil enricher disables
// enrichment: resolution falls back to the bare phone number.
func NewBridge(cfg *Config, hd HelpdeskAPI, sms SMSGateway, enricher Enricher, log zerolog.Logger) *Bridge {
	if enricher == nil {
		enricher = noopEnricher{}
	}
	return &Bridge{
		cfg:      cfg,
		helpdesk: hd,
		sms:      sms,
		enricher: enricher,
		log:      log.With().Str("component", "bridge").Logger(),
	}
}

var (
	_ HelpdeskAPI = (*helpdesk.Client)(nil)
	_ SMSGateway  = (*telephony.Client)(nil)
)
