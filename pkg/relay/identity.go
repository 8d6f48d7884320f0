// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog"
	"go.mau.fi/util/ptr"

	"github.com/aiku/phonedesk-bridge/pkg/crm"
	"github.com/aiku/phonedesk-bridge/pkg/helpdesk"
)

// normalizePhone canonicalizes raw into E.164 so every textual form of one
// number maps to one customer identity. Numbers without an international
// prefix are parsed against defaultRegion.
func normalizePhone(raw, defaultRegion string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty phone number", ErrInvalidIdentity)
	}
	num, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidIdentity, raw, err)
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return "", fmt.Errorf("%w: %q is not a possible number", ErrInvalidIdentity, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// placeholderEmail derives a deterministic fallback address for customers
// the CRM knows nothing about. The helpdesk requires an email on create.
func placeholderEmail(number, domain string) string {
	return strings.TrimPrefix(number, "+") + "@" + domain
}

// ResolveCustomer maps a raw phone number to a helpdesk customer record.
// Enrichment is best-effort: any enricher failure degrades to the bare
// number. The upsert is ensure-exists; create-only fields never overwrite
// an existing record, so stale enrichment cannot clobber a human-edited
// name on repeat contact.
func (b *Bridge) ResolveCustomer(ctx context.Context, rawNumber string) (*helpdesk.Customer, error) {
	number, err := normalizePhone(rawNumber, b.cfg.DefaultRegion)
	if err != nil {
		return nil, err
	}

	enrichment, err := b.enricher.EnrichPhone(ctx, number)
	if err != nil {
		b.log.Warn().Err(err).Str("number", number).Msg("Enrichment failed, continuing without")
		enrichment = nil
	}

	displayName := enrichment.DisplayName()
	if displayName == "" {
		displayName = number
	}
	email := ""
	if enrichment != nil {
		email = enrichment.Email
	}
	if email == "" {
		email = placeholderEmail(number, b.cfg.PlaceholderEmailDomain)
	}

	customer, err := b.helpdesk.UpsertCustomer(ctx, helpdesk.UpsertCustomerRequest{
		ExternalID: number,
		OnCreate: helpdesk.CustomerOnCreate{
			FullName: displayName,
			Email:    ptr.Ptr(email),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: upsert customer: %v", ErrUpstreamUnavailable, err)
	}
	b.log.Debug().
		Str("number", number).
		Str("customer_id", customer.ID).
		Msg("Resolved customer")
	return customer, nil
}

// noopEnricher serves deployments without CRM credentials.
type noopEnricher struct{}

func (noopEnricher) EnrichPhone(context.Context, string) (*Enrichment, error) {
	return nil, nil
}

// CRMAPI is the slice of the CRM the enricher calls. *crm.Client implements
// it; tests substitute a fake.
type CRMAPI interface {
	SearchContactsByPhone(ctx context.Context, number string) ([]crm.Contact, error)
	SearchCompaniesByPhone(ctx context.Context, number string) ([]crm.Company, error)
}

// crmEnricher looks up identity data through CRM phone searches. The contact
// and company lookups run concurrently; a failure on either branch is
// absorbed so resolution degrades to "no enrichment" instead of aborting.
// A matched contact wins; the company name is only used when no contact
// matched.
type crmEnricher struct {
	api CRMAPI
	log zerolog.Logger
}

// NewCRMEnricher builds an Enricher backed by the CRM search API.
func NewCRMEnricher(api CRMAPI, log zerolog.Logger) Enricher {
	return &crmEnricher{
		api: api,
		log: log.With().Str("component", "crm-enricher").Logger(),
	}
}

func (e *crmEnricher) EnrichPhone(ctx context.Context, number string) (*Enrichment, error) {
	var (
		contacts   []crm.Contact
		companies  []crm.Company
		contactErr error
		companyErr error
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		contacts, contactErr = e.api.SearchContactsByPhone(ctx, number)
	}()
	go func() {
		defer wg.Done()
		companies, companyErr = e.api.SearchCompaniesByPhone(ctx, number)
	}()
	wg.Wait()

	if contactErr != nil {
		e.log.Warn().Err(contactErr).Str("number", number).Msg("CRM contact search failed")
	}
	if companyErr != nil {
		e.log.Warn().Err(companyErr).Str("number", number).Msg("CRM company search failed")
	}
	if contactErr != nil && companyErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnrichmentUnavailable, contactErr)
	}

	if contactErr == nil && len(contacts) > 0 {
		contact := contacts[0]
		return &Enrichment{
			FirstName: contact.FirstName,
			LastName:  contact.LastName,
			Email:     contact.Email,
		}, nil
	}
	if companyErr == nil && len(companies) > 0 {
		return &Enrichment{Company: companies[0].Name}, nil
	}
	return nil, nil
}

var _ CRMAPI = (*crm.Client)(nil)
