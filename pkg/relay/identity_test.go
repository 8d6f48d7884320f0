// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aiku/phonedesk-bridge/pkg/crm"
)

// fakeCRM implements CRMAPI with canned search results.
type fakeCRM struct {
	contacts   []crm.Contact
	companies  []crm.Company
	contactErr error
	companyErr error
}

func (f *fakeCRM) SearchContactsByPhone(context.Context, string) ([]crm.Contact, error) {
	return f.contacts, f.contactErr
}

func (f *fakeCRM) SearchCompaniesByPhone(context.Context, string) ([]crm.Company, error) {
	return f.companies, f.companyErr
}

// ---------------------------------------------------------------------------
// normalizePhone tests
// ---------------------------------------------------------------------------

func TestNormalizePhone(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"already_e164", "+15551234567", "+15551234567"},
		{"formatted_national", "(555) 123-4567", "+15551234567"},
		{"dashed_international", "+1-555-123-4567", "+15551234567"},
		{"spaced", " +1 555 123 4567 ", "+15551234567"},
		{"bare_national", "5551234567", "+15551234567"},
		{"uk_number", "+44 7911 123456", "+447911123456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := normalizePhone(tt.raw, "US")
			if err != nil {
				t.Fatalf("normalize %q: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("normalize %q: got %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizePhone_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace_only", "   "},
		{"letters", "not-a-number"},
		{"too_short", "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := normalizePhone(tt.raw, "US")
			if !errors.Is(err, ErrInvalidIdentity) {
				t.Fatalf("normalize %q: expected ErrInvalidIdentity, got %v", tt.raw, err)
			}
		})
	}
}

func TestPlaceholderEmail(t *testing.T) {
	t.Parallel()
	got := placeholderEmail("+15551234567", "sms.invalid")
	if got != "15551234567@sms.invalid" {
		t.Errorf("placeholder email: got %q", got)
	}
}

// ---------------------------------------------------------------------------
// Enrichment.DisplayName tests
// ---------------------------------------------------------------------------

func TestEnrichmentDisplayName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		enrichment *Enrichment
		want       string
	}{
		{"nil", nil, ""},
		{"full_name", &Enrichment{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"first_only", &Enrichment{FirstName: "Ada"}, "Ada"},
		{"last_only", &Enrichment{LastName: "Lovelace"}, "Lovelace"},
		{"company_only", &Enrichment{Company: "Acme Corp"}, "Acme Corp"},
		{"name_beats_company", &Enrichment{FirstName: "Ada", Company: "Acme Corp"}, "Ada"},
		{"empty", &Enrichment{}, ""},
	}
	for _, tt := range tests {
		if got := tt.enrichment.DisplayName(); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// ResolveCustomer tests
// ---------------------------------------------------------------------------

func TestResolveCustomer_FallbackIdentity(t *testing.T) {
	t.Parallel()
	bridge, hd, _ := newTestBridge(t)

	customer, err := bridge.ResolveCustomer(context.Background(), "(555) 123-4567")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if customer.ExternalID != "+15551234567" {
		t.Errorf("external id: got %q", customer.ExternalID)
	}
	if customer.FullName != "+15551234567" {
		t.Errorf("fallback name: got %q, want the number itself", customer.FullName)
	}
	if customer.Email != "15551234567@sms.invalid" {
		t.Errorf("placeholder email: got %q", customer.Email)
	}
	if got := hd.CallCount("upsertCustomer"); got != 1 {
		t.Errorf("upsertCustomer calls: got %d, want 1", got)
	}
}

func TestResolveCustomer_SameIdentityAcrossForms(t *testing.T) {
	t.Parallel()
	bridge, hd, _ := newTestBridge(t)
	ctx := context.Background()

	first, err := bridge.ResolveCustomer(ctx, "+1 (555) 123-4567")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := bridge.ResolveCustomer(ctx, "555-123-4567")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("customer IDs differ: %q vs %q", first.ID, second.ID)
	}
	if len(hd.Customers) != 1 {
		t.Errorf("expected 1 stored customer, got %d", len(hd.Customers))
	}
}

func TestResolveCustomer_EnrichedIdentity(t *testing.T) {
	t.Parallel()
	hd := newFakeHelpdesk()
	enricher := &fakeEnricher{Result: &Enrichment{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}}
	bridge := NewBridge(testConfig(), hd, &fakeSMS{}, enricher, zerolog.Nop())

	customer, err := bridge.ResolveCustomer(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if customer.FullName != "Ada Lovelace" {
		t.Errorf("name: got %q, want %q", customer.FullName, "Ada Lovelace")
	}
	if customer.Email != "ada@example.com" {
		t.Errorf("email: got %q, want %q", customer.Email, "ada@example.com")
	}
	if lookups := enricher.Lookups(); len(lookups) != 1 || lookups[0] != "+15551234567" {
		t.Errorf("enricher lookups: got %v, want the normalized number", lookups)
	}
}

func TestResolveCustomer_CompanyNameWithPlaceholderEmail(t *testing.T) {
	t.Parallel()
	hd := newFakeHelpdesk()
	enricher := &fakeEnricher{Result: &Enrichment{Company: "Acme Corp"}}
	bridge := NewBridge(testConfig(), hd, &fakeSMS{}, enricher, zerolog.Nop())

	customer, err := bridge.ResolveCustomer(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if customer.FullName != "Acme Corp" {
		t.Errorf("name: got %q, want %q", customer.FullName, "Acme Corp")
	}
	if customer.Email != "15551234567@sms.invalid" {
		t.Errorf("email: got %q, want the placeholder", customer.Email)
	}
}

func TestResolveCustomer_EnricherFailureAbsorbed(t *testing.T) {
	t.Parallel()
	hd := newFakeHelpdesk()
	enricher := &fakeEnricher{Err: errors.New("crm down")}
	bridge := NewBridge(testConfig(), hd, &fakeSMS{}, enricher, zerolog.Nop())

	customer, err := bridge.ResolveCustomer(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("expected enrichment failure to be absorbed, got %v", err)
	}
	if customer.FullName != "+15551234567" {
		t.Errorf("name: got %q, want the fallback", customer.FullName)
	}
}

func TestResolveCustomer_NoClobberOnRepeatContact(t *testing.T) {
	t.Parallel()
	hd := newFakeHelpdesk()
	bridge := NewBridge(testConfig(), hd, &fakeSMS{}, nil, zerolog.Nop())
	ctx := context.Background()

	if _, err := bridge.ResolveCustomer(ctx, "+15551234567"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	// A human renames the customer on the platform.
	hd.Customers["+15551234567"].FullName = "Jamie Jones"

	// Later the CRM starts matching the number to something else.
	bridge.enricher = &fakeEnricher{Result: &Enrichment{FirstName: "Wrong", LastName: "Person"}}
	customer, err := bridge.ResolveCustomer(ctx, "+15551234567")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if customer.FullName != "Jamie Jones" {
		t.Errorf("name: got %q, want the human-edited %q kept", customer.FullName, "Jamie Jones")
	}
}

func TestResolveCustomer_UpsertFailure(t *testing.T) {
	t.Parallel()
	bridge, hd, _ := newTestBridge(t)
	hd.FailOps["upsertCustomer"] = true

	_, err := bridge.ResolveCustomer(context.Background(), "+15551234567")

	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// crmEnricher tests
// ---------------------------------------------------------------------------

func TestCRMEnricher_ContactPreferred(t *testing.T) {
	t.Parallel()
	enricher := NewCRMEnricher(&fakeCRM{
		contacts:  []crm.Contact{{ID: "c1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}},
		companies: []crm.Company{{ID: "co1", Name: "Acme Corp"}},
	}, zerolog.Nop())

	enrichment, err := enricher.EnrichPhone(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if enrichment == nil || enrichment.FirstName != "Ada" || enrichment.Company != "" {
		t.Errorf("expected the contact to win, got %+v", enrichment)
	}
}

func TestCRMEnricher_CompanyWhenNoContact(t *testing.T) {
	t.Parallel()
	enricher := NewCRMEnricher(&fakeCRM{
		companies: []crm.Company{{ID: "co1", Name: "Acme Corp"}},
	}, zerolog.Nop())

	enrichment, err := enricher.EnrichPhone(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if enrichment == nil || enrichment.Company != "Acme Corp" {
		t.Errorf("expected the company name, got %+v", enrichment)
	}
}

func TestCRMEnricher_NoMatches(t *testing.T) {
	t.Parallel()
	enricher := NewCRMEnricher(&fakeCRM{}, zerolog.Nop())

	enrichment, err := enricher.EnrichPhone(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if enrichment != nil {
		t.Errorf("expected nil enrichment, got %+v", enrichment)
	}
}

func TestCRMEnricher_OneBranchFailure(t *testing.T) {
	t.Parallel()
	enricher := NewCRMEnricher(&fakeCRM{
		contactErr: errors.New("contact search down"),
		companies:  []crm.Company{{ID: "co1", Name: "Acme Corp"}},
	}, zerolog.Nop())

	enrichment, err := enricher.EnrichPhone(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("expected surviving branch to serve, got %v", err)
	}
	if enrichment == nil || enrichment.Company != "Acme Corp" {
		t.Errorf("expected the company enrichment, got %+v", enrichment)
	}
}

func TestCRMEnricher_BothBranchesFail(t *testing.T) {
	t.Parallel()
	enricher := NewCRMEnricher(&fakeCRM{
		contactErr: errors.New("contact search down"),
		companyErr: errors.New("company search down"),
	}, zerolog.Nop())

	_, err := enricher.EnrichPhone(context.Background(), "+15551234567")

	if !errors.Is(err, ErrEnrichmentUnavailable) {
		t.Fatalf("expected ErrEnrichmentUnavailable, got %v", err)
	}
}
