// Copyright 2024-2026 Aiku AI

package relay

import "errors"

// Sentinel errors classifying every way an inbound event can fail. Handlers
// wrap these with fmt.Errorf("%w: ...") and the webhook server maps them to
// HTTP outcomes with errors.Is.
var (
	// ErrBadPayload marks a malformed inbound envelope or event object.
	// Acknowledged to the sender (retrying a permanently bad payload is
	// pointless) and logged at error level.
	ErrBadPayload = errors.New("bad payload")

	// ErrUnhandledEvent marks a well-formed envelope whose type has no
	// handler. Acknowledged and dropped without any outbound call.
	ErrUnhandledEvent = errors.New("unhandled event type")

	// ErrInvalidIdentity marks a counterparty value that does not parse as
	// a phone number. Fatal for the event.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrUpstreamUnavailable marks a failed helpdesk or telephony call.
	// Fatal for the event and surfaced as a 500 so the sender's own retry
	// policy applies.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrEnrichmentUnavailable marks a CRM lookup that produced nothing
	// usable. Never fatal; the identity resolver absorbs it.
	ErrEnrichmentUnavailable = errors.New("enrichment unavailable")
)
