// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aiku/phonedesk-bridge/pkg/relay/textfmt"
)

// Telephony webhook event types.
const (
	EventCallCompleted           = "call.completed"
	EventCallTranscriptCompleted = "call.transcript.completed"
	EventMessageReceived         = "message.received"
)

const (
	directionIncoming = "incoming"
	directionOutgoing = "outgoing"
)

// TelephonyEvent is the webhook envelope the telephony provider posts:
// {type, data:{object}}. The object's shape depends on the type and is
// decoded by the matching handler.
type TelephonyEvent struct {
	Type string             `json:"type"`
	Data TelephonyEventData `json:"data"`
}

// TelephonyEventData wraps the type-specific event object.
type TelephonyEventData struct {
	Object json.RawMessage `json:"object"`
}

// HandleTelephonyEvent dispatches one telephony webhook event to its
// handler. Unknown event types return ErrUnhandledEvent so the caller can
// acknowledge receipt without doing any work.
func (b *Bridge) HandleTelephonyEvent(ctx context.Context, evt *TelephonyEvent) error {
	switch evt.Type {
	case EventCallCompleted:
		return b.handleCallCompleted(ctx, evt.Data.Object)
	case EventCallTranscriptCompleted:
		return b.handleCallTranscript(ctx, evt.Data.Object)
	case EventMessageReceived:
		return b.handleMessageReceived(ctx, evt.Data.Object)
	default:
		return fmt.Errorf("%w: telephony %q", ErrUnhandledEvent, evt.Type)
	}
}

type callPayload struct {
	ID          string     `json:"id"`
	Direction   string     `json:"direction"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	Status      string     `json:"status"`
	Duration    int        `json:"duration"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// counterparty returns the customer-side number of the call: the caller for
// inbound calls, the callee for outbound ones.
func (c *callPayload) counterparty() string {
	if c.Direction == directionOutgoing {
		return c.To
	}
	return c.From
}

// parseCallEvent decodes and validates a call object. Returns an
// ErrBadPayload wrap when the object is undecodable or missing the fields
// the call.completed type requires.
func parseCallEvent(data json.RawMessage) (*callPayload, error) {
	var call callPayload
	if err := json.Unmarshal(data, &call); err != nil {
		return nil, fmt.Errorf("%w: decode call object: %v", ErrBadPayload, err)
	}
	if call.counterparty() == "" {
		return nil, fmt.Errorf("%w: call %q has no counterparty number", ErrBadPayload, call.ID)
	}
	return &call, nil
}

func (b *Bridge) handleCallCompleted(ctx context.Context, data json.RawMessage) error {
	call, err := parseCallEvent(data)
	if err != nil {
		return err
	}

	customer, err := b.ResolveCustomer(ctx, call.counterparty())
	if err != nil {
		return err
	}

	fc := textfmt.Call{
		Direction:       call.Direction,
		Number:          customer.ExternalID,
		Status:          call.Status,
		DurationSeconds: call.Duration,
		StartedAt:       call.CreatedAt,
		EndedAt:         call.CompletedAt,
	}

	// Call threads are never reused; every completed call opens its own.
	thread, err := b.helpdesk.CreateThread(ctx, customer.ID, textfmt.CallTitle(fc))
	if err != nil {
		return fmt.Errorf("%w: create call thread: %v", ErrUpstreamUnavailable, err)
	}
	if err := b.helpdesk.CreateThreadEvent(ctx, thread.ID, "Call summary", textfmt.CallSummary(fc)); err != nil {
		return fmt.Errorf("%w: append call summary: %v", ErrUpstreamUnavailable, err)
	}

	b.log.Info().
		Str("call_id", call.ID).
		Str("thread_id", thread.ID).
		Str("customer_id", customer.ID).
		Msg("Relayed call summary")
	return nil
}

type transcriptPayload struct {
	CallID   string            `json:"callId"`
	Status   string            `json:"status"`
	Dialogue []dialogueSegment `json:"dialogue"`
}

type dialogueSegment struct {
	Identifier string  `json:"identifier"`
	Content    string  `json:"content"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
}

// parseTranscriptEvent decodes and validates a transcript object.
func parseTranscriptEvent(data json.RawMessage) (*transcriptPayload, error) {
	var transcript transcriptPayload
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("%w: decode transcript object: %v", ErrBadPayload, err)
	}
	if transcript.CallID == "" {
		return nil, fmt.Errorf("%w: transcript has no call id", ErrBadPayload)
	}
	return &transcript, nil
}

// handleCallTranscript records a completed transcript in the log. Delivery
// into a thread is deliberately out of scope for now.
func (b *Bridge) handleCallTranscript(_ context.Context, data json.RawMessage) error {
	transcript, err := parseTranscriptEvent(data)
	if err != nil {
		return err
	}

	segments := make([]textfmt.Segment, 0, len(transcript.Dialogue))
	for _, d := range transcript.Dialogue {
		segments = append(segments, textfmt.Segment{Speaker: d.Identifier, Text: d.Content})
	}

	b.log.Info().
		Str("call_id", transcript.CallID).
		Int("segments", len(segments)).
		Str("transcript", textfmt.Transcript(segments)).
		Msg("Call transcript completed")
	return nil
}

type messagePayload struct {
	ID        string            `json:"id"`
	From      string            `json:"from"`
	To        []string          `json:"to"`
	Direction string            `json:"direction"`
	Text      string            `json:"text"`
	Media     []mediaAttachment `json:"media,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

type mediaAttachment struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// parseMessageEvent decodes and validates a message object. Returns
// (nil, nil) to skip outbound-direction messages: only messages sent by the
// customer are relayed, and the provider mirrors the bridge's own API sends
// back on the same webhook.
func (b *Bridge) parseMessageEvent(data json.RawMessage) (*messagePayload, error) {
	var msg messagePayload
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: decode message object: %v", ErrBadPayload, err)
	}

	// Echo prevention: skip outgoing messages.
	if msg.Direction == directionOutgoing {
		b.log.Debug().
			Str("message_id", msg.ID).
			Msg("Skipping outgoing message (echo prevention)")
		return nil, nil
	}

	if msg.From == "" {
		return nil, fmt.Errorf("%w: message %q has no sender number", ErrBadPayload, msg.ID)
	}
	return &msg, nil
}

func (b *Bridge) handleMessageReceived(ctx context.Context, data json.RawMessage) error {
	msg, err := b.parseMessageEvent(data)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}

	customer, err := b.ResolveCustomer(ctx, msg.From)
	if err != nil {
		return err
	}

	thread, err := b.findReusableThread(ctx, customer.ID)
	if err != nil {
		return err
	}
	if thread == nil {
		thread, err = b.helpdesk.CreateThread(ctx, customer.ID, textfmt.ThreadTitle(customer.ExternalID))
		if err != nil {
			return fmt.Errorf("%w: create message thread: %v", ErrUpstreamUnavailable, err)
		}
	}

	media := make([]textfmt.Media, 0, len(msg.Media))
	for _, m := range msg.Media {
		media = append(media, textfmt.Media{Type: m.Type, URL: m.URL})
	}

	if err := b.helpdesk.SendMessageAsCustomer(ctx, customer.ID, thread.ID, textfmt.MessageBody(msg.Text, media)); err != nil {
		return fmt.Errorf("%w: relay message: %v", ErrUpstreamUnavailable, err)
	}

	b.log.Info().
		Str("message_id", msg.ID).
		Str("thread_id", thread.ID).
		Str("customer_id", customer.ID).
		Int("media", len(msg.Media)).
		Msg("Relayed inbound message")
	return nil
}
