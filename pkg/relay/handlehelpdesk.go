// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"fmt"

	"github.com/aiku/phonedesk-bridge/pkg/helpdesk"
)

// Helpdesk webhook event types.
const EventThreadChatSent = "thread.chat_sent"

// HelpdeskEvent is the webhook envelope the ticketing platform posts:
// {type, payload:{thread, chat}}.
type HelpdeskEvent struct {
	Type    string               `json:"type"`
	Payload HelpdeskEventPayload `json:"payload"`
}

// HelpdeskEventPayload carries the thread and chat slices of the event.
// Either may be absent depending on the event type.
type HelpdeskEventPayload struct {
	Thread *ThreadPayload `json:"thread"`
	Chat   *ChatPayload   `json:"chat"`
}

// ThreadPayload is the thread slice of a helpdesk webhook payload.
type ThreadPayload struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Customer *CustomerPayload `json:"customer"`
}

// CustomerPayload identifies the customer a thread belongs to. ExternalID
// holds the E.164 number the bridge keys customers by.
type CustomerPayload struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
}

// ChatPayload is the chat slice of a helpdesk webhook payload.
type ChatPayload struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ActorType string `json:"actorType"`
}

// HandleHelpdeskEvent dispatches one ticketing webhook event to its
// handler. Unknown event types return ErrUnhandledEvent so the caller can
// acknowledge receipt without doing any work.
func (b *Bridge) HandleHelpdeskEvent(ctx context.Context, evt *HelpdeskEvent) error {
	switch evt.Type {
	case EventThreadChatSent:
		return b.handleThreadChatSent(ctx, &evt.Payload)
	default:
		return fmt.Errorf("%w: helpdesk %q", ErrUnhandledEvent, evt.Type)
	}
}

// isRelayActor reports whether actorType is the machine identity the bridge
// itself writes with. A true result means the chat originated from a prior
// relay and must never go back out as an SMS; a miss here would loop a
// message between the platforms forever.
func isRelayActor(actorType string) bool {
	return actorType == helpdesk.ActorMachine
}

// handleThreadChatSent relays a human-authored helpdesk chat out as an SMS.
// Events without a destination number or text are normal (several chat
// shapes carry neither) and are dropped quietly.
func (b *Bridge) handleThreadChatSent(ctx context.Context, payload *HelpdeskEventPayload) error {
	thread := payload.Thread
	chat := payload.Chat
	if thread == nil || chat == nil || thread.Customer == nil {
		b.log.Debug().Msg("Chat event without thread or chat, nothing to relay")
		return nil
	}
	number := thread.Customer.ExternalID
	if number == "" || chat.Text == "" {
		b.log.Debug().
			Str("chat_id", chat.ID).
			Str("thread_id", thread.ID).
			Msg("Chat event without destination number or text, nothing to relay")
		return nil
	}

	// Echo prevention: never bounce the bridge's own writes back out.
	if isRelayActor(chat.ActorType) {
		b.log.Debug().
			Str("chat_id", chat.ID).
			Str("thread_id", thread.ID).
			Msg("Skipping relay-authored chat (echo prevention)")
		return nil
	}

	delivery, err := b.sms.SendMessage(ctx, b.cfg.FromNumber, number, chat.Text)
	if err != nil {
		return fmt.Errorf("%w: send sms: %v", ErrUpstreamUnavailable, err)
	}

	b.log.Info().
		Str("chat_id", chat.ID).
		Str("thread_id", thread.ID).
		Str("to", number).
		Str("delivery_id", delivery.ID).
		Str("delivery_status", delivery.Status).
		Msg("Relayed chat as SMS")
	return nil
}
