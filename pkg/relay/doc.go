// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package relay synchronizes customer conversations between a telephony
// provider and a helpdesk platform. Completed calls, call transcripts and
// inbound SMS messages flow into helpdesk threads; human-authored helpdesk
// chats flow back out as SMS from a single fixed number.
//
// Customers are keyed by E.164 phone number on both sides. An inbound SMS
// reuses the customer's most recent thread when that thread was updated
// less than the configured continuity window ago (12 hours by default);
// otherwise it opens a new one. Completed calls always open a new thread.
//
// # Core Types
//
// [Bridge] holds the relay logic: event dispatch, identity resolution,
// thread continuity and the per-event handlers. It talks to the outside
// world only through the [HelpdeskAPI], [SMSGateway] and [Enricher]
// interfaces, which the clients in pkg/helpdesk, pkg/telephony and pkg/crm
// satisfy.
//
// [Server] is the HTTP face of the bridge: one webhook endpoint per
// platform plus a liveness probe. Webhook outcomes map onto exactly two
// response classes, 200 for anything acknowledged (handled, unhandled or
// malformed) and 500 for processing failures the sender should redeliver.
//
// [Config] is the YAML- and environment-driven runtime configuration.
//
// # Echo Prevention
//
// The bridge uses layered echo prevention to avoid relaying its own writes
// back and forth forever. Helpdesk chats authored by the machine actor are
// suppressed before any SMS send, and telephony message events with an
// outgoing direction are skipped before any thread write. These layers must
// not be simplified or removed.
//
// # Sub-packages
//
//   - textfmt renders calls, transcripts and messages as helpdesk-ready text.
package relay
