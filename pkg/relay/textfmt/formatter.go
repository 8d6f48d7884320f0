// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package textfmt renders telephony events as helpdesk-ready text.
package textfmt

import (
	"fmt"
	"strings"
	"time"
)

const directionOutgoing = "outgoing"

// Call carries the fields of a completed call needed for rendering.
type Call struct {
	Direction       string
	Number          string
	Status          string
	DurationSeconds int
	StartedAt       time.Time
	EndedAt         *time.Time
}

// Segment is one utterance of a call transcript.
type Segment struct {
	Speaker string
	Text    string
}

// Media is one message attachment, flattened to a text reference because the
// thread write API does not accept attachments as first-class objects.
type Media struct {
	Type string
	URL  string
}

// Duration renders a second count as minutes:seconds, e.g. 185 -> "3:05".
// Negative input is clamped to zero.
func Duration(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	return fmt.Sprintf("%d:%02d", totalSeconds/60, totalSeconds%60)
}

// CallTitle builds the thread title for a completed call.
func CallTitle(c Call) string {
	if c.Direction == directionOutgoing {
		return "Outbound call to " + c.Number
	}
	return "Inbound call from " + c.Number
}

// CallSummary renders the body of a call summary thread event: duration,
// direction, status, start time, and end time when present.
func CallSummary(c Call) string {
	lines := []string{
		"Duration: " + Duration(c.DurationSeconds),
		"Direction: " + c.Direction,
		"Status: " + c.Status,
	}
	if !c.StartedAt.IsZero() {
		lines = append(lines, "Started: "+c.StartedAt.UTC().Format(time.RFC3339))
	}
	if c.EndedAt != nil && !c.EndedAt.IsZero() {
		lines = append(lines, "Ended: "+c.EndedAt.UTC().Format(time.RFC3339))
	}
	return strings.Join(lines, "\n")
}

// Transcript renders dialogue segments as ordered "speaker: utterance" lines.
func Transcript(segments []Segment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		speaker := seg.Speaker
		if speaker == "" {
			speaker = "unknown"
		}
		lines = append(lines, speaker+": "+seg.Text)
	}
	return strings.Join(lines, "\n")
}

// MessageBody renders a relayed message: the original text followed by one
// "type: url" line per attachment, in attachment order.
func MessageBody(text string, media []Media) string {
	parts := make([]string, 0, len(media)+1)
	if text != "" {
		parts = append(parts, text)
	}
	for _, m := range media {
		kind := m.Type
		if kind == "" {
			kind = "media"
		}
		parts = append(parts, kind+": "+m.URL)
	}
	return strings.Join(parts, "\n")
}

// ThreadTitle builds the thread title for an SMS conversation.
func ThreadTitle(number string) string {
	return "SMS conversation with " + number
}
