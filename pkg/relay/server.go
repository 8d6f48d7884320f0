// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxWebhookBodySize is the maximum allowed webhook request body (1 MB).
const maxWebhookBodySize = 1 << 20

// Server exposes the bridge over HTTP: one webhook endpoint per platform
// plus a liveness probe.
type Server struct {
	bridge *Bridge
	log    zerolog.Logger
	srv    *http.Server
}

// NewServer wires a Bridge into an HTTP server listening on addr.
func NewServer(bridge *Bridge, addr string, log zerolog.Logger) *Server {
	s := &Server{
		bridge: bridge,
		log:    log.With().Str("component", "webhook-server").Logger(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/telephony", s.handleTelephonyWebhook)
	mux.HandleFunc("/webhooks/ticketing", s.handleTicketingWebhook)
	mux.HandleFunc("/healthz", s.handleHealth)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the server's root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start begins serving webhooks. It blocks until the listener fails or
// Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("Starting webhook server")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight webhook deliveries and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleTelephonyWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log := s.log.With().Str("delivery_id", uuid.NewString()).Logger()

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var evt TelephonyEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		s.writeOutcome(w, log, fmt.Errorf("%w: decode telephony envelope: %v", ErrBadPayload, err))
		return
	}

	log.Debug().
		Str("event_type", evt.Type).
		Str("remote_addr", r.RemoteAddr).
		Msg("Received telephony webhook")
	s.writeOutcome(w, log, s.bridge.HandleTelephonyEvent(r.Context(), &evt))
}

func (s *Server) handleTicketingWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log := s.log.With().Str("delivery_id", uuid.NewString()).Logger()

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var evt HelpdeskEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		s.writeOutcome(w, log, fmt.Errorf("%w: decode helpdesk envelope: %v", ErrBadPayload, err))
		return
	}

	log.Debug().
		Str("event_type", evt.Type).
		Str("remote_addr", r.RemoteAddr).
		Msg("Received ticketing webhook")
	s.writeOutcome(w, log, s.bridge.HandleHelpdeskEvent(r.Context(), &evt))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode health response")
	}
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	return body, true
}

// writeOutcome maps a handler result onto the HTTP response. Handled
// events, unknown event types and bad payloads are all acknowledged with
// 200 so the platforms do not retry them; only processing failures get a
// 500, which asks the sender to redeliver.
func (s *Server) writeOutcome(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrUnhandledEvent):
		log.Debug().Err(err).Msg("Unhandled event type")
	case errors.Is(err, ErrBadPayload):
		log.Error().Err(err).Msg("Rejected malformed webhook payload")
	default:
		log.Error().Err(err).Msg("Webhook processing failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, "OK"); err != nil {
		log.Warn().Err(err).Msg("Failed to write webhook response")
	}
}
