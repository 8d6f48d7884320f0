// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command phonedesk-bridge relays customer conversations between a telephony
// provider and a helpdesk platform. Completed calls, transcripts and inbound
// SMS messages flow into helpdesk threads; agent replies flow back out as
// SMS from a single fixed number.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aiku/phonedesk-bridge/pkg/crm"
	"github.com/aiku/phonedesk-bridge/pkg/helpdesk"
	"github.com/aiku/phonedesk-bridge/pkg/relay"
	"github.com/aiku/phonedesk-bridge/pkg/telephony"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "phonedesk-bridge",
	Short: "Telephony-helpdesk conversation bridge",
	RunE:  runServe,
}

var genconfigCmd = &cobra.Command{
	Use:   "genconfig",
	Short: "Print the example config file",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(relay.ExampleConfig)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("phonedesk-bridge %s (commit %s, built %s)\n", Tag, Commit, BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to the config file (optional, PHONEDESK_* env vars apply either way)")
	rootCmd.AddCommand(genconfigCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := relay.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(cfg.Level()).
		With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
	log.Info().
		Str("tag", Tag).
		Str("commit", Commit).
		Msg("Starting phonedesk-bridge")

	hd := helpdesk.NewClient(helpdesk.Options{
		BaseURL: cfg.HelpdeskBaseURL,
		APIKey:  cfg.HelpdeskAPIKey,
		Logger:  log,
	})
	sms := telephony.NewClient(telephony.Options{
		BaseURL: cfg.TelephonyBaseURL,
		APIKey:  cfg.TelephonyAPIKey,
		Logger:  log,
	})

	var enricher relay.Enricher
	if cfg.CRMToken != "" {
		enricher = relay.NewCRMEnricher(crm.NewClient(crm.Options{
			BaseURL: cfg.CRMBaseURL,
			Token:   cfg.CRMToken,
			Logger:  log,
		}), log)
	} else {
		log.Info().Msg("No CRM token configured, identity enrichment disabled")
	}

	bridge := relay.NewBridge(cfg, hd, sms, enricher, log)
	server := relay.NewServer(bridge, cfg.ListenAddr, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
