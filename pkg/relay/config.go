// Copyright 2024-2026 Aiku AI

package relay

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	up "go.mau.fi/util/configupgrade"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

const defaultContinuityWindow = 12 * time.Hour

// Config holds the bridge configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`

	TelephonyBaseURL string `yaml:"telephony_base_url"`
	TelephonyAPIKey  string `yaml:"telephony_api_key"`
	// FromNumber is the fixed outbound number all relayed SMS are sent
	// from. Normalized to E.164 by PostProcess.
	FromNumber string `yaml:"from_number"`

	HelpdeskBaseURL string `yaml:"helpdesk_base_url"`
	HelpdeskAPIKey  string `yaml:"helpdesk_api_key"`

	// CRM credentials are optional. An empty token disables enrichment
	// without disabling the bridge.
	CRMBaseURL string `yaml:"crm_base_url"`
	CRMToken   string `yaml:"crm_token"`

	// ContinuityWindow is how recently a thread must have been updated to
	// be reused for a new inbound message. A Go duration string; empty
	// means 12h.
	ContinuityWindow string `yaml:"continuity_window"`
	// DefaultRegion is the region numbers without an international prefix
	// are parsed against.
	DefaultRegion string `yaml:"default_region"`
	// PlaceholderEmailDomain is the domain of the deterministic fallback
	// email derived from a phone number when the CRM yields none.
	PlaceholderEmailDomain string `yaml:"placeholder_email_domain"`

	continuityWindow time.Duration `yaml:"-"`
	logLevel         zerolog.Level `yaml:"-"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess fills defaults, parses derived fields, and validates that the
// bridge can actually run with this configuration.
func (c *Config) PostProcess() error {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.DefaultRegion == "" {
		c.DefaultRegion = "US"
	}
	if c.PlaceholderEmailDomain == "" {
		c.PlaceholderEmailDomain = "sms.invalid"
	}

	if c.LogLevel == "" {
		c.logLevel = zerolog.InfoLevel
	} else {
		level, err := zerolog.ParseLevel(c.LogLevel)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		c.logLevel = level
	}

	if c.ContinuityWindow == "" {
		c.continuityWindow = defaultContinuityWindow
	} else {
		window, err := time.ParseDuration(c.ContinuityWindow)
		if err != nil {
			return fmt.Errorf("continuity_window: %w", err)
		}
		if window <= 0 {
			return fmt.Errorf("continuity_window must be positive, got %s", window)
		}
		c.continuityWindow = window
	}

	if c.TelephonyAPIKey == "" {
		return fmt.Errorf("telephony_api_key is required")
	}
	if c.HelpdeskAPIKey == "" {
		return fmt.Errorf("helpdesk_api_key is required")
	}
	if c.FromNumber == "" {
		return fmt.Errorf("from_number is required")
	}
	normalized, err := normalizePhone(c.FromNumber, c.DefaultRegion)
	if err != nil {
		return fmt.Errorf("from_number: %w", err)
	}
	c.FromNumber = normalized
	return nil
}

// Window returns the parsed continuity window. Valid after PostProcess.
func (c *Config) Window() time.Duration {
	if c.continuityWindow == 0 {
		return defaultContinuityWindow
	}
	return c.continuityWindow
}

// Level returns the parsed log level. Valid after PostProcess.
func (c *Config) Level() zerolog.Level {
	return c.logLevel
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "listen_addr")
	helper.Copy(up.Str, "log_level")
	helper.Copy(up.Str, "telephony_base_url")
	helper.Copy(up.Str, "telephony_api_key")
	helper.Copy(up.Str, "from_number")
	helper.Copy(up.Str, "helpdesk_base_url")
	helper.Copy(up.Str, "helpdesk_api_key")
	helper.Copy(up.Str, "crm_base_url")
	helper.Copy(up.Str, "crm_token")
	helper.Copy(up.Str, "continuity_window")
	helper.Copy(up.Str, "default_region")
	helper.Copy(up.Str, "placeholder_email_domain")
}

// LoadConfig reads the YAML file at path, merges it over the embedded example
// config, applies PHONEDESK_* environment overrides, and validates the
// result. An empty path skips the file and configures from defaults plus
// environment only.
func LoadConfig(path string) (*Config, error) {
	var baseNode yaml.Node
	if err := yaml.Unmarshal([]byte(ExampleConfig), &baseNode); err != nil {
		return nil, fmt.Errorf("parse embedded example config: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var userNode yaml.Node
		if err := yaml.Unmarshal(data, &userNode); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		helper := up.NewHelper(&baseNode, &userNode)
		upgradeConfig(helper)
	}

	var cfg Config
	if err := baseNode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyEnvOverrides(&cfg)
	if err := cfg.PostProcess(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&cfg.ListenAddr, "PHONEDESK_LISTEN_ADDR")
	override(&cfg.LogLevel, "PHONEDESK_LOG_LEVEL")
	override(&cfg.TelephonyBaseURL, "PHONEDESK_TELEPHONY_BASE_URL")
	override(&cfg.TelephonyAPIKey, "PHONEDESK_TELEPHONY_API_KEY")
	override(&cfg.FromNumber, "PHONEDESK_FROM_NUMBER")
	override(&cfg.HelpdeskBaseURL, "PHONEDESK_HELPDESK_BASE_URL")
	override(&cfg.HelpdeskAPIKey, "PHONEDESK_HELPDESK_API_KEY")
	override(&cfg.CRMBaseURL, "PHONEDESK_CRM_BASE_URL")
	override(&cfg.CRMToken, "PHONEDESK_CRM_TOKEN")
	override(&cfg.ContinuityWindow, "PHONEDESK_CONTINUITY_WINDOW")
	override(&cfg.DefaultRegion, "PHONEDESK_DEFAULT_REGION")
	override(&cfg.PlaceholderEmailDomain, "PHONEDESK_PLACEHOLDER_EMAIL_DOMAIN")
}
