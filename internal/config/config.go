package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// Roles a broadcast may target. The role column is free text in the user
// store; validating here keeps a typo from silently matching zero users.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Payments  PaymentsConfig  `yaml:"payments"`
	Announce  AnnounceConfig  `yaml:"announcements"`
	Report    ReportConfig    `yaml:"report"`
}

type TelegramConfig struct {
	// Token is usually left empty here and supplied via BOT_TOKEN.
	Token       string   `yaml:"token"`
	PollTimeout Duration `yaml:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `yaml:"level"`
	Console bool        `yaml:"console"`
	File    LoggingFile `yaml:"file"`
}

type LoggingFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type StorageConfig struct {
	Path        string   `yaml:"path"`
	BusyTimeout Duration `yaml:"busy_timeout"`
}

// BroadcastConfig tunes the dispatch engine. ChunkSize and Pacing default
// to Telegram's documented ~30 msg/s ceiling; raise them at your own risk.
type BroadcastConfig struct {
	Role      string   `yaml:"role"`
	Limit     int      `yaml:"limit"`
	ChunkSize int      `yaml:"chunk_size"`
	Pacing    Duration `yaml:"pacing"`
}

type WebhookConfig struct {
	Addr string `yaml:"addr"`
	// SecretKey is usually left empty here and supplied via PRODAMUS_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
}

type PaymentsConfig struct {
	PaymentURL string  `yaml:"payment_url"`
	Amount     float64 `yaml:"amount"`
}

type AnnounceConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

type ReportConfig struct {
	Enabled bool `yaml:"enabled"`
	// Schedule is a standard 5-field cron spec.
	Schedule string `yaml:"schedule"`
}

// Duration is a yaml-friendly wrapper around time.Duration accepting
// Go duration strings ("500ms", "10s", "1m").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

// Load reads the YAML config at path, overlays environment secrets,
// applies defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes raw YAML bytes. Unknown keys are rejected so removed or
// misspelled options are caught early.
func Parse(b []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("PRODAMUS_SECRET_KEY"); v != "" {
		c.Webhook.SecretKey = v
	}
	if v := os.Getenv("ROLE_FOR_BROADCAST"); v != "" {
		c.Broadcast.Role = v
	}
	if v := os.Getenv("BROADCAST_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Broadcast.Limit = n
		}
	}
	if v := os.Getenv("STRAPI_URL"); v != "" {
		c.Announce.BaseURL = v
	}
	if v := os.Getenv("PAYMENT_URL"); v != "" {
		c.Payments.PaymentURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Webhook.Addr = ":" + strings.TrimPrefix(v, ":")
	}
}

func (c *Config) applyDefaults() {
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = Duration(10 * time.Second)
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = "./data/skufbot.db"
	}
	if c.Storage.BusyTimeout <= 0 {
		c.Storage.BusyTimeout = Duration(5 * time.Second)
	}
	if strings.TrimSpace(c.Broadcast.Role) == "" {
		c.Broadcast.Role = RoleClient
	}
	if c.Broadcast.Limit <= 0 {
		c.Broadcast.Limit = 10000
	}
	if c.Broadcast.ChunkSize <= 0 {
		c.Broadcast.ChunkSize = 30
	}
	if c.Broadcast.Pacing <= 0 {
		c.Broadcast.Pacing = Duration(time.Second)
	}
	if strings.TrimSpace(c.Webhook.Addr) == "" {
		c.Webhook.Addr = ":5000"
	}
	if c.Announce.Timeout <= 0 {
		c.Announce.Timeout = Duration(8 * time.Second)
	}
	if strings.TrimSpace(c.Report.Schedule) == "" {
		c.Report.Schedule = "0 9 * * *"
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram token is empty (set telegram.token or BOT_TOKEN)")
	}
	switch c.Broadcast.Role {
	case RoleClient, RoleAdmin:
	default:
		return fmt.Errorf("broadcast.role %q is not one of [%s %s]", c.Broadcast.Role, RoleClient, RoleAdmin)
	}
	return nil
}
