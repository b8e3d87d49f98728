// Package config loads service configuration from an optional YAML file and
// POS_* environment variables.
//
// Precedence, lowest first: built-in defaults, the YAML file, the
// environment. The result is checked by Validate before it is returned.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pos/internal/money"
	"github.com/roach88/pos/internal/store"
)

// Config holds all configuration for the service and the CLI.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // sqlite | postgres
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// AuthConfig lists the keys accepted in the api_key header.
// An empty list disables authentication.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

type CheckoutConfig struct {
	TaxRateBps   int64         `yaml:"tax_rate_bps"`
	ReceiptTitle string        `yaml:"receipt_title"`
	Timeout      time.Duration `yaml:"timeout"`
}

// KafkaConfig configures the outbox relay. With no brokers, events are
// logged instead of published.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       string(store.SQLite),
			DSN:          "pos.db",
			MaxOpenConns: 10,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Checkout: CheckoutConfig{
			TaxRateBps:   700,
			ReceiptTitle: "Restaurant Receipt",
			Timeout:      10 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:        "pos.orders",
			PollInterval: time.Second,
			BatchSize:    100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from path (skipped when empty) and the
// process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return c.parse(data)
}

// parse decodes YAML over c. Unknown keys are rejected so typos surface.
func (c *Config) parse(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from POS_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get("POS_DB_DRIVER"); ok {
		c.Database.Driver = v
	}
	if v, ok := get("POS_DB_DSN"); ok {
		c.Database.DSN = v
	}
	if v, ok := get("POS_HTTP_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := get("POS_TAX_RATE"); ok {
		r, err := money.ParseRate(v)
		if err != nil {
			return fmt.Errorf("POS_TAX_RATE: %w", err)
		}
		c.Checkout.TaxRateBps = int64(r)
	}
	if v, ok := get("POS_TAX_RATE_BPS"); ok {
		bps, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("POS_TAX_RATE_BPS: %w", err)
		}
		c.Checkout.TaxRateBps = bps
	}
	if v, ok := get("POS_KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}
	if v, ok := get("POS_API_KEYS"); ok {
		c.Auth.APIKeys = splitList(v)
	}
	if v, ok := get("POS_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return nil
}

func splitList(csv string) []string {
	out := []string{}
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, ok := store.ParseDialect(c.Database.Driver); !ok {
		return fmt.Errorf("database.driver %q: must be sqlite or postgres", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Checkout.TaxRateBps < 0 || c.Checkout.TaxRateBps > money.BasisPoints {
		return fmt.Errorf("checkout.tax_rate_bps %d: must be between 0 and %d", c.Checkout.TaxRateBps, money.BasisPoints)
	}
	if c.Checkout.Timeout <= 0 {
		return fmt.Errorf("checkout.timeout must be positive")
	}
	if c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required")
	}
	if c.Kafka.BatchSize <= 0 {
		return fmt.Errorf("kafka.batch_size must be positive")
	}
	if c.Kafka.PollInterval <= 0 {
		return fmt.Errorf("kafka.poll_interval must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}
	return nil
}

// StoreConfig returns the store settings.
func (c *Config) StoreConfig() store.Config {
	d, _ := store.ParseDialect(c.Database.Driver)
	return store.Config{Driver: d, DSN: c.Database.DSN, MaxOpenConns: c.Database.MaxOpenConns}
}

// TaxRate returns the checkout tax rate.
func (c *Config) TaxRate() money.Rate {
	return money.Rate(c.Checkout.TaxRateBps)
}
