// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registration

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the registration service configuration. Values come from
// the environment via LoadConfig; tests build Config directly.
type Config struct {
	// Port is the HTTP listen port.
	Port int

	// DataDir is the BadgerDB directory.
	DataDir string

	// LogDir receives the JSON log files. Empty disables file logging.
	LogDir string

	// LogLevel is debug, info, warn, or error.
	LogLevel string

	// SquareEnvironment selects which signature secret verifies
	// deliveries: "production" or "sandbox".
	SquareEnvironment string

	// SquareWebhookSecret is the production signature secret.
	SquareWebhookSecret string

	// SquareWebhookSecretSandbox is the sandbox signature secret.
	SquareWebhookSecretSandbox string

	// SquareNotificationURL is the exact URL configured on the Square
	// webhook subscription; it is part of the signed payload.
	SquareNotificationURL string

	// AdminToken guards /v1/admin. Empty disables the admin surface.
	AdminToken string

	// QueueCapacity bounds the webhook priority queue.
	QueueCapacity int

	// Workers is the webhook worker pool size.
	Workers int

	// HoldTTL is how long a pending registration keeps its inventory.
	HoldTTL time.Duration

	// SweepInterval is how often the hold-expiry sweep runs.
	SweepInterval time.Duration

	// IdempotencyTTL is how long webhook event ids stay in the seen set.
	IdempotencyTTL time.Duration

	// ContentSeedPath is the YAML content seed file. Empty disables
	// seeding.
	ContentSeedPath string

	// WebhookRPS and WebhookBurst bound the webhook endpoint per IP.
	WebhookRPS   float64
	WebhookBurst int

	// TracingEnabled turns on OTLP trace export.
	TracingEnabled bool

	// OTLPEndpoint is the trace collector address (host:port).
	OTLPEndpoint string
}

// LoadConfig reads configuration from the environment and applies
// defaults. It does not validate; Validate does.
func LoadConfig() Config {
	return Config{
		Port:                       envInt("FD_PORT", 8080),
		DataDir:                    envStr("FD_DATA_DIR", "./data"),
		LogDir:                     os.Getenv("FD_LOG_DIR"),
		LogLevel:                   envStr("FD_LOG_LEVEL", "info"),
		SquareEnvironment:          envStr("SQUARE_ENVIRONMENT", "sandbox"),
		SquareWebhookSecret:        os.Getenv("SQUARE_WEBHOOK_SECRET"),
		SquareWebhookSecretSandbox: os.Getenv("SQUARE_WEBHOOK_SECRET_SANDBOX"),
		SquareNotificationURL:      os.Getenv("SQUARE_NOTIFICATION_URL"),
		AdminToken:                 os.Getenv("ADMIN_API_TOKEN"),
		QueueCapacity:              envInt("FD_QUEUE_CAPACITY", 1024),
		Workers:                    envInt("FD_WORKERS", 4),
		HoldTTL:                    envDuration("FD_HOLD_TTL", 30*time.Minute),
		SweepInterval:              envDuration("FD_SWEEP_INTERVAL", time.Minute),
		IdempotencyTTL:             envDuration("FD_IDEMPOTENCY_TTL", 72*time.Hour),
		ContentSeedPath:            os.Getenv("FD_CONTENT_SEED"),
		WebhookRPS:                 envFloat("FD_WEBHOOK_RPS", 10),
		WebhookBurst:               envInt("FD_WEBHOOK_BURST", 20),
		TracingEnabled:             envBool("FD_TRACING_ENABLED", false),
		OTLPEndpoint:               envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
}

// WebhookSecret returns the signature secret for the configured Square
// environment.
func (c Config) WebhookSecret() string {
	if c.SquareEnvironment == "production" {
		return c.SquareWebhookSecret
	}
	return c.SquareWebhookSecretSandbox
}

// Validate checks that the configuration can start a service.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.SquareEnvironment != "production" && c.SquareEnvironment != "sandbox" {
		return fmt.Errorf("square environment must be production or sandbox, got %q", c.SquareEnvironment)
	}
	if c.WebhookSecret() == "" {
		return fmt.Errorf("webhook signature secret for %s environment is required", c.SquareEnvironment)
	}
	if c.SquareNotificationURL == "" {
		return fmt.Errorf("square notification url is required")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
