// Package config provides server configuration loaded from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds procurement assistant configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL. Empty runs HTTP only.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"procurement-assistant"`

	// Subjects
	RouterSubject string `envconfig:"ROUTER_SUBJECT" default:"procurement.router.v1"`
	ChatSubject   string `envconfig:"CHAT_SUBJECT" default:"procurement.chat.v1"`
	EventSubject  string `envconfig:"EVENT_SUBJECT" default:"procurement.events"`

	// Timeouts
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"25s"`

	// Agent cards and worker data (empty = built-in defaults)
	CardsDir    string `envconfig:"CARDS_DIR"`
	CatalogFile string `envconfig:"CATALOG_FILE"`
	POOutputDir string `envconfig:"PO_OUTPUT_DIR"`

	// Database (empty = in-memory session store)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH"`

	// HTTP
	HTTPAddr           string        `envconfig:"HTTP_ADDR"`
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Session cache
	SessionCacheMaxCost int64         `envconfig:"SESSION_CACHE_MAX_COST" default:"67108864"`
	SessionCacheTTL     time.Duration `envconfig:"SESSION_CACHE_TTL" default:"10m"`

	// Validation
	ValidationMaxConcurrent int           `envconfig:"VALIDATION_MAX_CONCURRENT" default:"5"`
	ValidationTimeout       time.Duration `envconfig:"VALIDATION_TIMEOUT" default:"30s"`
	ValidationThreshold     float64       `envconfig:"VALIDATION_THRESHOLD" default:"10000"`

	// Approval gates
	GatesEnabled       bool    `envconfig:"GATES_ENABLED" default:"true"`
	HighValueThreshold float64 `envconfig:"HIGH_VALUE_THRESHOLD" default:"10000"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the server.
func (c *Config) ValidateForServe() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.HTTPAddr == "" && (c.HTTPPort <= 0 || c.HTTPPort > 65535) {
		return fmt.Errorf("%s - HTTP_PORT must be between 1 and 65535", logPrefix)
	}
	if c.ValidationMaxConcurrent <= 0 {
		return fmt.Errorf("%s - VALIDATION_MAX_CONCURRENT must be positive", logPrefix)
	}
	if c.HighValueThreshold < 0 || c.ValidationThreshold < 0 {
		return fmt.Errorf("%s - thresholds must not be negative", logPrefix)
	}
	if c.DatabaseURL != "" && c.SessionCacheMaxCost <= 0 {
		return fmt.Errorf("%s - SESSION_CACHE_MAX_COST must be positive", logPrefix)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s - LOG_LEVEL %q is not one of debug, info, warn, error", logPrefix, c.LogLevel)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear, ensure-db).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// ListenAddr returns HTTP_ADDR, or ":HTTP_PORT" when it is unset.
func (c *Config) ListenAddr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}
