package config

import (
	"os"
	"testing"
	"time"
)

var allKeys = []string{
	"COMMS_URL", "SERVICE_NAME", "ROUTER_SUBJECT", "CHAT_SUBJECT", "EVENT_SUBJECT",
	"REQUEST_TIMEOUT", "CARDS_DIR", "CATALOG_FILE", "PO_OUTPUT_DIR",
	"DATABASE_URL", "RUN_MIGRATIONS", "MIGRATION_PATH",
	"HTTP_ADDR", "HTTP_PORT", "HEALTH_CHECK_TIMEOUT",
	"SESSION_CACHE_MAX_COST", "SESSION_CACHE_TTL",
	"VALIDATION_MAX_CONCURRENT", "VALIDATION_TIMEOUT", "VALIDATION_THRESHOLD",
	"GATES_ENABLED", "HIGH_VALUE_THRESHOLD", "LOG_LEVEL",
}

// clearEnv unsets every key for the duration of the test. envconfig applies defaults
// only to unset keys, not to empty ones.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		if prev, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, prev) })
		}
		os.Unsetenv(key)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - COMMSURL = %q, want %q", cfg.COMMSURL, "nats://127.0.0.1:4222")
	}
	if cfg.COMMSName != "procurement-assistant" {
		t.Errorf("config:config_test - COMMSName = %q, want %q", cfg.COMMSName, "procurement-assistant")
	}
	if cfg.RouterSubject != "procurement.router.v1" || cfg.ChatSubject != "procurement.chat.v1" || cfg.EventSubject != "procurement.events" {
		t.Errorf("config:config_test - subjects = %q %q %q", cfg.RouterSubject, cfg.ChatSubject, cfg.EventSubject)
	}
	if cfg.RequestTimeout != 25*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v, want 25s", cfg.RequestTimeout)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("config:config_test - DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.RunMigrations {
		t.Error("config:config_test - expected RunMigrations=false by default")
	}
	if cfg.HTTPPort != 8080 || cfg.ListenAddr() != ":8080" {
		t.Errorf("config:config_test - HTTPPort = %d, ListenAddr = %q", cfg.HTTPPort, cfg.ListenAddr())
	}
	if cfg.SessionCacheMaxCost != 64<<20 || cfg.SessionCacheTTL != 10*time.Minute {
		t.Errorf("config:config_test - session cache = %d / %v", cfg.SessionCacheMaxCost, cfg.SessionCacheTTL)
	}
	if cfg.ValidationMaxConcurrent != 5 || cfg.ValidationTimeout != 30*time.Second || cfg.ValidationThreshold != 10000 {
		t.Errorf("config:config_test - validation = %d / %v / %v", cfg.ValidationMaxConcurrent, cfg.ValidationTimeout, cfg.ValidationThreshold)
	}
	if !cfg.GatesEnabled || cfg.HighValueThreshold != 10000 {
		t.Errorf("config:config_test - gates = %v / %v", cfg.GatesEnabled, cfg.HighValueThreshold)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("config:config_test - defaults should validate for serve: %v", err)
	}
	if err := cfg.ValidateForDB(); err == nil {
		t.Error("config:config_test - ValidateForDB should require DATABASE_URL")
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	overrides := map[string]string{
		"COMMS_URL":                 "nats://custom:4222",
		"SERVICE_NAME":              "test-server",
		"CHAT_SUBJECT":              "custom.chat",
		"REQUEST_TIMEOUT":           "10s",
		"CARDS_DIR":                 "/tmp/cards",
		"DATABASE_URL":              "postgres://test@localhost/test",
		"RUN_MIGRATIONS":            "true",
		"HTTP_ADDR":                 "127.0.0.1:9090",
		"SESSION_CACHE_TTL":         "1m",
		"VALIDATION_MAX_CONCURRENT": "2",
		"GATES_ENABLED":             "false",
		"HIGH_VALUE_THRESHOLD":      "2500.5",
		"LOG_LEVEL":                 "debug",
	}
	for key, val := range overrides {
		t.Setenv(key, val)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://custom:4222" || cfg.COMMSName != "test-server" || cfg.ChatSubject != "custom.chat" {
		t.Errorf("config:config_test - comms = %q %q %q", cfg.COMMSURL, cfg.COMMSName, cfg.ChatSubject)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	if cfg.CardsDir != "/tmp/cards" || cfg.DatabaseURL != "postgres://test@localhost/test" || !cfg.RunMigrations {
		t.Errorf("config:config_test - cards %q db %q migrate %v", cfg.CardsDir, cfg.DatabaseURL, cfg.RunMigrations)
	}
	if cfg.ListenAddr() != "127.0.0.1:9090" {
		t.Errorf("config:config_test - ListenAddr = %q", cfg.ListenAddr())
	}
	if cfg.SessionCacheTTL != time.Minute || cfg.ValidationMaxConcurrent != 2 {
		t.Errorf("config:config_test - ttl %v concurrency %d", cfg.SessionCacheTTL, cfg.ValidationMaxConcurrent)
	}
	if cfg.GatesEnabled || cfg.HighValueThreshold != 2500.5 {
		t.Errorf("config:config_test - gates %v threshold %v", cfg.GatesEnabled, cfg.HighValueThreshold)
	}
	if err := cfg.ValidateForDB(); err != nil {
		t.Errorf("config:config_test - ValidateForDB: %v", err)
	}
}

func TestValidateForServe(t *testing.T) {
	base := func() *Config {
		return &Config{
			RequestTimeout: time.Second, HealthCheckTimeout: time.Second, HTTPPort: 8080,
			ValidationMaxConcurrent: 1, SessionCacheMaxCost: 1, LogLevel: "info",
		}
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"zero health timeout", func(c *Config) { c.HealthCheckTimeout = 0 }, true},
		{"bad port", func(c *Config) { c.HTTPPort = 70000 }, true},
		{"bad port with addr", func(c *Config) { c.HTTPPort = 0; c.HTTPAddr = ":1234" }, false},
		{"no validators", func(c *Config) { c.ValidationMaxConcurrent = 0 }, true},
		{"negative threshold", func(c *Config) { c.HighValueThreshold = -1 }, true},
		{"db without cache", func(c *Config) { c.DatabaseURL = "postgres://x/y"; c.SessionCacheMaxCost = 0 }, true},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"upper log level", func(c *Config) { c.LogLevel = "WARN" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			if err := c.ValidateForServe(); (err != nil) != tt.wantErr {
				t.Errorf("config:config_test - ValidateForServe() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
