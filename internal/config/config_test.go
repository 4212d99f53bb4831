package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	os.Setenv("TEST_REQUIRED", "value123")
	defer os.Unsetenv("TEST_REQUIRED")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}

func validConfig() *Config {
	return &Config{
		DBMaxConns:            25,
		WorkerCount:           3,
		SessionStartRateLimit: 20,
		ChartCacheTTL:         5 * time.Minute,
		Analytics:             loadAnalytics(),
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"swapped presets are valid", func(c *Config) {
			c.Analytics.RiskBreakdownPreset = "composition"
			c.Analytics.RiskCompositionPreset = "assignment"
		}, false},
		{"unknown breakdown preset", func(c *Config) { c.Analytics.RiskBreakdownPreset = "aggressive" }, true},
		{"unknown composition preset", func(c *Config) { c.Analytics.RiskCompositionPreset = "" }, true},
		{"zero tau", func(c *Config) { c.Analytics.UrgencyTauDays = 0 }, true},
		{"negative tau", func(c *Config) { c.Analytics.UrgencyTauDays = -2 }, true},
		{"no workers", func(c *Config) { c.WorkerCount = 0 }, true},
		{"no rate limit", func(c *Config) { c.SessionStartRateLimit = 0 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestLoadAnalyticsFromEnv(t *testing.T) {
	os.Setenv("URGENCY_TAU_DAYS", "3.5")
	os.Setenv("RISK_BREAKDOWN_PRESET", "composition")
	defer os.Unsetenv("URGENCY_TAU_DAYS")
	defer os.Unsetenv("RISK_BREAKDOWN_PRESET")

	a := loadAnalytics()
	if a.UrgencyTauDays != 3.5 {
		t.Errorf("Expected tau 3.5, got %v", a.UrgencyTauDays)
	}
	if a.RiskBreakdownPreset != "composition" {
		t.Errorf("Expected breakdown preset 'composition', got %q", a.RiskBreakdownPreset)
	}
	if a.RiskCompositionPreset != "composition" {
		t.Errorf("Expected default composition preset, got %q", a.RiskCompositionPreset)
	}
}

func TestLoadLocalNeedsNoEnv(t *testing.T) {
	os.Unsetenv("STUDYCTL_DB")
	cfg := LoadLocal()
	if cfg.DBPath != "~/.studyplan/studyplan.db" {
		t.Errorf("Expected default db path, got %q", cfg.DBPath)
	}
	if err := cfg.Analytics.Validate(); err != nil {
		t.Errorf("Expected default analytics settings to validate, got %v", err)
	}
}
