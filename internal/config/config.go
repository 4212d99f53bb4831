package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"studyplan-backend/internal/analytics"
)

// Analytics holds the tunables shared by the server and the CLI.
type Analytics struct {
	RiskBreakdownPreset   string
	RiskCompositionPreset string
	UrgencyTauDays        float64
}

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL   string
	DBMaxConns    int
	DBMinConns    int
	MigrationsDir string

	// Redis
	RedisURL      string
	ChartCacheTTL time.Duration

	// JWT
	JWTSecret string

	// Workers
	WorkerCount int

	// Rate limits (requests per minute)
	SessionStartRateLimit int

	Analytics Analytics

	// Frontend
	FrontendURL string
}

// LocalConfig configures the offline CLI.
type LocalConfig struct {
	DBPath    string
	UserID    string // empty selects the built-in local user
	JWTSecret string
	Analytics Analytics
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		DatabaseURL:           mustGetEnv("DATABASE_URL"),
		DBMaxConns:            getEnvAsIntOrDefault("DB_MAX_CONNS", 25),
		DBMinConns:            getEnvAsIntOrDefault("DB_MIN_CONNS", 2),
		MigrationsDir:         getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:              mustGetEnv("REDIS_URL"),
		ChartCacheTTL:         time.Duration(getEnvAsIntOrDefault("CHART_CACHE_TTL_SECONDS", 300)) * time.Second,
		JWTSecret:             mustGetEnv("JWT_SECRET"),
		WorkerCount:           getEnvAsIntOrDefault("WORKER_COUNT", 3),
		SessionStartRateLimit: getEnvAsIntOrDefault("SESSION_START_RATE_LIMIT", 20),
		Analytics:             loadAnalytics(),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// LoadLocal reads the CLI settings. Nothing is required.
func LoadLocal() *LocalConfig {
	godotenv.Load()

	return &LocalConfig{
		DBPath:    getEnvOrDefault("STUDYCTL_DB", "~/.studyplan/studyplan.db"),
		UserID:    getEnvOrDefault("STUDYCTL_USER", ""),
		JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
		Analytics: loadAnalytics(),
	}
}

func loadAnalytics() Analytics {
	return Analytics{
		RiskBreakdownPreset:   getEnvOrDefault("RISK_BREAKDOWN_PRESET", analytics.PresetAssignment),
		RiskCompositionPreset: getEnvOrDefault("RISK_COMPOSITION_PRESET", analytics.PresetComposition),
		UrgencyTauDays:        getEnvAsFloatOrDefault("URGENCY_TAU_DAYS", analytics.DefaultUrgencyTau),
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	if c.SessionStartRateLimit < 1 {
		return fmt.Errorf("SESSION_START_RATE_LIMIT must be positive, got %d", c.SessionStartRateLimit)
	}
	if c.ChartCacheTTL <= 0 {
		return fmt.Errorf("CHART_CACHE_TTL_SECONDS must be positive")
	}
	return c.Analytics.Validate()
}

func (a Analytics) Validate() error {
	if _, err := analytics.WeightPreset(a.RiskBreakdownPreset); err != nil {
		return fmt.Errorf("RISK_BREAKDOWN_PRESET: %w", err)
	}
	if _, err := analytics.WeightPreset(a.RiskCompositionPreset); err != nil {
		return fmt.Errorf("RISK_COMPOSITION_PRESET: %w", err)
	}
	if a.UrgencyTauDays <= 0 {
		return fmt.Errorf("URGENCY_TAU_DAYS must be positive, got %v", a.UrgencyTauDays)
	}
	return nil
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
