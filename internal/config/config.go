// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for
// storage, logging, the restaurant cache and provider, background jobs and
// observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Job names accepted by JOBS_ENABLED.
const (
	JobMatchExpiry       = "match_expiry"
	JobAnalyticsSnapshot = "analytics_snapshot"
)

// RedisConfig defines the optional Redis cache. An empty Addr selects the
// in-process cache.
type RedisConfig struct {
	Addr     string // REDIS_ADDR (e.g. "localhost:6379")
	Password string // REDIS_PASSWORD
	DB       int    // REDIS_DB
}

// ProviderConfig defines the external restaurant directory client. An empty
// BaseURL disables the provider tier of the resolver.
type ProviderConfig struct {
	BaseURL string        // PROVIDER_BASE_URL
	APIKey  string        // PROVIDER_API_KEY
	Timeout time.Duration // PROVIDER_TIMEOUT, per lookup
	RPS     float64       // PROVIDER_RPS (>= 0, 0 disables throttling)
	Burst   int           // PROVIDER_BURST (>= 1)
}

// JobsConfig defines the background lifecycle jobs.
type JobsConfig struct {
	Enabled          []string      // JOBS_ENABLED, comma separated
	MatchExpireAfter time.Duration // MATCH_EXPIRE_AFTER, age at which PENDING matches expire
	ExpiryInterval   time.Duration // EXPIRY_INTERVAL
	SnapshotInterval time.Duration // SNAPSHOT_INTERVAL
}

// Has reports whether job name is enabled.
func (j JobsConfig) Has(name string) bool {
	for _, n := range j.Enabled {
		if n == name {
			return true
		}
	}
	return false
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "table-for-two")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Storage
	DBPath string // SQLite path

	// Restaurant resolution
	CacheTTL time.Duration // lifetime of cached restaurant profiles
	Redis    RedisConfig
	Provider ProviderConfig

	// Background work
	Jobs JobsConfig

	// Observability
	MetricsAddr string // listen address for /metrics; empty disables
	OTEL        OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Storage
		DBPath: getenv("DB_PATH", "table_for_two.db"),

		// Restaurant resolution
		CacheTTL: getdur("CACHE_TTL", 24*time.Hour),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},
		Provider: ProviderConfig{
			BaseURL: strings.TrimRight(strings.TrimSpace(getenv("PROVIDER_BASE_URL", "")), "/"),
			APIKey:  getenv("PROVIDER_API_KEY", ""),
			Timeout: getdur("PROVIDER_TIMEOUT", 5*time.Second),
			RPS:     getfloat("PROVIDER_RPS", 5.0),
			Burst:   getint("PROVIDER_BURST", 5),
		},

		// Background work
		Jobs: JobsConfig{
			Enabled:          splitCSV(getenv("JOBS_ENABLED", JobMatchExpiry+","+JobAnalyticsSnapshot)),
			MatchExpireAfter: getdur("MATCH_EXPIRE_AFTER", 48*time.Hour),
			ExpiryInterval:   getdur("EXPIRY_INTERVAL", 6*time.Hour),
			SnapshotInterval: getdur("SNAPSHOT_INTERVAL", 24*time.Hour),
		},

		// Observability
		MetricsAddr: strings.TrimSpace(getenv("METRICS_ADDR", ":9090")),
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "table-for-two"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	for i, n := range cfg.Jobs.Enabled {
		cfg.Jobs.Enabled[i] = strings.ToLower(n)
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.CacheTTL <= 0 {
		return cfg, errors.New("CACHE_TTL must be > 0")
	}
	if cfg.Redis.DB < 0 {
		return cfg, errors.New("REDIS_DB must be >= 0")
	}
	if cfg.Provider.BaseURL != "" &&
		!strings.HasPrefix(cfg.Provider.BaseURL, "http://") &&
		!strings.HasPrefix(cfg.Provider.BaseURL, "https://") {
		return cfg, errors.New("PROVIDER_BASE_URL must be an http(s) URL")
	}
	if cfg.Provider.Timeout <= 0 {
		return cfg, errors.New("PROVIDER_TIMEOUT must be > 0")
	}
	if cfg.Provider.RPS < 0 {
		return cfg, errors.New("PROVIDER_RPS must be >= 0")
	}
	if cfg.Provider.Burst < 1 {
		return cfg, errors.New("PROVIDER_BURST must be >= 1")
	}
	for _, n := range cfg.Jobs.Enabled {
		if n != JobMatchExpiry && n != JobAnalyticsSnapshot {
			return cfg, errors.New("JOBS_ENABLED contains unknown job " + strconv.Quote(n))
		}
	}
	if cfg.Jobs.MatchExpireAfter <= 0 {
		return cfg, errors.New("MATCH_EXPIRE_AFTER must be > 0")
	}
	if cfg.Jobs.ExpiryInterval <= 0 || cfg.Jobs.SnapshotInterval <= 0 {
		return cfg, errors.New("job intervals must be positive durations")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
