// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server settings, the
// master connection, local database paths, synchronization timings, rate
// limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// MasterConfig describes the connection to the master check-in authority.
// All calls use HTTP Basic credentials.
type MasterConfig struct {
	URL      string // MASTER_URL, e.g. "https://master.example.org"
	Username string // MASTER_USERNAME
	Password string // MASTER_PASSWORD

	// CheckInTimeout bounds the synchronous remote check-in call. It is
	// deliberately tight: this call sits in the path of a human waiting at
	// a gate, and a slow master must not block the terminal.
	CheckInTimeout time.Duration // MASTER_CHECKIN_TIMEOUT, default 100ms

	// RequestTimeout applies to background calls (sync, retry uploads),
	// which are not latency-sensitive.
	RequestTimeout time.Duration // MASTER_REQUEST_TIMEOUT, default 30s
}

// SyncConfig groups the scheduling knobs of the synchronization subsystem.
type SyncConfig struct {
	Interval       time.Duration // SYNC_INTERVAL, periodic attendee sync
	InitialDelay   time.Duration // SYNC_INITIAL_DELAY before the first periodic pass
	FollowerPoll   time.Duration // SYNC_FOLLOWER_POLL, leader-done poll period
	UploadInterval time.Duration // UPLOAD_INTERVAL, pending-upload sweep period
	BatchSize      int           // SYNC_BATCH_SIZE, attendee payload fetch batch
}

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-checkin-station")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath string // SQLite path

	Master MasterConfig
	Sync   SyncConfig

	// Rate limiting (check-in endpoint abuse control)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	CORS CORSConfig
	OTEL OTELConfig
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
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "checkin.db"),

		Master: MasterConfig{
			URL:            strings.TrimRight(getenv("MASTER_URL", ""), "/"),
			Username:       getenv("MASTER_USERNAME", ""),
			Password:       getenv("MASTER_PASSWORD", ""),
			CheckInTimeout: getdur("MASTER_CHECKIN_TIMEOUT", 100*time.Millisecond),
			RequestTimeout: getdur("MASTER_REQUEST_TIMEOUT", 30*time.Second),
		},

		Sync: SyncConfig{
			Interval:       getdur("SYNC_INTERVAL", 5*time.Second),
			InitialDelay:   getdur("SYNC_INITIAL_DELAY", 5*time.Second),
			FollowerPoll:   getdur("SYNC_FOLLOWER_POLL", 2*time.Second),
			UploadInterval: getdur("UPLOAD_INTERVAL", 15*time.Second),
			BatchSize:      getint("SYNC_BATCH_SIZE", 200),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-checkin-station"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Master.URL) == "" {
		return cfg, errors.New("MASTER_URL must not be empty")
	}
	if cfg.Master.CheckInTimeout <= 0 || cfg.Master.RequestTimeout <= 0 {
		return cfg, errors.New("master timeouts must be positive durations")
	}
	if cfg.Sync.Interval <= 0 || cfg.Sync.FollowerPoll <= 0 || cfg.Sync.UploadInterval <= 0 {
		return cfg, errors.New("sync intervals must be positive durations")
	}
	if cfg.Sync.InitialDelay < 0 {
		return cfg, errors.New("SYNC_INITIAL_DELAY must be >= 0")
	}
	if cfg.Sync.BatchSize < 1 {
		return cfg, errors.New("SYNC_BATCH_SIZE must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
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

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
