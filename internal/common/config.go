package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Audit    AuditConfig
	OCR      OCRConfig
	Ingest   IngestConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// AuditConfig holds the local audit store configuration
type AuditConfig struct {
	Path string
}

// OCRConfig holds OCR provider and failover configuration
type OCRConfig struct {
	DatalabAPIKey string
	DatalabURL    string
	MarkerURL     string

	ConfidenceThreshold float32
	EnableFallback      bool
	PreferMarkerForDocs bool

	MaxPollAttempts int
	PollInterval    time.Duration
	PollIntervalCap time.Duration
	RequestTimeout  time.Duration

	// Clamp range for the Marker completeness heuristic. Tuned by trial, not
	// derived; kept configurable so it can be recalibrated without a release.
	HeuristicFloor   float32
	HeuristicCeiling float32
}

// IngestConfig holds inbox watcher configuration
type IngestConfig struct {
	InboxDir      string
	SettleTime    time.Duration
	StatsInterval time.Duration
	Workers       int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Audit: AuditConfig{
			Path: getEnv("AUDIT_DB_PATH", "./freightdocs-audit.db"),
		},
		OCR: OCRConfig{
			DatalabAPIKey:       getEnv("DATALAB_API_KEY", ""),
			DatalabURL:          getEnv("DATALAB_URL", "https://www.datalab.to/api/v1"),
			MarkerURL:           getEnv("MARKER_URL", "https://www.datalab.to/api/v1"),
			ConfidenceThreshold: getEnvAsFloat32("OCR_CONFIDENCE_THRESHOLD", 0.5),
			EnableFallback:      getEnvAsBool("OCR_ENABLE_FALLBACK", true),
			PreferMarkerForDocs: getEnvAsBool("OCR_PREFER_MARKER_FOR_DOCS", false),
			MaxPollAttempts:     getEnvAsInt("OCR_MAX_POLL_ATTEMPTS", 300),
			PollInterval:        getEnvAsDuration("OCR_POLL_INTERVAL", 2*time.Second),
			PollIntervalCap:     getEnvAsDuration("OCR_POLL_INTERVAL_CAP", 10*time.Second),
			RequestTimeout:      getEnvAsDuration("OCR_REQUEST_TIMEOUT", 30*time.Second),
			HeuristicFloor:      getEnvAsFloat32("OCR_HEURISTIC_FLOOR", 0.5),
			HeuristicCeiling:    getEnvAsFloat32("OCR_HEURISTIC_CEILING", 0.95),
		},
		Ingest: IngestConfig{
			InboxDir:      getEnv("INBOX_DIR", "./inbox"),
			SettleTime:    getEnvAsDuration("INBOX_SETTLE_TIME", 2*time.Second),
			StatsInterval: getEnvAsDuration("STATS_LOG_INTERVAL", 5*time.Minute),
			Workers:       getEnvAsInt("PARSE_WORKERS", 4),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.OCR.DatalabAPIKey == "" {
		return NewAppError("CONFIG_ERROR", "DATALAB_API_KEY is required", ErrInvalidInput)
	}
	if c.OCR.ConfidenceThreshold < 0 || c.OCR.ConfidenceThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "OCR_CONFIDENCE_THRESHOLD must be in [0,1]", ErrInvalidInput)
	}
	if c.OCR.MaxPollAttempts <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_MAX_POLL_ATTEMPTS must be positive", ErrInvalidInput)
	}
	if c.OCR.HeuristicFloor > c.OCR.HeuristicCeiling {
		return NewAppError("CONFIG_ERROR", "OCR_HEURISTIC_FLOOR must not exceed OCR_HEURISTIC_CEILING", ErrInvalidInput)
	}
	if c.Ingest.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "PARSE_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
