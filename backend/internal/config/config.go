package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Engine     EngineConfig
	Routing    RoutingConfig
	Cache      CacheConfig
	Escalation EscalationConfig
	Logging    LoggingConfig
	Metrics    MetricsConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestSize int64
	MaxBatchSize   int
}

// EngineConfig holds analysis engine settings
type EngineConfig struct {
	LibraryPath      string // empty uses the embedded pattern library
	BatchConcurrency int
}

// RoutingConfig holds Cedar routing policy settings
type RoutingConfig struct {
	PolicyPath string // .yaml/.yml compiled to Cedar, anything else read as Cedar; empty uses the built-in policy
	HotReload  bool
}

// CacheConfig holds result cache settings
type CacheConfig struct {
	Enabled bool
	MaxSize int
	TTL     time.Duration
}

// EscalationConfig holds human review queue settings
type EscalationConfig struct {
	Enabled   bool
	SLA       time.Duration // time a case may stay unacknowledged
	Retention time.Duration // time resolved and expired cases stay queryable
	MaxClosed int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level     string // debug, info, warn, error
	AuditFile string // empty writes audit entries to stdout
	Audit     bool
}

// MetricsConfig holds metrics/monitoring settings
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			MaxRequestSize: int64(getEnvInt("SERVER_MAX_REQUEST_SIZE", 1024*1024)), // 1MB default
			MaxBatchSize:   getEnvInt("SERVER_MAX_BATCH_SIZE", 100),
		},
		Engine: EngineConfig{
			LibraryPath:      getEnv("CRISIS_LIBRARY_PATH", ""),
			BatchConcurrency: getEnvInt("CRISIS_BATCH_CONCURRENCY", 8),
		},
		Routing: RoutingConfig{
			PolicyPath: getEnv("ROUTING_POLICY_PATH", ""),
			HotReload:  getEnvBool("ROUTING_HOT_RELOAD", true),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			MaxSize: getEnvInt("CACHE_MAX_SIZE", 1000),
			TTL:     getEnvDuration("CACHE_TTL", 10*time.Minute),
		},
		Escalation: EscalationConfig{
			Enabled:   getEnvBool("ESCALATION_ENABLED", true),
			SLA:       getEnvDuration("ESCALATION_SLA", 15*time.Minute),
			Retention: getEnvDuration("ESCALATION_RETENTION", time.Hour),
			MaxClosed: getEnvInt("ESCALATION_MAX_CLOSED", 1000),
		},
		Logging: LoggingConfig{
			Level:     getEnv("LOG_LEVEL", "info"),
			AuditFile: getEnv("AUDIT_LOG_FILE", ""),
			Audit:     getEnvBool("AUDIT_ENABLED", true),
		},
		Metrics: MetricsConfig{
			Enabled:  getEnvBool("METRICS_ENABLED", true),
			Endpoint: getEnv("METRICS_ENDPOINT", "/metrics"),
		},
	}
}

// Addr returns the host:port listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
