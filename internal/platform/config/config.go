package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the audit service needs at startup. Components
// receive the slices they care about through their constructors; nothing
// reads the environment after FromEnv returns.
type Config struct {
	Addr          string
	PostgresURL   string
	JWTSigningKey string

	Redis   RedisConfig
	Kafka   KafkaConfig
	Audit   AuditConfig
	Monitor MonitorConfig
}

// RedisConfig tunes the optional Redis notification sink.
type RedisConfig struct {
	URL          string
	Channel      string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig tunes the optional Kafka notification sink.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	BufferSize int
}

// AuditConfig bounds audit store I/O so a slow write cannot stall the
// guarded business operation indefinitely.
type AuditConfig struct {
	WriteTimeout time.Duration
}

// MonitorConfig holds the security monitor thresholds. Window length,
// attempt threshold, and severity bands are configuration, not constants.
type MonitorConfig struct {
	FailedLoginWindow    time.Duration
	FailedLoginThreshold int
	HighMultiplier       int
	CriticalMultiplier   int
	ActivityLookback     time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:          envOr("AUDIT_ADDR", ":8080"),
		PostgresURL:   os.Getenv("AUDIT_POSTGRES_URL"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Redis: RedisConfig{
			URL:          os.Getenv("AUDIT_REDIS_URL"),
			Channel:      envOr("AUDIT_REDIS_CHANNEL", "audit.notifications"),
			PoolSize:     envInt("AUDIT_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("AUDIT_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("AUDIT_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("AUDIT_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("AUDIT_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    envList("AUDIT_KAFKA_BROKERS"),
			Topic:      envOr("AUDIT_KAFKA_TOPIC", "audit.security"),
			BufferSize: envInt("AUDIT_KAFKA_BUFFER_SIZE", 10000),
		},
		Audit: AuditConfig{
			WriteTimeout: envDuration("AUDIT_WRITE_TIMEOUT", 5*time.Second),
		},
		Monitor: DefaultMonitorConfig(),
	}
}

// DefaultMonitorConfig returns the monitor thresholds, overridable via env.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		FailedLoginWindow:    envDuration("MONITOR_FAILED_LOGIN_WINDOW", 15*time.Minute),
		FailedLoginThreshold: envInt("MONITOR_FAILED_LOGIN_THRESHOLD", 5),
		HighMultiplier:       envInt("MONITOR_HIGH_MULTIPLIER", 2),
		CriticalMultiplier:   envInt("MONITOR_CRITICAL_MULTIPLIER", 4),
		ActivityLookback:     envDuration("MONITOR_ACTIVITY_LOOKBACK", 30*24*time.Hour),
	}
}

func envOr(key, fallback string) string {
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

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
