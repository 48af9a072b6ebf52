package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	Environment   string
	LogLevel      string
	AdminAPIToken string
	JWTSigningKey string
	JWTIssuer     string
	TokenTTL      time.Duration

	// TrustProxyHeaders enables X-Forwarded-For / X-Real-IP for caller IPs.
	TrustProxyHeaders bool

	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
}

// RedisConfig configures the shared rate limit store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures event mirroring. Mirroring is off without brokers.
type KafkaConfig struct {
	Brokers         string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
	EventsTopic     string
	AuditTopic      string
}

// StoreMemory opts a single instance into the in-process rate limit store.
const StoreMemory = "memory"

// RateLimitConfig holds knobs for the rate limiting subsystem itself.
type RateLimitConfig struct {
	// Store is StoreMemory to keep limits in process when there is no Redis.
	// With neither, rate limiting is off and every request is allowed.
	Store string
	// ConfigFile is an optional YAML overlay for limits and abuse rules.
	ConfigFile      string
	CleanupInterval time.Duration
	// DisableDualTracking stops IP tracking for signed-in callers.
	DisableDualTracking bool
	BreakerThreshold    int
	BreakerCooldown     time.Duration
}

const defaultSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:              envString("PASTEBIN_ADDR", ":8080"),
		Environment:       envString("PASTEBIN_ENV", "local"),
		LogLevel:          envString("LOG_LEVEL", "info"),
		AdminAPIToken:     os.Getenv("ADMIN_API_TOKEN"),
		JWTSigningKey:     envString("JWT_SIGNING_KEY", defaultSigningKey),
		JWTIssuer:         envString("JWT_ISSUER", "pastebin"),
		TokenTTL:          envDuration("TOKEN_TTL", 15*time.Minute),
		TrustProxyHeaders: os.Getenv("TRUST_PROXY_HEADERS") == "true",
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			Acks:            envString("KAFKA_ACKS", "all"),
			Retries:         envInt("KAFKA_RETRIES", 3),
			DeliveryTimeout: envDuration("KAFKA_DELIVERY_TIMEOUT", 30*time.Second),
			EventsTopic:     envString("KAFKA_RATELIMIT_EVENTS_TOPIC", "pastebin.ratelimit.events"),
			AuditTopic:      envString("KAFKA_AUDIT_TOPIC", "pastebin.audit"),
		},
		RateLimit: RateLimitConfig{
			Store:               strings.ToLower(strings.TrimSpace(os.Getenv("RATE_LIMIT_STORE"))),
			ConfigFile:          os.Getenv("RATE_LIMIT_CONFIG_FILE"),
			CleanupInterval:     envDuration("RATE_LIMIT_CLEANUP_INTERVAL", time.Hour),
			DisableDualTracking: os.Getenv("RATE_LIMIT_DISABLE_DUAL_TRACKING") == "true",
			BreakerThreshold:    envInt("RATE_LIMIT_BREAKER_THRESHOLD", 5),
			BreakerCooldown:     envDuration("RATE_LIMIT_BREAKER_COOLDOWN", 10*time.Second),
		},
	}
}

// UsesDefaultSigningKey reports whether tokens are signed with the dev key.
func (s Server) UsesDefaultSigningKey() bool {
	return s.JWTSigningKey == defaultSigningKey
}

func envString(key, fallback string) string {
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
