// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string

	// CipherKey protects asset values and sensitive audit fields at rest.
	// 32 bytes, base64-encoded in the environment. The process must not
	// start without it: losing or mistyping the key silently corrupts every
	// encrypted value we would write.
	CipherKey []byte

	Redis RedisConfig
	Kafka KafkaConfig
	Price PriceConfig

	// LiveWealthCacheTTL bounds how stale the cached live-wealth snapshot
	// may be. Short by design: it only absorbs polling bursts.
	LiveWealthCacheTTL time.Duration
}

// RedisConfig configures the optional cache connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit event stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// PriceConfig configures the metals price feed.
type PriceConfig struct {
	FeedURL string
	// StalenessWindow is how old a quote may be before the resolver refuses
	// to derive a fresh nisab threshold from it.
	StalenessWindow time.Duration
	Currency        string
}

// FromEnv reads configuration from the environment. It returns an error for
// anything that would make the engine unsafe to run (missing cipher key);
// optional integrations default off when unset.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:               envOr("MIZAN_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("MIZAN_DATABASE_URL"),
		JWTSigningKey:      envOr("MIZAN_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		LiveWealthCacheTTL: envDurationOr("MIZAN_LIVE_WEALTH_CACHE_TTL", 30*time.Second),
		Redis: RedisConfig{
			URL:          os.Getenv("MIZAN_REDIS_URL"),
			PoolSize:     envIntOr("MIZAN_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("MIZAN_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("MIZAN_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("MIZAN_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("MIZAN_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Topic: envOr("MIZAN_KAFKA_AUDIT_TOPIC", "mizan.audit.events"),
		},
		Price: PriceConfig{
			FeedURL:         os.Getenv("MIZAN_PRICE_FEED_URL"),
			StalenessWindow: envDurationOr("MIZAN_PRICE_STALENESS_WINDOW", 1*time.Hour),
			Currency:        envOr("MIZAN_PRICE_CURRENCY", "USD"),
		},
	}

	if brokers := os.Getenv("MIZAN_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}

	rawKey := os.Getenv("MIZAN_CIPHER_KEY")
	if rawKey == "" {
		return Config{}, fmt.Errorf("MIZAN_CIPHER_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(rawKey)
	if err != nil {
		return Config{}, fmt.Errorf("MIZAN_CIPHER_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return Config{}, fmt.Errorf("MIZAN_CIPHER_KEY must decode to 32 bytes, got %d", len(key))
	}
	cfg.CipherKey = key

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
