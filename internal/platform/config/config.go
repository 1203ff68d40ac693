package config

import (
	"os"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr             string
	DatabaseURL      string
	KafkaBrokers     string
	TrailTopic       string
	CertSigningKey   string
	AuthorizationTTL time.Duration
	Redis            RedisConfig
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("SIGIL_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	topic := os.Getenv("SIGIL_TRAIL_TOPIC")
	if topic == "" {
		topic = "sigil.trail.events"
	}

	authzTTL := 15 * time.Minute
	if raw := os.Getenv("SIGIL_AUTHZ_TTL"); raw != "" {
		if duration, err := time.ParseDuration(raw); err == nil {
			authzTTL = duration
		}
	}

	signingKey := os.Getenv("SIGIL_CERT_SIGNING_KEY")
	if signingKey == "" {
		// Use a default for development - should be overridden in production
		signingKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:             addr,
		DatabaseURL:      os.Getenv("SIGIL_DATABASE_URL"),
		KafkaBrokers:     os.Getenv("SIGIL_KAFKA_BROKERS"),
		TrailTopic:       topic,
		CertSigningKey:   signingKey,
		AuthorizationTTL: authzTTL,
		Redis: RedisConfig{
			URL:          os.Getenv("SIGIL_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}
