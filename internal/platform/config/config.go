// Package config builds runtime configuration from the environment so main
// stays lean. Every knob has a development default; production overrides via
// environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full engine configuration.
type Config struct {
	Addr        string
	PostgresURL string
	Redis       RedisConfig
	Rank        RankConfig
	Reassess    ReassessConfig
}

// RedisConfig mirrors the go-redis connection knobs we actually tune.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CurrentTTL   time.Duration
}

// RankConfig carries the composite score weights. Defaults follow the
// product requirement: confidence dominates, benefit next, urgency last.
type RankConfig struct {
	ConfidenceWeight float64
	BenefitWeight    float64
	UrgencyWeight    float64
	UrgencyHorizon   time.Duration
}

// ReassessConfig bounds the reassessment coordinator.
type ReassessConfig struct {
	Workers     int
	QueueDepth  int
	MaxAttempts int
	BackoffBase time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:        envStr("SUVIDHA_ADDR", ":8080"),
		PostgresURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			CurrentTTL:   envDuration("RULESET_CACHE_TTL", 5*time.Minute),
		},
		Rank: RankConfig{
			ConfidenceWeight: envFloat("RANK_WEIGHT_CONFIDENCE", 0.5),
			BenefitWeight:    envFloat("RANK_WEIGHT_BENEFIT", 0.3),
			UrgencyWeight:    envFloat("RANK_WEIGHT_URGENCY", 0.2),
			UrgencyHorizon:   envDuration("RANK_URGENCY_HORIZON", 30*24*time.Hour),
		},
		Reassess: ReassessConfig{
			Workers:     envInt("REASSESS_WORKERS", 8),
			QueueDepth:  envInt("REASSESS_QUEUE_DEPTH", 256),
			MaxAttempts: envInt("REASSESS_MAX_ATTEMPTS", 5),
			BackoffBase: envDuration("REASSESS_BACKOFF_BASE", 100*time.Millisecond),
		},
	}
}

func envStr(key, fallback string) string {
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
