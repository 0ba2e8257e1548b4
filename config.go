package qcomposer

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the composer service reads from its environment.
type Config struct {
	Addr                  string        `env:"QCOMPOSER_ADDR"                   envDefault:":3000"`
	LogLevel              string        `env:"QCOMPOSER_LOG_LEVEL"              envDefault:"info"`
	LogPretty             bool          `env:"QCOMPOSER_LOG_PRETTY"             envDefault:"true"`
	SubscriberBuffer      int           `env:"QCOMPOSER_SUBSCRIBER_BUFFER"      envDefault:"64"`
	MaxBatchSize          int           `env:"QCOMPOSER_MAX_BATCH_SIZE"         envDefault:"100000"`
	Seed                  uint64        `env:"QCOMPOSER_SEED"                   envDefault:"0"`
	BroadcastMeasurements bool          `env:"QCOMPOSER_BROADCAST_MEASUREMENTS" envDefault:"false"`
	RateLimitBurst        int           `env:"QCOMPOSER_RATE_LIMIT_BURST"       envDefault:"0"`
	RateLimitRefill       time.Duration `env:"QCOMPOSER_RATE_LIMIT_REFILL"      envDefault:"100ms"`
	AllowedOrigins        []string      `env:"QCOMPOSER_ALLOWED_ORIGINS"        envDefault:"*" envSeparator:","`
	ShutdownTimeout       time.Duration `env:"QCOMPOSER_SHUTDOWN_TIMEOUT"       envDefault:"10s"`
}

// NewConfig returns the defaults, without looking at the environment.
func NewConfig() *Config {
	return &Config{
		Addr:             ":3000",
		LogLevel:         "info",
		LogPretty:        true,
		SubscriberBuffer: 64,
		MaxBatchSize:     100000,
		RateLimitRefill:  100 * time.Millisecond,
		AllowedOrigins:   []string{"*"},
		ShutdownTimeout:  10 * time.Second,
	}
}

/*
LoadConfig reads an optional .env file and then the process environment.

Variables already set in the environment win over the .env file.
*/
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.SubscriberBuffer < 1 {
		return nil, fmt.Errorf("QCOMPOSER_SUBSCRIBER_BUFFER must be positive, got %d", cfg.SubscriberBuffer)
	}

	return cfg, nil
}
