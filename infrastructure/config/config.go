// Package config loads the coordinator's configuration from a local
// .env file and the environment, mirroring the teacher's pkg/config
// package: envdecode struct-tag binding with defaults applied in New.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// ServerConfig controls the client-facing HTTP submission surface and
// the worker-facing websocket upgrade endpoint.
type ServerConfig struct {
	Host string `env:"SERVER_HOST"`
	Port int    `env:"SERVER_PORT"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT"`
}

// CryptoConfig locates the coordinator's persisted X25519 keypair.
type CryptoConfig struct {
	KeypairPath string `env:"CRYPTO_KEYPAIR_PATH"`
}

// RegistryConfig holds liveness and circuit-breaker values. They are
// loaded but not passed on: the registry does not read them and uses
// its own built-in thresholds.
type RegistryConfig struct {
	OnlineWindow       time.Duration `env:"REGISTRY_ONLINE_WINDOW"`
	BreakerMaxFailures int           `env:"REGISTRY_BREAKER_MAX_FAILURES"`
	BreakerOpenTimeout time.Duration `env:"REGISTRY_BREAKER_OPEN_TIMEOUT"`
	BreakerHealEvery   int           `env:"REGISTRY_BREAKER_HEAL_EVERY"`
}

// OrchestratorConfig tunes assignment retry and per-subtask timeouts.
type OrchestratorConfig struct {
	MaxRetries       int           `env:"ORCHESTRATOR_MAX_RETRIES"`
	RetryBase        time.Duration `env:"ORCHESTRATOR_RETRY_BASE"`
	TimeoutSimple    time.Duration `env:"ORCHESTRATOR_TIMEOUT_SIMPLE"`
	TimeoutComplex   time.Duration `env:"ORCHESTRATOR_TIMEOUT_COMPLEX"`
	TimeoutAdvanced  time.Duration `env:"ORCHESTRATOR_TIMEOUT_ADVANCED"`
	StreamSweepCron  string        `env:"ORCHESTRATOR_STREAM_SWEEP_CRON"`
	DecayWeeklyCron  string        `env:"ORCHESTRATOR_DECAY_WEEKLY_CRON"`
}

// ClassifierConfig tunes the optional external classifier; empty
// Endpoint means only the lexical fallback is used.
type ClassifierConfig struct {
	Endpoint string        `env:"CLASSIFIER_ENDPOINT"`
	APIKey   string        `env:"CLASSIFIER_API_KEY"`
	Timeout  time.Duration `env:"CLASSIFIER_TIMEOUT"`
}

// EnrollConfig holds the HMAC secret signing legacy enrollment tokens.
type EnrollConfig struct {
	TokenSecret string `env:"ENROLL_TOKEN_SECRET"`
}

// Config is the coordinator's top-level configuration.
type Config struct {
	Server       ServerConfig
	Logging      LoggingConfig
	Crypto       CryptoConfig
	Registry     RegistryConfig
	Orchestrator OrchestratorConfig
	Classifier   ClassifierConfig
	Enroll       EnrollConfig
}

// New returns a Config populated with the defaults named throughout
// spec.md §4.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8443,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Crypto: CryptoConfig{
			KeypairPath: "./coordinator.key",
		},
		Registry: RegistryConfig{
			OnlineWindow:       90 * time.Second,
			BreakerMaxFailures: 3,
			BreakerOpenTimeout: 5 * time.Minute,
			BreakerHealEvery:   3,
		},
		Orchestrator: OrchestratorConfig{
			MaxRetries:      3,
			RetryBase:       2 * time.Second,
			TimeoutSimple:   60 * time.Second,
			TimeoutComplex:  300 * time.Second,
			TimeoutAdvanced: 600 * time.Second,
			StreamSweepCron: "*/5 * * * *",
			DecayWeeklyCron: "0 0 * * 0",
		},
		Classifier: ClassifierConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads a local .env (if present, ignored otherwise) then decodes
// environment variables over the defaults from New.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()
	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}
	return cfg, nil
}
