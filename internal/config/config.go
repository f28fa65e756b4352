// Package config loads process configuration from the environment
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is shared by the server and the CLI
type Config struct {
	Storage StorageConfig
	Rules   RulesConfig
	Server  ServerConfig
	Match   MatchConfig
}

// StorageConfig selects where trial configurations live.
// DatabaseURL wins when both are set.
type StorageConfig struct {
	DatabaseURL string        `validate:"required_without=TrialsFile"`
	TrialsFile  string        `validate:"required_without=DatabaseURL"`
	CacheTTL    time.Duration `validate:"min=0"`
}

// RulesConfig points at optional reference and CEL binding files.
// Empty paths use the built-in defaults.
type RulesConfig struct {
	ReferencesFile string
	BindingsFile   string
}

type ServerConfig struct {
	Port string `validate:"required,numeric"`
}

type MatchConfig struct {
	Concurrency      int    `validate:"min=0,max=1024"`
	OrRecoverability string `validate:"omitempty,oneof=all any"`
}

var validate = validator.New()

// Load reads a .env file when present, then the environment, and validates
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from environment variables only
func FromEnv() (*Config, error) {
	concurrency, err := getEnvIntOrDefault("MATCH_CONCURRENCY", 0)
	if err != nil {
		return nil, err
	}
	ttl, err := getEnvDurationOrDefault("CACHE_TTL", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Storage: StorageConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			TrialsFile:  os.Getenv("TRIALS_FILE"),
			CacheTTL:    ttl,
		},
		Rules: RulesConfig{
			ReferencesFile: os.Getenv("REFERENCES_FILE"),
			BindingsFile:   os.Getenv("BINDINGS_FILE"),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Match: MatchConfig{
			Concurrency:      concurrency,
			OrRecoverability: os.Getenv("OR_RECOVERABILITY"),
		},
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDurationOrDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
