package models

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	defaultServerAddr     = ":8080"
	defaultKafkaTopic     = "hoisting-events"
	defaultLogLevel       = "info"
	defaultMaxUploadBytes = 10 << 20
	defaultMaxDimension   = 8000
)

type Config struct {
	ServerAddr     string   `yaml:"server_addr"`
	DatabaseURL    string   `yaml:"database_url"`
	KafkaBroker    string   `yaml:"kafka_broker"`
	KafkaTopic     string   `yaml:"kafka_topic"`
	LogLevel       string   `yaml:"log_level"`
	Env            string   `yaml:"env"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	MaxDimension   int      `yaml:"max_dimension"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// DefaultConfig returns the values used when neither the file nor the
// environment sets a key.
func DefaultConfig() *Config {
	return &Config{
		ServerAddr:     defaultServerAddr,
		KafkaTopic:     defaultKafkaTopic,
		LogLevel:       defaultLogLevel,
		Env:            "production",
		MaxUploadBytes: defaultMaxUploadBytes,
		MaxDimension:   defaultMaxDimension,
	}
}

// LoadConfig reads path (a missing file is fine), then applies environment
// overrides. A .env file in the working directory is loaded first if present.
func LoadConfig(path string) (*Config, error) {
	const op = "models.LoadConfig"

	_ = godotenv.Load()

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.ServerAddr, "SERVER_ADDR")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.KafkaBroker, "KAFKA_BROKER")
	setString(&c.KafkaTopic, "KAFKA_TOPIC")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Env, "APP_ENV")

	if v, ok := os.LookupEnv("MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
		c.MaxUploadBytes = n
	}
	if v, ok := os.LookupEnv("MAX_DIMENSION"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_DIMENSION: %w", err)
		}
		c.MaxDimension = n
	}
	return nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database_url is required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.MaxDimension <= 0 {
		return fmt.Errorf("max_dimension must be positive, got %d", c.MaxDimension)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
