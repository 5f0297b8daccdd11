package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	ProfilePath string
	RawDataDir  string
	OutputDir   string

	WindowStart time.Time
	WindowEnd   time.Time

	HTTPAddr    string
	HTTPEnabled bool
	LogLevel    string
	LogFormat   string

	ShutdownTimeout time.Duration

	// Kafka sink configuration for downstream consumers of fused records.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	windowStart, err := parseDate("WINDOW_START", "2018-10-01")
	if err != nil {
		return nil, err
	}
	windowEnd, err := parseDate("WINDOW_END", "2019-09-30")
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}
	httpEnabled := true
	if v := os.Getenv("HTTP_ENABLED"); v != "" {
		httpEnabled = v == "true"
	}

	cfg := &Config{
		ProfilePath: envOrDefault("PROFILE_PATH", "profiles.yaml"),
		RawDataDir:  envOrDefault("RAW_DATA_DIR", "data/raw"),
		OutputDir:   envOrDefault("OUTPUT_DIR", "data/processed"),

		WindowStart: windowStart,
		WindowEnd:   windowEnd,

		HTTPAddr:    envOrDefault("HTTP_ADDR", ":8080"),
		HTTPEnabled: httpEnabled,
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		LogFormat:   envOrDefault("LOG_FORMAT", "json"),

		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "fused-air-quality"),
		KafkaEnabled: kafkaEnabled,
	}

	if !cfg.WindowEnd.After(cfg.WindowStart) {
		return nil, errors.New("WINDOW_END must be after WINDOW_START")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is not set")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseDate(key, def string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", envOrDefault(key, def))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t.UTC(), nil
}
