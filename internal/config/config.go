// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Reasoning provider settings.
	ReasoningProvider string // "auto", "openai", or "scripted"
	OpenAIAPIKey      string
	OpenAIBaseURL     string // Override for OpenAI-compatible endpoints.
	ReasoningModel    string
	ReasoningTimeout  time.Duration
	Temperature       float64
	MaxTokens         int

	// Durable sink settings. Both are optional; the runtime keeps all state
	// in memory when neither is set.
	PostgresURL string
	SQLitePath  string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	EventLogCap         int
	CycleDelay          time.Duration
	MaxAutonomousSteps  int
	MaxRequestBodyBytes int64 // Maximum request body size in bytes.
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("QUESTWEAVER_PORT", 8080),
		ReadTimeout:         envDuration("QUESTWEAVER_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("QUESTWEAVER_WRITE_TIMEOUT", 0),
		ReasoningProvider:   envStr("QUESTWEAVER_REASONING_PROVIDER", "auto"),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       envStr("OPENAI_BASE_URL", ""),
		ReasoningModel:      envStr("QUESTWEAVER_REASONING_MODEL", "gpt-4o-mini"),
		ReasoningTimeout:    envDuration("QUESTWEAVER_REASONING_TIMEOUT", 30*time.Second),
		Temperature:         envFloat("QUESTWEAVER_TEMPERATURE", 0.7),
		MaxTokens:           envInt("QUESTWEAVER_MAX_TOKENS", 1024),
		PostgresURL:         envStr("QUESTWEAVER_POSTGRES_URL", ""),
		SQLitePath:          envStr("QUESTWEAVER_SQLITE_PATH", ""),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "questweaver"),
		LogLevel:            envStr("QUESTWEAVER_LOG_LEVEL", "info"),
		EventLogCap:         envInt("QUESTWEAVER_EVENT_LOG_CAP", 1000),
		CycleDelay:          envDuration("QUESTWEAVER_CYCLE_DELAY", time.Second),
		MaxAutonomousSteps:  envInt("QUESTWEAVER_MAX_AUTONOMOUS_STEPS", 50),
		MaxRequestBodyBytes: int64(envInt("QUESTWEAVER_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and coherent.
func (c Config) Validate() error {
	switch c.ReasoningProvider {
	case "auto", "openai", "scripted":
	default:
		return fmt.Errorf("config: QUESTWEAVER_REASONING_PROVIDER must be auto, openai, or scripted")
	}
	if c.ReasoningProvider == "openai" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("config: OPENAI_API_KEY is required when QUESTWEAVER_REASONING_PROVIDER=openai")
	}
	if c.EventLogCap <= 0 {
		return fmt.Errorf("config: QUESTWEAVER_EVENT_LOG_CAP must be positive")
	}
	if c.MaxAutonomousSteps <= 0 {
		return fmt.Errorf("config: QUESTWEAVER_MAX_AUTONOMOUS_STEPS must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: QUESTWEAVER_MAX_REQUEST_BODY_BYTES must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
