// Package config loads service configuration from the environment.
//
// Configuration is constructed exactly once at process start and passed
// explicitly into each component constructor. Components never reach for
// environment variables themselves.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the AI Pipe generation endpoint.
const (
	DefaultGenerationURL = "https://aipipe.org/openai/v1/chat/completions"
	DefaultModel         = "gpt-4o-mini"
)

// Config holds every setting the service needs. Credential fields are
// opaque values; the core never interprets them beyond passing them on.
type Config struct {
	// Student identity used to validate inbound requests
	StudentEmail  string
	StudentSecret string

	// Repository hosting
	GitHubToken    string
	GitHubUsername string

	// Code generation (OpenAI-compatible, AI Pipe by default)
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// HTTP server
	Port        string
	Environment string

	// Notification retry policy
	MaxRetries  int
	RetryDelays []time.Duration

	// Publication wait
	PagesTimeout time.Duration

	// Background processing
	WorkerCount int
	QueueSize   int

	// Task-run store: Postgres DSN wins over the SQLite file
	DatabaseURL string
	SQLitePath  string

	// Optional Redis for the duplicate-delivery guard
	RedisURL string

	// Ingestion rate limit (requests per minute per IP)
	RateLimitPerMinute int

	EnableMetrics bool
}

// Load reads .env (if present) and the process environment and returns
// a fully populated Config. Missing required credentials are reported
// together so a misconfigured deployment fails fast with one message.
func Load() (*Config, error) {
	// .env is optional; production deployments use real env vars
	_ = godotenv.Load()

	cfg := &Config{
		StudentEmail:       os.Getenv("STUDENT_EMAIL"),
		StudentSecret:      os.Getenv("STUDENT_SECRET"),
		GitHubToken:        os.Getenv("GITHUB_TOKEN"),
		GitHubUsername:     os.Getenv("GITHUB_USERNAME"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", DefaultGenerationURL),
		OpenAIModel:        getEnv("OPENAI_MODEL", DefaultModel),
		Port:               getEnv("PORT", "8000"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		MaxRetries:         getEnvInt("MAX_RETRIES", 5),
		RetryDelays:        getEnvDelays("RETRY_DELAYS", []int{1, 2, 4, 8, 16}),
		PagesTimeout:       time.Duration(getEnvInt("PAGES_TIMEOUT", 300)) * time.Second,
		WorkerCount:        getEnvInt("WORKER_COUNT", 4),
		QueueSize:          getEnvInt("QUEUE_SIZE", 64),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SQLitePath:         getEnv("SQLITE_PATH", "taskruns.db"),
		RedisURL:           os.Getenv("REDIS_URL"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		EnableMetrics:      getEnvBool("ENABLE_METRICS", false),
	}

	var missing []string
	for _, req := range []struct{ key, val string }{
		{"STUDENT_EMAIL", cfg.StudentEmail},
		{"STUDENT_SECRET", cfg.StudentSecret},
		{"GITHUB_TOKEN", cfg.GitHubToken},
		{"GITHUB_USERNAME", cfg.GitHubUsername},
		{"OPENAI_API_KEY", cfg.OpenAIAPIKey},
	} {
		if req.val == "" {
			missing = append(missing, req.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if len(cfg.RetryDelays) == 0 {
		cfg.RetryDelays = []time.Duration{time.Second}
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDelays parses a comma-separated list of whole seconds
// ("1,2,4,8,16") into durations. Invalid entries are skipped; an empty
// or wholly invalid value falls back to the defaults.
func getEnvDelays(key string, defaultSeconds []int) []time.Duration {
	toDurations := func(secs []int) []time.Duration {
		out := make([]time.Duration, 0, len(secs))
		for _, s := range secs {
			out = append(out, time.Duration(s)*time.Second)
		}
		return out
	}

	value := os.Getenv(key)
	if value == "" {
		return toDurations(defaultSeconds)
	}

	var delays []time.Duration
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if secs, err := strconv.Atoi(part); err == nil && secs >= 0 {
			delays = append(delays, time.Duration(secs)*time.Second)
		}
	}
	if len(delays) == 0 {
		return toDurations(defaultSeconds)
	}
	return delays
}
