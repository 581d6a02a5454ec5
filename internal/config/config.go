/*
Package config loads the runtime settings for the assistant from the process
environment, optionally seeded from a local .env file.
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds every setting the server and its services need.
// Secrets are never defaulted; they must come from the deployment environment.
type Config struct {
	Port   int
	AppEnv string

	// SessionSecret signs the identity cookie.
	SessionSecret string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	MistralAPIKey    string
	MistralModel     string
	MistralBaseURL   string
	MistralMaxTokens int

	// PrimaryCooldown is slept after every primary-provider call.
	PrimaryCooldown time.Duration
	ProviderTimeout time.Duration

	ProfileStorePath string

	// APIRateLimit is the per-IP request rate for /api routes, in requests per second.
	APIRateLimit float64
}

const (
	DefaultPort             = 8080
	DefaultGeminiModel      = "gemini-1.5-pro-latest"
	DefaultGeminiBaseURL    = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultMistralModel     = "mistral-large-latest"
	DefaultMistralBaseURL   = "https://api.mistral.ai/v1/chat/completions"
	DefaultMistralMaxTokens = 300
	DefaultPrimaryCooldown  = 1 * time.Second
	DefaultProviderTimeout  = 30 * time.Second
	DefaultProfileStorePath = "user_data.json"
	DefaultAPIRateLimit     = 5
)

// Load reads the configuration. A missing .env file is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, reading from environment")
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary lookup function.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := Config{
		Port:             DefaultPort,
		AppEnv:           "development",
		SessionSecret:    get("SESSION_SECRET"),
		GeminiAPIKey:     get("GEMINI_API_KEY"),
		GeminiModel:      DefaultGeminiModel,
		GeminiBaseURL:    DefaultGeminiBaseURL,
		MistralAPIKey:    get("MISTRAL_API_KEY"),
		MistralModel:     DefaultMistralModel,
		MistralBaseURL:   DefaultMistralBaseURL,
		MistralMaxTokens: DefaultMistralMaxTokens,
		PrimaryCooldown:  DefaultPrimaryCooldown,
		ProviderTimeout:  DefaultProviderTimeout,
		ProfileStorePath: DefaultProfileStorePath,
		APIRateLimit:     DefaultAPIRateLimit,
	}

	if v := get("APP_ENV"); v != "" {
		cfg.AppEnv = v
	}
	if v := get("GEMINI_MODEL"); v != "" {
		cfg.GeminiModel = v
	}
	if v := get("GEMINI_BASE_URL"); v != "" {
		cfg.GeminiBaseURL = v
	}
	if v := get("MISTRAL_MODEL"); v != "" {
		cfg.MistralModel = v
	}
	if v := get("MISTRAL_BASE_URL"); v != "" {
		cfg.MistralBaseURL = v
	}
	if v := get("PROFILE_STORE_PATH"); v != "" {
		cfg.ProfileStorePath = v
	}

	var err error
	if cfg.Port, err = intOr(get("PORT"), DefaultPort); err != nil {
		return Config{}, fmt.Errorf("PORT: %w", err)
	}
	if cfg.MistralMaxTokens, err = intOr(get("MISTRAL_MAX_TOKENS"), DefaultMistralMaxTokens); err != nil {
		return Config{}, fmt.Errorf("MISTRAL_MAX_TOKENS: %w", err)
	}
	cooldownMs, err := intOr(get("PRIMARY_COOLDOWN_MS"), int(DefaultPrimaryCooldown/time.Millisecond))
	if err != nil {
		return Config{}, fmt.Errorf("PRIMARY_COOLDOWN_MS: %w", err)
	}
	cfg.PrimaryCooldown = time.Duration(cooldownMs) * time.Millisecond

	timeoutSec, err := intOr(get("PROVIDER_TIMEOUT_SECONDS"), int(DefaultProviderTimeout/time.Second))
	if err != nil {
		return Config{}, fmt.Errorf("PROVIDER_TIMEOUT_SECONDS: %w", err)
	}
	cfg.ProviderTimeout = time.Duration(timeoutSec) * time.Second

	if v := get("API_RATE_LIMIT"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate <= 0 {
			return Config{}, fmt.Errorf("API_RATE_LIMIT: invalid value %q", v)
		}
		cfg.APIRateLimit = rate
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET environment variable is not set")
	}
	if c.Port <= 0 {
		return fmt.Errorf("PORT must be positive, got %d", c.Port)
	}
	if c.MistralMaxTokens <= 0 {
		return fmt.Errorf("MISTRAL_MAX_TOKENS must be positive, got %d", c.MistralMaxTokens)
	}
	if c.PrimaryCooldown < 0 {
		return fmt.Errorf("PRIMARY_COOLDOWN_MS must not be negative")
	}
	return nil
}

// IsProduction reports whether secure cookie settings should apply.
func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func intOr(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return n, nil
}
