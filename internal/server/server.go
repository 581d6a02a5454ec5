/*
Package server implements the application's network transport layer.
It initializes the HTTP server, configures timeouts, and wires the
assistant service to the profile store and the LLM gateway.
*/
package server

import (
	"fmt"
	"net/http"
	"time"

	"Lunara_V0.1/internal/aiservice"
	"Lunara_V0.1/internal/assistant"
	"Lunara_V0.1/internal/config"
	"Lunara_V0.1/internal/database"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
)

const (
	sessionName        = "lunara_session"
	sessionIdentityKey = "user_id"
	sessionMaxAge      = 30 * 24 * 60 * 60
)

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	cfg config.Config

	// db provides access to the profile store.
	db database.Service

	// assistant answers questions and runs the meal planner.
	assistant *assistant.Service

	// sessions signs the cookie that carries the user's identity.
	sessions *sessions.CookieStore
}

// NewServer initializes a new Server instance and returns a configured *http.Server.
func NewServer(cfg config.Config, db database.Service) *http.Server {
	gateway := aiservice.NewGateway(
		aiservice.NewGemini(&log.Logger, aiservice.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
			Timeout: cfg.ProviderTimeout,
		}),
		aiservice.NewMistral(&log.Logger, aiservice.MistralConfig{
			APIKey:    cfg.MistralAPIKey,
			Model:     cfg.MistralModel,
			BaseURL:   cfg.MistralBaseURL,
			MaxTokens: cfg.MistralMaxTokens,
			Timeout:   cfg.ProviderTimeout,
		}),
		aiservice.WithCooldown(cfg.PrimaryCooldown),
		aiservice.WithLogger(&log.Logger),
	)

	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set; every question will go to the secondary provider")
	}
	if cfg.MistralAPIKey == "" {
		log.Warn().Msg("MISTRAL_API_KEY is not set; there is no fallback provider")
	}

	newApp := newServer(cfg, db, gateway)

	log.Info().Str("env", cfg.AppEnv).Bool("secure_cookies", cfg.IsProduction()).Msg("Server initialized")

	// WriteTimeout covers the primary call, its cooldown and the fallback call.
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newApp.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2*cfg.ProviderTimeout + cfg.PrimaryCooldown + 10*time.Second,
	}
}

func newServer(cfg config.Config, db database.Service, llm assistant.Answerer) *Server {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.MaxAge(sessionMaxAge)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.IsProduction()
	store.Options.SameSite = http.SameSiteLaxMode

	return &Server{
		cfg:       cfg,
		db:        db,
		assistant: assistant.NewService(db, llm),
		sessions:  store,
	}
}
