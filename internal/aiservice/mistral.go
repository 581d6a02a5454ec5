package aiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MistralConfig captures what the secondary provider needs.
type MistralConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// Mistral calls an OpenAI-style chat completions endpoint with a bounded answer length.
type Mistral struct {
	cfg        MistralConfig
	httpClient *http.Client
	logger     *zerolog.Logger
}

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewMistral builds the secondary provider.
func NewMistral(logger *zerolog.Logger, cfg MistralConfig) *Mistral {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = &log.Logger
	}
	return &Mistral{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (m *Mistral) Name() string { return "mistral" }

// Generate sends the prompt as a single user message.
func (m *Mistral) Generate(ctx context.Context, prompt string) Result {
	if m.cfg.APIKey == "" {
		return Failed(errors.New("mistral: MISTRAL_API_KEY is not set"))
	}

	payloadBytes, err := json.Marshal(chatCompletionRequest{
		Model:     m.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: m.cfg.MaxTokens,
	})
	if err != nil {
		return Failed(fmt.Errorf("mistral: failed to marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL, bytes.NewReader(payloadBytes))
	if err != nil {
		return Failed(fmt.Errorf("mistral: failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	m.logger.Debug().Str("model", m.cfg.Model).Int("max_tokens", m.cfg.MaxTokens).Msg("Calling Mistral API...")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Failed(fmt.Errorf("mistral: request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return Failed(&statusError{Provider: "mistral", StatusCode: resp.StatusCode, Body: string(body)})
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Failed(fmt.Errorf("mistral: failed to decode response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return Result{Outcome: OutcomeEmpty}
	}
	choice := parsed.Choices[0]
	return Usable(choice.Message.Content, choice.FinishReason)
}
