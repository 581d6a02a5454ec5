package aiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxErrorBodyBytes     = 2048
)

// Finish and block reasons Gemini uses when a content filter stops generation.
var geminiSafetyReasons = map[string]bool{
	"SAFETY":             true,
	"PROHIBITED_CONTENT": true,
	"BLOCKLIST":          true,
	"SPII":               true,
}

// --- Structs for Gemini API Request/Response ---

type geminiPayload struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// GeminiConfig captures what the primary provider needs.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Gemini calls the generateContent endpoint with default sampling settings.
type Gemini struct {
	cfg        GeminiConfig
	httpClient *http.Client
	logger     *zerolog.Logger
}

// NewGemini builds the primary provider.
func NewGemini(logger *zerolog.Logger, cfg GeminiConfig) *Gemini {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = &log.Logger
	}
	return &Gemini{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (g *Gemini) Name() string { return "gemini" }

// Generate sends the prompt as a single user turn.
func (g *Gemini) Generate(ctx context.Context, prompt string) Result {
	if g.cfg.APIKey == "" {
		return Failed(errors.New("gemini: GEMINI_API_KEY is not set"))
	}

	payloadBytes, err := json.Marshal(geminiPayload{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return Failed(fmt.Errorf("gemini: failed to marshal payload: %w", err))
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", g.cfg.BaseURL, url.PathEscape(g.cfg.Model), url.QueryEscape(g.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payloadBytes))
	if err != nil {
		return Failed(fmt.Errorf("gemini: failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	g.logger.Debug().Str("model", g.cfg.Model).Msg("Calling Gemini API...")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Failed(fmt.Errorf("gemini: request failed: %w", redactKey(err, g.cfg.APIKey)))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return Failed(&statusError{Provider: "gemini", StatusCode: resp.StatusCode, Body: string(body)})
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return Failed(fmt.Errorf("gemini: failed to decode response: %w", err))
	}
	return classifyGemini(geminiResp)
}

func classifyGemini(resp geminiResponse) Result {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return Result{Outcome: OutcomeSafetyBlocked, FinishReason: resp.PromptFeedback.BlockReason}
	}
	if len(resp.Candidates) == 0 {
		return Result{Outcome: OutcomeEmpty}
	}

	candidate := resp.Candidates[0]
	if geminiSafetyReasons[candidate.FinishReason] {
		return Result{Outcome: OutcomeSafetyBlocked, FinishReason: candidate.FinishReason}
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	return Usable(text.String(), candidate.FinishReason)
}

// statusError is a non-200 reply from a provider.
type statusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

// redactKey keeps the query-string API key out of transport errors, which embed the URL.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	msg := strings.ReplaceAll(err.Error(), url.QueryEscape(key), "REDACTED")
	msg = strings.ReplaceAll(msg, key, "REDACTED")
	if msg == err.Error() {
		return err
	}
	return errors.New(msg)
}
