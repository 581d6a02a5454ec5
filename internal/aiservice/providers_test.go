package aiservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiServer(t *testing.T, status int, payload any) (*httptest.Server, *map[string]any) {
	t.Helper()
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server, &received
}

func newTestGemini(url string) *Gemini {
	return NewGemini(nil, GeminiConfig{APIKey: "test-key", Model: "gemini-test", BaseURL: url})
}

func TestGeminiUsable(t *testing.T) {
	server, received := geminiServer(t, http.StatusOK, map[string]any{
		"candidates": []any{
			map[string]any{
				"finishReason": "STOP",
				"content": map[string]any{
					"parts": []any{
						map[string]any{"text": "Cramps are "},
						map[string]any{"text": "common."},
					},
				},
			},
		},
	})

	res := newTestGemini(server.URL).Generate(context.Background(), "why cramps?")
	require.Equal(t, OutcomeUsable, res.Outcome, res.Err)
	assert.Equal(t, "Cramps are common.", res.Text)

	contents := (*received)["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, "why cramps?", parts[0].(map[string]any)["text"])
	_, hasConfig := (*received)["generationConfig"]
	assert.False(t, hasConfig, "primary uses default sampling")
}

func TestGeminiSafetyFinishReason(t *testing.T) {
	server, _ := geminiServer(t, http.StatusOK, map[string]any{
		"candidates": []any{
			map[string]any{"finishReason": "SAFETY", "content": map[string]any{"parts": []any{}}},
		},
	})

	res := newTestGemini(server.URL).Generate(context.Background(), "p")
	assert.Equal(t, OutcomeSafetyBlocked, res.Outcome)
	assert.Equal(t, "SAFETY", res.FinishReason)
}

func TestGeminiPromptBlocked(t *testing.T) {
	server, _ := geminiServer(t, http.StatusOK, map[string]any{
		"promptFeedback": map[string]any{"blockReason": "SAFETY"},
	})

	res := newTestGemini(server.URL).Generate(context.Background(), "p")
	assert.Equal(t, OutcomeSafetyBlocked, res.Outcome)
}

func TestGeminiNoCandidatesIsEmpty(t *testing.T) {
	server, _ := geminiServer(t, http.StatusOK, map[string]any{"candidates": []any{}})

	res := newTestGemini(server.URL).Generate(context.Background(), "p")
	assert.Equal(t, OutcomeEmpty, res.Outcome)
}

func TestGeminiHTTPErrorIsError(t *testing.T) {
	server, _ := geminiServer(t, http.StatusTooManyRequests, map[string]any{"error": "quota"})

	res := newTestGemini(server.URL).Generate(context.Background(), "p")
	require.Equal(t, OutcomeError, res.Outcome)
	var se *statusError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
}

func TestGeminiMissingKeyIsError(t *testing.T) {
	res := NewGemini(nil, GeminiConfig{Model: "m", BaseURL: "http://127.0.0.1:0"}).Generate(context.Background(), "p")
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Contains(t, res.Err.Error(), "GEMINI_API_KEY")
}

func TestMistralUsable(t *testing.T) {
	var received chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer m-key", r.Header.Get("Authorization"))
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "stop",
					"message":       map[string]any{"content": " Try dark chocolate. "},
				},
			},
		})
	}))
	defer server.Close()

	m := NewMistral(nil, MistralConfig{APIKey: "m-key", Model: "mistral-test", BaseURL: server.URL, MaxTokens: 300})
	res := m.Generate(context.Background(), "alternatives?")
	require.Equal(t, OutcomeUsable, res.Outcome, res.Err)
	assert.Equal(t, " Try dark chocolate. ", res.Text)

	assert.Equal(t, "mistral-test", received.Model)
	assert.Equal(t, 300, received.MaxTokens)
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "user", received.Messages[0].Role)
	assert.Equal(t, "alternatives?", received.Messages[0].Content)
}

func TestMistralEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	m := NewMistral(nil, MistralConfig{APIKey: "k", Model: "m", BaseURL: server.URL})
	assert.Equal(t, OutcomeEmpty, m.Generate(context.Background(), "p").Outcome)
}

func TestMistralHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthorized"}`))
	}))
	defer server.Close()

	m := NewMistral(nil, MistralConfig{APIKey: "bad", Model: "m", BaseURL: server.URL})
	res := m.Generate(context.Background(), "p")
	require.Equal(t, OutcomeError, res.Outcome)
	assert.Contains(t, res.Err.Error(), "http 401")
}

func TestRedactKey(t *testing.T) {
	err := redactKey(assert.AnError, "")
	assert.Equal(t, assert.AnError, err)

	err = redactKey(&statusError{Provider: "gemini", StatusCode: 500, Body: "url?key=sekret"}, "sekret")
	assert.NotContains(t, err.Error(), "sekret")
	assert.Contains(t, err.Error(), "REDACTED")
}
