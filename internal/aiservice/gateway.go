/*
Package aiservice talks to the hosted language models that answer user
questions.

A Gateway sends every prompt to a primary provider first. When the primary
answer is blocked by a content filter, comes back empty, or fails outright,
the same prompt is sent once to a secondary provider. There are no other
retries.
*/
package aiservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNoProviderAnswer means neither provider produced a usable answer.
var ErrNoProviderAnswer = errors.New("no provider produced an answer")

// Outcome classifies a single provider call.
type Outcome int

const (
	OutcomeUsable Outcome = iota
	OutcomeSafetyBlocked
	OutcomeEmpty
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUsable:
		return "usable"
	case OutcomeSafetyBlocked:
		return "safety_blocked"
	case OutcomeEmpty:
		return "empty"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is what a provider returns for one prompt.
// Text is only meaningful when Outcome is OutcomeUsable; Err only when it is OutcomeError.
type Result struct {
	Outcome Outcome
	Text    string

	// FinishReason is the provider's raw stop reason, kept for logging.
	FinishReason string
	Err          error
}

// Usable builds a usable result, downgrading blank text to OutcomeEmpty.
func Usable(text, finishReason string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Outcome: OutcomeEmpty, FinishReason: finishReason}
	}
	return Result{Outcome: OutcomeUsable, Text: text, FinishReason: finishReason}
}

// Failed builds an error result.
func Failed(err error) Result {
	return Result{Outcome: OutcomeError, Err: err}
}

// Provider is one hosted model endpoint.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) Result
}

// Gateway answers prompts using a primary provider with a single fallback.
type Gateway struct {
	primary   Provider
	secondary Provider
	cooldown  time.Duration
	sleeper   func(context.Context, time.Duration)
	logger    *zerolog.Logger
}

// Option customizes the gateway.
type Option func(*Gateway)

// WithCooldown sets the pause taken after every primary call.
func WithCooldown(d time.Duration) Option {
	return func(g *Gateway) {
		if d >= 0 {
			g.cooldown = d
		}
	}
}

// WithSleeper overrides how the cooldown is waited out (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration)) Option {
	return func(g *Gateway) {
		if sleeper != nil {
			g.sleeper = sleeper
		}
	}
}

// WithLogger sets the logger used for provider outcomes.
func WithLogger(logger *zerolog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway wires a primary and secondary provider together.
func NewGateway(primary, secondary Provider, opts ...Option) *Gateway {
	g := &Gateway{
		primary:   primary,
		secondary: secondary,
		cooldown:  time.Second,
		sleeper:   sleepContext,
		logger:    &log.Logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Answer returns the trimmed text of the first usable provider answer.
// The caller's logger, if any, is taken from ctx via zerolog.Ctx.
func (g *Gateway) Answer(ctx context.Context, prompt string) (string, error) {
	logger := g.loggerFor(ctx)

	res := g.primary.Generate(ctx, prompt)
	g.sleeper(ctx, g.cooldown)

	if res.Outcome == OutcomeUsable {
		logger.Info().Str("provider", g.primary.Name()).Msg("primary provider answered")
		return strings.TrimSpace(res.Text), nil
	}

	evt := logger.Warn().
		Str("provider", g.primary.Name()).
		Str("outcome", res.Outcome.String()).
		Str("finish_reason", res.FinishReason)
	if res.Err != nil {
		evt = evt.Err(res.Err)
	}
	evt.Msgf("falling back to %s", g.secondary.Name())

	fallback := g.secondary.Generate(ctx, prompt)
	if fallback.Outcome == OutcomeUsable {
		logger.Info().Str("provider", g.secondary.Name()).Msg("secondary provider answered")
		return strings.TrimSpace(fallback.Text), nil
	}

	cause := fallback.Err
	if cause == nil {
		cause = fmt.Errorf("%s returned %s (finish_reason=%q)", g.secondary.Name(), fallback.Outcome, fallback.FinishReason)
	}
	logger.Error().Err(cause).Str("provider", g.secondary.Name()).Msg("secondary provider failed")
	return "", fmt.Errorf("%w: %v", ErrNoProviderAnswer, cause)
}

func (g *Gateway) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return g.logger
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
