/*
Package assistant turns a user's question into a model answer: it looks up
the user's profile, classifies the question into an intent, fills that
intent's prompt template, and hands the prompt to the LLM gateway.
It also owns onboarding and the meal-planner follow-up flow.
*/
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Lunara_V0.1/internal/database"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingIdentity means the request lacked an identity or a message.
	ErrMissingIdentity = errors.New("identity and message are required")

	// ErrInvalidProfile means onboarding input failed validation.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Onboarding bounds, matching the onboarding form.
const (
	MinAge = 10
	MaxAge = 100
)

// Answerer produces a model answer for a composed prompt.
type Answerer interface {
	Answer(ctx context.Context, prompt string) (string, error)
}

// Service orchestrates the assistant flows.
type Service struct {
	store database.Service
	llm   Answerer
	now   func() time.Time
}

// NewService wires the store and the gateway.
func NewService(store database.Service, llm Answerer) *Service {
	return &Service{store: store, llm: llm, now: time.Now}
}

// Reply is the outcome of Ask.
type Reply struct {
	Intent Intent
	Text   string
}

// Ask answers a free-text question for an onboarded user.
// An unknown identity fails with database.ErrProfileNotFound before any provider call.
func (s *Service) Ask(ctx context.Context, identity, question string) (Reply, error) {
	if strings.TrimSpace(identity) == "" || strings.TrimSpace(question) == "" {
		return Reply{}, ErrMissingIdentity
	}

	profile, err := s.store.Get(ctx, identity)
	if err != nil {
		return Reply{}, err
	}

	intent := Classify(question, profile.Age, HasCravings(profile.Cravings))
	prompt, err := Compose(intent, profile, question)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("intent", string(intent)).Msg("failed to compose prompt")
		return Reply{}, err
	}

	zerolog.Ctx(ctx).Info().Str("intent", string(intent)).Msg("answering question")

	text, err := s.llm.Answer(ctx, prompt)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Intent: intent, Text: text}, nil
}

// OnboardingForm is what the onboarding page collects.
type OnboardingForm struct {
	Name       string
	Age        int
	CyclePhase string
	Cravings   string
}

// Onboard validates the form and creates (or replaces) the identity's profile.
func (s *Service) Onboard(ctx context.Context, identity string, form OnboardingForm) (database.Profile, error) {
	if strings.TrimSpace(identity) == "" {
		return database.Profile{}, ErrMissingIdentity
	}

	name := strings.TrimSpace(form.Name)
	phase := database.CyclePhase(strings.ToLower(strings.TrimSpace(form.CyclePhase)))
	switch {
	case name == "":
		return database.Profile{}, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	case form.Age < MinAge || form.Age > MaxAge:
		return database.Profile{}, fmt.Errorf("%w: age must be between %d and %d", ErrInvalidProfile, MinAge, MaxAge)
	case !phase.Valid():
		return database.Profile{}, fmt.Errorf("%w: unknown cycle phase %q", ErrInvalidProfile, form.CyclePhase)
	}

	profile := database.Profile{
		Name:            name,
		Age:             form.Age,
		CyclePhase:      phase,
		Cravings:        strings.TrimSpace(form.Cravings),
		LastInteraction: s.now().UTC().Format(time.RFC3339),
	}
	if err := s.store.Put(ctx, identity, profile); err != nil {
		return database.Profile{}, err
	}
	return profile, nil
}

// Profile returns the stored profile for identity.
func (s *Service) Profile(ctx context.Context, identity string) (database.Profile, error) {
	if strings.TrimSpace(identity) == "" {
		return database.Profile{}, ErrMissingIdentity
	}
	return s.store.Get(ctx, identity)
}
