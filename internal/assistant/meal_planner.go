package assistant

import (
	"context"
	"strings"

	"Lunara_V0.1/internal/database"
	"github.com/rs/zerolog"
)

// FollowUpQuestion is one meal-planner question shown to the user.
type FollowUpQuestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

var mealPlanQuestions = []FollowUpQuestion{
	{ID: FieldDietarySpecs, Text: "Do you have any dietary specifications? (e.g., vegetarian, vegan, gluten-free)", Type: "text"},
	{ID: FieldCuisine, Text: "What type of cuisine do you prefer? (e.g., Italian, Indian, Mediterranean)", Type: "text"},
	{ID: FieldAllergies, Text: "Do you have any food allergies we should know about?", Type: "text"},
}

// StartMealPlan returns the three follow-up questions in fixed order.
func (s *Service) StartMealPlan() []FollowUpQuestion {
	out := make([]FollowUpQuestion, len(mealPlanQuestions))
	copy(out, mealPlanQuestions)
	return out
}

// MealPlanAnswers carries the follow-up answers keyed by question ID.
// Blank answers fall back to the meal-planner defaults.
type MealPlanAnswers struct {
	DietarySpecs string `json:"dietary_specs"`
	Cuisine      string `json:"cuisine"`
	Allergies    string `json:"allergies"`
}

// SubmitMealPlan stores the answers on the profile and returns a generated plan.
// The profile is persisted before the provider is called.
func (s *Service) SubmitMealPlan(ctx context.Context, identity string, answers MealPlanAnswers) (string, error) {
	if strings.TrimSpace(identity) == "" {
		return "", ErrMissingIdentity
	}

	profile, err := s.store.Update(ctx, identity, func(p *database.Profile) error {
		p.DietarySpecs = answerOr(answers.DietarySpecs, DefaultDietarySpecs)
		p.Cuisine = answerOr(answers.Cuisine, DefaultCuisine)
		p.Allergies = answerOr(answers.Allergies, DefaultAllergies)
		return nil
	})
	if err != nil {
		return "", err
	}

	prompt, err := Compose(IntentMealPlanner, profile, "")
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to compose meal plan prompt")
		return "", err
	}

	zerolog.Ctx(ctx).Info().Msg("generating meal plan")
	return s.llm.Answer(ctx, prompt)
}

func answerOr(answer, fallback string) *string {
	v := strings.TrimSpace(answer)
	if v == "" {
		v = fallback
	}
	return &v
}

// QuizQuestion is one multiple-choice question; Answer indexes Options.
type QuizQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   int      `json:"answer"`
}

// Quiz returns the static cycle quiz.
func (s *Service) Quiz() []QuizQuestion {
	return []QuizQuestion{
		{Question: "How long is an average menstrual cycle?", Options: []string{"21 days", "28 days", "35 days"}, Answer: 1},
		{Question: "Which phase comes after ovulation?", Options: []string{"Follicular", "Luteal", "Menstrual"}, Answer: 1},
	}
}
