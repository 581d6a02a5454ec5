package assistant

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"Lunara_V0.1/internal/database"
)

// ErrTemplateContract means a template and the fields supplied to it disagree.
// It is a programming error, never a user error.
var ErrTemplateContract = errors.New("prompt template contract violation")

// Placeholder names a template may use.
const (
	FieldUserInput    = "user_input"
	FieldCyclePhase   = "cycle_phase"
	FieldCravings     = "cravings"
	FieldDietarySpecs = "dietary_specs"
	FieldCuisine      = "cuisine"
	FieldAllergies    = "allergies"
)

// Values used when the meal-planner answers were never collected.
const (
	DefaultDietarySpecs = "none"
	DefaultCuisine      = "no preference"
	DefaultAllergies    = "none"
)

/* =================================================================================
							PROMPT TEMPLATES
	One template per intent. Fields lists exactly the placeholders the text uses.
=================================================================================*/

// PromptTemplate is one entry of the template library.
type PromptTemplate struct {
	Intent Intent
	Fields []string
	Text   string

	tmpl *template.Template
}

var promptTemplates = map[Intent]*PromptTemplate{}

func register(intent Intent, fields []string, text string) {
	promptTemplates[intent] = &PromptTemplate{
		Intent: intent,
		Fields: fields,
		Text:   text,
		tmpl:   template.Must(template.New(string(intent)).Option("missingkey=error").Parse(text)),
	}
}

func init() {
	register(IntentGeneralHealth, []string{FieldUserInput},
		"You are a menstrual health assistant. Provide a clear, factual, and educational response to the following question about menstrual health: {{.user_input}}. "+
			"Ensure the response is appropriate for all audiences and avoids harmful or sensitive language.")

	register(IntentNutrition, []string{FieldCyclePhase, FieldCravings, FieldUserInput},
		"You are a nutritionist specializing in menstrual health. Based on the user's current cycle phase ({{.cycle_phase}}) and cravings ({{.cravings}}), "+
			"provide specific dietary recommendations that align with their cravings and cycle phase. For example, if they crave spicy food, suggest spicy and healthy options. "+
			"Answer the following question: {{.user_input}}")

	register(IntentChildFriendly, []string{FieldUserInput},
		"You are a friendly menstrual health assistant, explaining menstrual health topics in a clear, simple, and age-appropriate way. "+
			"Answer the question: '{{.user_input}}' directly, without discussing unrelated topics. "+
			"Use comforting and inclusive language, keep the response brief and factual, and avoid overwhelming details. "+
			"Provide reassurance if the question involves symptoms like cramps, mood swings, or discharge, but do not mention additional symptoms unless asked.")

	register(IntentExercise, []string{FieldCyclePhase, FieldUserInput},
		"You are a fitness coach specializing in menstrual health. Based on the user's cycle phase ({{.cycle_phase}}) and energy levels, "+
			"recommend specific exercises suited to that phase. Provide clear workout suggestions with phase-specific titles such as '**Exercises for the {{.cycle_phase}} Phase**' "+
			"and include options for different energy levels. Keep the tone encouraging and supportive while focusing on menstrual health benefits. "+
			"Answer the following question: '{{.user_input}}'")

	register(IntentCravingsAlternatives, []string{FieldCravings, FieldCyclePhase, FieldUserInput},
		"You are a nutritionist focused on menstrual health. Suggest specific, healthy, and satisfying alternatives tailored to the user's cravings ({{.cravings}}) "+
			"and current cycle phase ({{.cycle_phase}}). Provide clear options under a phase-specific title like '**Healthy Alternatives for {{.cravings}} Cravings in the {{.cycle_phase}} Phase**' "+
			"and offer a variety of sweet, salty, or spicy alternatives as relevant. Keep the tone encouraging and practical. "+
			"Answer the following question: '{{.user_input}}'")

	register(IntentMealPlanner, []string{FieldCyclePhase, FieldCravings, FieldDietarySpecs, FieldCuisine, FieldAllergies},
		"You are a nutritionist specializing in menstrual health. Create a detailed daily meal plan with breakfast, lunch, and dinner, considering the user's cycle phase ({{.cycle_phase}}), "+
			"cravings ({{.cravings}}), dietary specifications ({{.dietary_specs}}), preferred cuisine ({{.cuisine}}), and allergies ({{.allergies}}). "+
			"Ensure the meals are nutritious, satisfying, and help manage common menstrual symptoms. Provide the plan in the following format:\n"+
			"**Breakfast:** [meal]\n**Lunch:** [meal]\n**Dinner:** [meal]")

	register(IntentFertility, []string{FieldUserInput},
		"You are a menstrual health assistant specializing in fertility, ovulation, and menstrual cycles. "+
			"Answer the question: '{{.user_input}}' directly, without adding unrelated information. "+
			"Explain fertility concepts clearly, including ovulation signs, fertility windows, and conception tips if relevant. "+
			"Maintain a supportive tone, avoid jargon, and only mention additional symptoms or fertility challenges if specifically asked.")

	register(IntentPuberty, []string{FieldUserInput},
		"You are a menstrual health assistant helping individuals understand puberty, periods, and menstrual health. "+
			"Answer the question: '{{.user_input}}' directly, without discussing unrelated topics. "+
			"Use clear, factual, and empathetic language, and explain biological processes simply. "+
			"If the question involves symptoms like cramps or mood swings, provide practical tips, but do not mention other symptoms unless asked.")
}

// Template returns the library entry for intent.
func Template(intent Intent) (*PromptTemplate, bool) {
	pt, ok := promptTemplates[intent]
	return pt, ok
}

// Compose fills the intent's template from the profile and the raw question.
// The question is inserted verbatim.
func Compose(intent Intent, profile database.Profile, question string) (string, error) {
	pt, ok := promptTemplates[intent]
	if !ok {
		return "", fmt.Errorf("%w: no template for intent %q", ErrTemplateContract, intent)
	}

	available := profileFields(profile, question)
	selected := make(map[string]string, len(pt.Fields))
	for _, f := range pt.Fields {
		v, ok := available[f]
		if !ok {
			return "", fmt.Errorf("%w: template %q declares unknown field %q", ErrTemplateContract, intent, f)
		}
		selected[f] = v
	}

	var b strings.Builder
	if err := pt.tmpl.Execute(&b, selected); err != nil {
		return "", fmt.Errorf("%w: template %q: %v", ErrTemplateContract, intent, err)
	}
	return b.String(), nil
}

func profileFields(p database.Profile, question string) map[string]string {
	return map[string]string{
		FieldUserInput:    question,
		FieldCyclePhase:   string(p.CyclePhase),
		FieldCravings:     p.Cravings,
		FieldDietarySpecs: valueOr(p.DietarySpecs, DefaultDietarySpecs),
		FieldCuisine:      valueOr(p.Cuisine, DefaultCuisine),
		FieldAllergies:    valueOr(p.Allergies, DefaultAllergies),
	}
}

func valueOr(v *string, fallback string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return fallback
	}
	return *v
}
