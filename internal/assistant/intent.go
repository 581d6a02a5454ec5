package assistant

import "strings"

// Intent selects which prompt template answers a question.
type Intent string

const (
	IntentGeneralHealth        Intent = "general_health"
	IntentNutrition            Intent = "nutrition"
	IntentChildFriendly        Intent = "child_friendly"
	IntentExercise             Intent = "exercise"
	IntentCravingsAlternatives Intent = "cravings_alternatives"
	IntentMealPlanner          Intent = "meal_planner"
	IntentFertility            Intent = "fertility"
	IntentPuberty              Intent = "puberty"
)

// AdultAge is the first age that is not routed to the child-friendly template.
const AdultAge = 18

// IntentRule is one entry of the ordered classification table.
// A rule matches when every condition it sets holds; Keywords match if any
// one of them is a substring of the lower-cased question.
type IntentRule struct {
	Intent           Intent
	MinorsOnly       bool
	RequiresCravings bool
	Keywords         []string
}

// IntentRules is evaluated top to bottom and the first match wins.
// There is no scoring; order is the only tie-break.
var IntentRules = []IntentRule{
	{Intent: IntentChildFriendly, MinorsOnly: true},
	{Intent: IntentCravingsAlternatives, RequiresCravings: true, Keywords: []string{"alternative"}},
	{Intent: IntentNutrition, Keywords: []string{"nutrition", "diet", "food", "eat"}},
	{Intent: IntentExercise, Keywords: []string{"exercise", "workout", "fitness"}},
	{Intent: IntentFertility, Keywords: []string{"pregnant", "fertility", "ovulation", "get pregnant"}},
	{Intent: IntentPuberty, Keywords: []string{"puberty", "11 years old", "teen", "young"}},
}

// DefaultIntent is returned when no rule matches.
const DefaultIntent = IntentGeneralHealth

// Classify maps a question to an intent. It is pure and always returns a label.
func Classify(question string, age int, cravingsPresent bool) Intent {
	q := strings.ToLower(question)
	for _, rule := range IntentRules {
		if rule.matches(q, age, cravingsPresent) {
			return rule.Intent
		}
	}
	return DefaultIntent
}

func (r IntentRule) matches(lowerQuestion string, age int, cravingsPresent bool) bool {
	if r.MinorsOnly && age >= AdultAge {
		return false
	}
	if r.RequiresCravings && !cravingsPresent {
		return false
	}
	if len(r.Keywords) == 0 {
		return r.MinorsOnly || r.RequiresCravings
	}
	for _, kw := range r.Keywords {
		if strings.Contains(lowerQuestion, kw) {
			return true
		}
	}
	return false
}

// HasCravings reports whether a cravings answer counts as present.
func HasCravings(cravings string) bool {
	return strings.TrimSpace(cravings) != ""
}
