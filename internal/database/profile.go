package database

// CyclePhase is the menstrual cycle phase a user reports at onboarding.
type CyclePhase string

const (
	PhaseMenstrual  CyclePhase = "menstrual"
	PhaseFollicular CyclePhase = "follicular"
	PhaseOvulatory  CyclePhase = "ovulatory"
	PhaseLuteal     CyclePhase = "luteal"
)

// CyclePhases lists the accepted phases in cycle order.
var CyclePhases = []CyclePhase{PhaseMenstrual, PhaseFollicular, PhaseOvulatory, PhaseLuteal}

// Valid reports whether p is one of the four known phases.
func (p CyclePhase) Valid() bool {
	for _, known := range CyclePhases {
		if p == known {
			return true
		}
	}
	return false
}

// Profile is one user's persisted record, keyed by identity in the store.
// The meal-planner fields stay nil until the meal-planner flow fills them.
// LastInteraction is informational only and kept as written.
type Profile struct {
	Name            string     `json:"name"`
	Age             int        `json:"age"`
	CyclePhase      CyclePhase `json:"cycle_phase"`
	Cravings        string     `json:"cravings"`
	DietarySpecs    *string    `json:"dietary_specs"`
	Cuisine         *string    `json:"cuisine"`
	Allergies       *string    `json:"allergies"`
	LastInteraction string     `json:"last_interaction"`
}

// Profiles is the whole persisted collection.
type Profiles map[string]Profile
