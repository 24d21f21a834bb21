package identity

import "time"

// Trait is one personality dimension. Value moves with experience and
// drifts back toward the baseline when unreinforced; stability only ever
// increases.
type Trait struct {
	Value         float64   `json:"value"`
	Stability     float64   `json:"stability"`
	LastReinforce time.Time `json:"last_reinforce,omitempty"`
}

// Relationship tracks the bond with one external entity.
type Relationship struct {
	Bond             float64   `json:"bond"`
	Trust            float64   `json:"trust"`
	InteractionCount int       `json:"interaction_count"`
	LastSeen         time.Time `json:"last_seen"`
}

// NarrativeEntry is one significant remembered experience.
type NarrativeEntry struct {
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Significance float64   `json:"significance"`
	At           time.Time `json:"at"`
	Integrated   bool      `json:"integrated"`
}

// SelfModel is the aggregated identity of one owner's creature.
type SelfModel struct {
	OwnerID       string                   `json:"owner_id"`
	Name          string                   `json:"name"`
	SelfConcepts  map[string]float64       `json:"self_concepts"`
	Personality   map[string]*Trait        `json:"personality"`
	Values        map[string]float64       `json:"values"`
	Relationships map[string]*Relationship `json:"relationships"`
	Narrative     []*NarrativeEntry        `json:"narrative"`
	Coherence     float64                  `json:"coherence"`
	SelfAwareness float64                  `json:"self_awareness"`
	Reflections   int                      `json:"reflections"`
}

// Experience is one integrated event from the owner's point of view.
type Experience struct {
	OwnerID     string
	EntityID    string // who the experience was with, if anyone
	Features    []string
	Description string
	Novelty     float64
	Emotion     float64
}

// Description is the outward-facing self-description.
type Description struct {
	Name          string             `json:"name"`
	Personality   map[string]float64 `json:"personality"`
	TopValues     []string           `json:"top_values"`
	Relationships int                `json:"relationships"`
	Coherence     float64            `json:"coherence"`
	SelfAwareness float64            `json:"self_awareness"`
}

// Personality dimensions and the core value each experience category feeds.
const (
	dimOpenness       = "openness"
	dimPlayfulness    = "playfulness"
	dimSociability    = "sociability"
	dimDiligence      = "diligence"
	dimSensitivity    = "sensitivity"
	traitBaseline     = 0.5
	categoryGeneral   = "general"
	categorySocial    = "social"
	categoryLearning  = "learning"
	categoryEmotional = "emotional"
	categoryAchieve   = "achievement"
	categoryPlay      = "play"
)

var dimensions = []string{dimOpenness, dimPlayfulness, dimSociability, dimDiligence, dimSensitivity}

// categoryProfile maps an experience category to the personality dimension
// it nudges, the core value it reinforces, and its base significance.
var categoryProfile = map[string]struct {
	dimension    string
	value        string
	significance float64
}{
	categorySocial:    {dimSociability, "connection", 0.7},
	categoryLearning:  {dimOpenness, "growth", 0.7},
	categoryEmotional: {dimSensitivity, "expression", 0.6},
	categoryAchieve:   {dimDiligence, "mastery", 1.0},
	categoryPlay:      {dimPlayfulness, "joy", 0.5},
	categoryGeneral:   {dimOpenness, "balance", 0.2},
}
