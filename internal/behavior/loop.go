package behavior

import (
	"sort"
	"strings"
	"time"
)

// State is the lifecycle stage of a behavior loop.
type State string

const (
	StateCandidate    State = "candidate"
	StateCrystallized State = "crystallized"
	StateActive       State = "active"
	StateDormant      State = "dormant"
	StateRemoved      State = "removed"
)

// Loop is a crystallized stimulus-response association. Once a pattern has
// proven reliable it is promoted into a loop that can be matched and
// triggered directly, without going through pattern resonance again.
type Loop struct {
	ID            string    `json:"id"`
	Trigger       []string  `json:"trigger"`
	Response      []string  `json:"response"`
	Category      string    `json:"category,omitempty"`
	State         State     `json:"state"`
	Strength      float64   `json:"strength"`
	SuccessCount  int       `json:"success_count"`
	FailureCount  int       `json:"failure_count"`
	Signature     string    `json:"signature"`
	CreatedAt     time.Time `json:"created_at"`
	LastTriggered time.Time `json:"last_triggered,omitempty"`
}

// signature builds the resonance signature: the sorted concatenation of
// trigger and response features. Two loops with the same signature are the
// same behavior.
func signature(trigger, response []string) string {
	all := make([]string, 0, len(trigger)+len(response))
	all = append(all, trigger...)
	all = append(all, response...)
	sort.Strings(all)
	return strings.Join(all, "|")
}

// featureOverlap is the normalized set overlap between two feature sets.
func featureOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, f := range a {
		set[f] = true
	}
	inter := 0
	seen := make(map[string]bool, len(b))
	for _, f := range b {
		if seen[f] {
			continue
		}
		seen[f] = true
		if set[f] {
			inter++
		}
	}
	union := len(set) + len(seen) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// unionFeatures merges two feature sets, deduplicated and sorted.
func unionFeatures(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, f := range a {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range b {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
