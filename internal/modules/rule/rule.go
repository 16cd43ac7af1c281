package rule

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmquan2200/edufinai/pkg/apperror"
)

// Event is the activity payload the tracker feeds through rule matching.
// Score and Accuracy are optional; a rule predicate that needs a missing
// field evaluates to no match.
type Event struct {
	EventType string
	Action    string
	Score     *int
	Accuracy  *float64 // percentage 0-100

	// Amount is accepted on the wire (e.g. deposit size) but progress
	// increments are fixed at 1 per qualifying event, so the tracker
	// ignores it.
	Amount *int
}

// Rule is a data-driven predicate set decoded from a challenge's rule_spec.
// All predicates are optional; matching is the conjunction of those present.
type Rule struct {
	EventType   string   `json:"event_type"`
	Action      string   `json:"action"`
	MinScore    *int     `json:"min_score"`
	MaxScore    *int     `json:"max_score"`
	MinAccuracy *float64 `json:"min_accuracy"`
	MaxAccuracy *float64 `json:"max_accuracy"`

	// Count is the rule-supplied fallback target, used when the challenge
	// carries no target value of its own.
	Count *int `json:"count"`
}

// Parse decodes a serialized rule descriptor. Unknown fields are ignored so
// older services keep working when authoring adds new predicates.
func Parse(spec string) (Rule, error) {
	var r Rule
	if strings.TrimSpace(spec) == "" {
		return r, fmt.Errorf("%w: empty descriptor", apperror.ErrInvalidRule)
	}
	if err := json.Unmarshal([]byte(spec), &r); err != nil {
		return r, fmt.Errorf("%w: %v", apperror.ErrInvalidRule, err)
	}
	return r, nil
}

// Matches reports whether ev qualifies under r. Pure and side-effect free.
func (r Rule) Matches(ev Event) bool {
	if r.EventType != "" && r.EventType != ev.EventType {
		return false
	}
	if r.Action != "" && r.Action != ev.Action {
		return false
	}
	if r.MinScore != nil && (ev.Score == nil || *ev.Score < *r.MinScore) {
		return false
	}
	if r.MaxScore != nil && (ev.Score == nil || *ev.Score > *r.MaxScore) {
		return false
	}
	if r.MinAccuracy != nil && (ev.Accuracy == nil || *ev.Accuracy < *r.MinAccuracy) {
		return false
	}
	if r.MaxAccuracy != nil && (ev.Accuracy == nil || *ev.Accuracy > *r.MaxAccuracy) {
		return false
	}
	return true
}

// ResolveTarget picks the progress target for a new progress row: the
// challenge's own target when positive, else the rule's count, else 1.
func ResolveTarget(r Rule, challengeTarget *int) int {
	if challengeTarget != nil && *challengeTarget > 0 {
		return *challengeTarget
	}
	if r.Count != nil && *r.Count > 0 {
		return *r.Count
	}
	return 1
}
