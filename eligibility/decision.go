// Package eligibility reduces a structured explanation to a final
// Approved / Rejected / Needs Review decision.
package eligibility

import (
	"slices"
	"strings"

	"github.com/brunobiangulo/policyreason/reasoning"
)

// Outcome is the final eligibility verdict.
type Outcome string

const (
	Approved    Outcome = "Approved"
	Rejected    Outcome = "Rejected"
	NeedsReview Outcome = "Needs Review"
)

// TopicException is checked by the decision table but not produced by the
// built-in vocabulary. A custom vocabulary may define it.
const TopicException = "exception"

// Evidence is one clause that backed the decision.
type Evidence struct {
	Page       string   `json:"page"`
	Topics     []string `json:"topics"`
	Treatments []string `json:"treatments"`
}

// Decision is the terminal output of an evaluation.
type Decision struct {
	Decision   Outcome    `json:"decision"`
	Reason     string     `json:"reason"`
	Confidence int        `json:"confidence"`
	Evidence   []Evidence `json:"evidence"`
}

// Signals are the booleans the decision table is evaluated against.
type Signals struct {
	WaitingConstraint bool `json:"waiting_constraint"`
	TreatmentClause   bool `json:"treatment_clause"`
	Exception         bool `json:"exception"`
}

// Rule is one row of the decision table.
type Rule struct {
	ID      string
	Outcome Outcome
	Reason  string
	Match   func(Signals) bool
}

// rules is evaluated in order; the first match wins. The final row always
// matches.
var rules = []Rule{
	{
		ID:      "waiting-period-constraint",
		Outcome: Rejected,
		Reason:  "A waiting-period constraint applies based on relevant policy clauses.",
		Match:   func(s Signals) bool { return s.WaitingConstraint && !s.Exception },
	},
	{
		ID:      "covered-treatment",
		Outcome: Approved,
		Reason:  "The treatment is covered and no restricting conditions were identified.",
		Match:   func(s Signals) bool { return s.TreatmentClause && !s.WaitingConstraint },
	},
	{
		ID:      "insufficient-signal",
		Outcome: NeedsReview,
		Reason:  "The policy clauses provide mixed or insufficient signals to make a final determination.",
		Match:   func(Signals) bool { return true },
	},
}

// Rules returns a copy of the decision table in evaluation order.
func Rules() []Rule {
	return slices.Clone(rules)
}

// Detect derives the decision signals from an explanation's details.
func Detect(exp reasoning.Explanation) Signals {
	var s Signals
	for _, d := range exp.Details {
		if strings.Contains(strings.ToLower(d.Explanation), reasoning.WaitingPeriodPhrase) {
			s.WaitingConstraint = true
		}
		if len(d.Treatments) > 0 {
			s.TreatmentClause = true
		}
		if slices.Contains(d.Topics, TopicException) {
			s.Exception = true
		}
	}
	return s
}

// Decide applies the decision table to an explanation.
func Decide(exp reasoning.Explanation) Decision {
	s := Detect(exp)
	rule := rules[len(rules)-1]
	for _, r := range rules {
		if r.Match(s) {
			rule = r
			break
		}
	}

	evidence := make([]Evidence, len(exp.Details))
	for i, d := range exp.Details {
		evidence[i] = Evidence{Page: d.Page, Topics: d.Topics, Treatments: d.Treatments}
	}

	return Decision{
		Decision:   rule.Outcome,
		Reason:     rule.Reason,
		Confidence: exp.Confidence(),
		Evidence:   evidence,
	}
}
