package reasoning

import (
	"log/slog"
	"strings"

	"github.com/brunobiangulo/policyreason/graph"
	"github.com/brunobiangulo/policyreason/semantics"
)

// WaitingPeriodPhrase marks clause explanations that describe a
// waiting-period condition.
const WaitingPeriodPhrase = "waiting-period"

const (
	summaryNoPath = "No sufficient clause relationships were found to explain the policy impact."

	summaryWaitingPeriod = "The policy clauses jointly indicate that the queried treatment " +
		"is subject to procedural conditions, including a waiting-period constraint."

	summaryContext = "The policy clauses collectively provide procedural and coverage context " +
		"relevant to the queried treatment."
)

// Detail is the per-clause part of an explanation.
type Detail struct {
	Page        string   `json:"page"`
	Topics      []string `json:"topics"`
	Treatments  []string `json:"treatments"`
	Explanation string   `json:"explanation"`
}

// Explanation is derived from the single top-ranked path. Relations and
// ConfidenceScore are nil when no path exists.
type Explanation struct {
	Summary         string           `json:"summary"`
	Details         []Detail         `json:"details"`
	Relations       []graph.Relation `json:"relations,omitempty"`
	ConfidenceScore *int             `json:"confidence_score,omitempty"`
}

// Confidence returns the confidence score, or 0 when absent.
func (e Explanation) Confidence() int {
	if e.ConfidenceScore == nil {
		return 0
	}
	return *e.ConfidenceScore
}

// clauseRules is evaluated top to bottom; the first match wins.
var clauseRules = []struct {
	match func(semantics.Clause) bool
	text  string
}{
	{
		match: func(c semantics.Clause) bool { return c.HasTopic(semantics.TopicWaitingPeriod) },
		text:  "This clause introduces a waiting-period condition that may restrict eligibility until a specified duration is met.",
	},
	{
		match: func(c semantics.Clause) bool { return len(c.Treatments) > 0 },
		text:  "This clause refers to procedures related to the queried treatment category.",
	},
	{
		match: func(c semantics.Clause) bool { return c.HasTopic(semantics.TopicCoverage) },
		text:  "This clause outlines general coverage provisions applicable to medical procedures.",
	},
	{
		match: func(c semantics.Clause) bool { return c.HasTopic(semantics.TopicExclusion) },
		text:  "This clause describes exclusions that may limit policy applicability.",
	},
}

const explainContext = "This clause provides contextual policy information relevant to the procedure."

// ExplainClause returns the one-sentence explanation for a clause.
func ExplainClause(c semantics.Clause) string {
	for _, r := range clauseRules {
		if r.match(c) {
			return r.text
		}
	}
	return explainContext
}

// BuildExplanation explains the highest-ranked path. Pages missing from
// clauses are skipped.
func BuildExplanation(paths []Path, clauses []semantics.Clause) Explanation {
	if len(paths) == 0 {
		return Explanation{Summary: summaryNoPath, Details: []Detail{}}
	}

	top := paths[0]
	byPage := make(map[string]semantics.Clause, len(clauses))
	for _, c := range clauses {
		if _, ok := byPage[c.PageNumber]; !ok {
			byPage[c.PageNumber] = c
		}
	}

	details := make([]Detail, 0, len(top.Clauses))
	for _, pc := range top.Clauses {
		c, ok := byPage[pc.Page]
		if !ok {
			slog.Debug("reasoning: path page missing from clause index", "page", pc.Page)
			continue
		}
		details = append(details, Detail{
			Page:        pc.Page,
			Topics:      c.Topics,
			Treatments:  c.Treatments,
			Explanation: ExplainClause(c),
		})
	}

	score := top.Score
	return Explanation{
		Summary:         summarize(details),
		Details:         details,
		Relations:       top.Relations,
		ConfidenceScore: &score,
	}
}

func summarize(details []Detail) string {
	for _, d := range details {
		if strings.Contains(d.Explanation, WaitingPeriodPhrase) {
			return summaryWaitingPeriod
		}
	}
	return summaryContext
}
