package semantics

import (
	"log/slog"
	"slices"
	"sort"
	"strings"
)

// Sentinels used when retrieval metadata is missing.
const (
	UnknownPage   = "unknown"
	DefaultSource = "policy"
)

// Clause is one retrieved policy snippet. It is created from retrieval
// output, enriched once by a Tagger and read-only afterwards.
type Clause struct {
	Text              string   `json:"clause_text"`
	PageNumber        string   `json:"page_number"`
	Source            string   `json:"source"`
	SimilarityScore   float64  `json:"similarity_score"`
	Topics            []string `json:"topics"`
	Treatments        []string `json:"treatments"`
	MentionsTreatment bool     `json:"mentions_treatment"`
}

// NewClause builds an untagged clause, trimming the text and substituting
// the sentinel page and source when they are empty.
func NewClause(text, page, source string, score float64) Clause {
	if page == "" {
		page = UnknownPage
	}
	if source == "" {
		source = DefaultSource
	}
	return Clause{
		Text:            strings.TrimSpace(text),
		PageNumber:      page,
		Source:          source,
		SimilarityScore: score,
		Topics:          []string{},
		Treatments:      []string{},
	}
}

// Apply copies tagging output onto the clause.
func (c *Clause) Apply(t Tags) {
	c.Topics = t.Topics
	c.Treatments = t.Treatments
	c.MentionsTreatment = t.MentionsTreatment
}

// HasTopic reports whether the clause carries the topic tag.
func (c Clause) HasTopic(topic string) bool {
	return slices.Contains(c.Topics, topic)
}

// MergeByPage collapses clauses that share a page number into a single
// node. Texts are joined in input order, tag sets are unioned, the highest
// similarity score is kept and the first source wins. The relative order of
// first appearance is preserved, so the result is deterministic.
func MergeByPage(clauses []Clause) []Clause {
	index := make(map[string]int, len(clauses))
	merged := make([]Clause, 0, len(clauses))
	for _, c := range clauses {
		i, ok := index[c.PageNumber]
		if !ok {
			index[c.PageNumber] = len(merged)
			merged = append(merged, c)
			continue
		}
		slog.Debug("semantics: merging duplicate page", "page", c.PageNumber)
		m := &merged[i]
		m.Text = m.Text + "\n\n" + c.Text
		m.SimilarityScore = max(m.SimilarityScore, c.SimilarityScore)
		m.Topics = union(m.Topics, c.Topics)
		m.Treatments = union(m.Treatments, c.Treatments)
		m.MentionsTreatment = len(m.Treatments) > 0
	}
	return merged
}

// union returns the sorted, de-duplicated union of a and b.
func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := []string{}
	for _, s := range append(slices.Clone(a), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
