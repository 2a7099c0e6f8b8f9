package semantics

import (
	"fmt"
	"strings"
)

// Tags is the output of tagging one piece of clause text.
type Tags struct {
	Topics            []string `json:"topics"`
	Treatments        []string `json:"treatments"`
	MentionsTreatment bool     `json:"mentions_treatment"`
}

type tagRule struct {
	tag      string
	patterns []string // lowercased
}

// Tagger maps clause text to topic and treatment tags by case-insensitive
// substring matching against a Vocabulary. A Tagger is immutable and safe
// for concurrent use.
type Tagger struct {
	version    string
	topics     []tagRule
	treatments []tagRule
}

// NewTagger compiles a validated vocabulary into a Tagger.
func NewTagger(v Vocabulary) (*Tagger, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &Tagger{
		version:    v.Version,
		topics:     compileRules(v.Topics),
		treatments: compileRules(v.Treatments),
	}, nil
}

// MustNewTagger is like NewTagger but panics on an invalid vocabulary.
func MustNewTagger(v Vocabulary) *Tagger {
	t, err := NewTagger(v)
	if err != nil {
		panic(fmt.Sprintf("semantics: %v", err))
	}
	return t
}

// compileRules lowercases patterns and orders rules by tag name so that the
// produced tag slices come out sorted.
func compileRules(table map[string][]string) []tagRule {
	rules := make([]tagRule, 0, len(table))
	for _, tag := range sortedKeys(table) {
		patterns := make([]string, len(table[tag]))
		for i, p := range table[tag] {
			patterns[i] = strings.ToLower(p)
		}
		rules = append(rules, tagRule{tag: tag, patterns: patterns})
	}
	return rules
}

// Version reports the vocabulary version the tagger was built from.
func (t *Tagger) Version() string { return t.version }

// Tag returns the tags present in text. Tags are independent: no negation
// handling, no overlap resolution, and zero tags is a valid result.
func (t *Tagger) Tag(text string) Tags {
	lower := strings.ToLower(text)
	tags := Tags{
		Topics:     matchRules(t.topics, lower),
		Treatments: matchRules(t.treatments, lower),
	}
	tags.MentionsTreatment = len(tags.Treatments) > 0
	return tags
}

// TagClauses enriches every clause in place.
func (t *Tagger) TagClauses(clauses []Clause) {
	for i := range clauses {
		clauses[i].Apply(t.Tag(clauses[i].Text))
	}
}

func matchRules(rules []tagRule, lower string) []string {
	matched := []string{}
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(lower, p) {
				matched = append(matched, r.tag)
				break
			}
		}
	}
	return matched
}
