package semantics

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Topic tags produced by the built-in vocabulary.
const (
	TopicWaitingPeriod = "waiting_period"
	TopicExclusion     = "exclusion"
	TopicCoverage      = "coverage"
	TopicProcedureList = "procedure_list"
)

// Treatment tags produced by the built-in vocabulary.
const (
	TreatmentCataract         = "cataract"
	TreatmentEye              = "eye_treatment"
	TreatmentJointReplacement = "joint_replacement"
	TreatmentAccident         = "accident"
)

// ErrInvalidVocabulary is returned when a vocabulary is missing or malformed.
var ErrInvalidVocabulary = errors.New("semantics: invalid vocabulary")

//go:embed vocabulary.yaml
var builtinVocabulary []byte

// Vocabulary is the versioned tag configuration: for each tag name, an
// ordered list of case-insensitive substring patterns. It is loaded once at
// startup and never mutated afterwards.
type Vocabulary struct {
	Version    string              `json:"version" yaml:"version"`
	Topics     map[string][]string `json:"topics" yaml:"topics"`
	Treatments map[string][]string `json:"treatments" yaml:"treatments"`
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() Vocabulary {
	v, err := ParseVocabulary(builtinVocabulary)
	if err != nil {
		// The embedded file is part of the build.
		panic(fmt.Sprintf("semantics: built-in vocabulary: %v", err))
	}
	return v
}

// LoadVocabulary reads and validates a YAML (or JSON) vocabulary file.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("%w: reading %s: %v", ErrInvalidVocabulary, path, err)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes and validates vocabulary bytes. JSON input is
// accepted since it is valid YAML.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("%w: %v", ErrInvalidVocabulary, err)
	}
	if err := v.Validate(); err != nil {
		return Vocabulary{}, err
	}
	return v, nil
}

// Validate checks that the vocabulary is usable by a Tagger.
func (v Vocabulary) Validate() error {
	if strings.TrimSpace(v.Version) == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidVocabulary)
	}
	if len(v.Topics) == 0 && len(v.Treatments) == 0 {
		return fmt.Errorf("%w: no tags defined", ErrInvalidVocabulary)
	}
	for _, table := range []struct {
		kind string
		tags map[string][]string
	}{
		{"topic", v.Topics},
		{"treatment", v.Treatments},
	} {
		for tag, patterns := range table.tags {
			if strings.TrimSpace(tag) == "" {
				return fmt.Errorf("%w: empty %s tag name", ErrInvalidVocabulary, table.kind)
			}
			if len(patterns) == 0 {
				return fmt.Errorf("%w: %s tag %q has no patterns", ErrInvalidVocabulary, table.kind, tag)
			}
			for _, p := range patterns {
				if strings.TrimSpace(p) == "" {
					return fmt.Errorf("%w: %s tag %q has an empty pattern", ErrInvalidVocabulary, table.kind, tag)
				}
			}
		}
	}
	return nil
}

// TopicTags returns the sorted topic tag names.
func (v Vocabulary) TopicTags() []string { return sortedKeys(v.Topics) }

// TreatmentTags returns the sorted treatment tag names.
func (v Vocabulary) TreatmentTags() []string { return sortedKeys(v.Treatments) }

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
