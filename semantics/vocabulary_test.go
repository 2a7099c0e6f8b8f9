package semantics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVocabulary(t *testing.T) {
	v := DefaultVocabulary()
	assert.Equal(t, "1", v.Version)
	assert.Equal(t,
		[]string{TopicCoverage, TopicExclusion, TopicProcedureList, TopicWaitingPeriod},
		v.TopicTags())
	assert.Equal(t,
		[]string{TreatmentAccident, TreatmentCataract, TreatmentEye, TreatmentJointReplacement},
		v.TreatmentTags())
}

func TestParseVocabularyErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed yaml", "version: [unterminated"},
		{"missing version", "topics:\n  coverage: [covered]\n"},
		{"no tags", "version: \"1\"\n"},
		{"tag without patterns", "version: \"1\"\ntopics:\n  coverage: []\n"},
		{"blank pattern", "version: \"1\"\ntreatments:\n  cataract: [\"  \"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVocabulary([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidVocabulary)
		})
	}
}

func TestLoadVocabulary(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "vocab.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"version":"3","topics":{"coverage":["covered"]},"treatments":{}}`), 0o644))
	v, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Equal(t, "3", v.Version)
	assert.Equal(t, []string{"coverage"}, v.TopicTags())

	_, err = LoadVocabulary(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidVocabulary)
}

func TestNewTaggerRejectsInvalid(t *testing.T) {
	_, err := NewTagger(Vocabulary{})
	assert.ErrorIs(t, err, ErrInvalidVocabulary)
	assert.Panics(t, func() { MustNewTagger(Vocabulary{}) })
}
