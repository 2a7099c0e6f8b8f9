package policyreason

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/policyreason/eligibility"
	"github.com/brunobiangulo/policyreason/semantics"
)

// fakeRetriever returns fresh copies of fixed clauses.
type fakeRetriever struct {
	clauses []semantics.Clause
	err     error
	gotTopK int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, topK int) ([]semantics.Clause, error) {
	f.gotTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	out := make([]semantics.Clause, len(f.clauses))
	copy(out, f.clauses)
	return out, nil
}

func newTestPipeline(t *testing.T, r Retriever) *Pipeline {
	t.Helper()
	p, err := NewPipeline(r, semantics.DefaultVocabulary(), PipelineOptions{})
	require.NoError(t, err)
	return p
}

func TestEvaluateWaitingPeriodRejects(t *testing.T) {
	r := &fakeRetriever{clauses: []semantics.Clause{
		semantics.NewClause("Pre-existing conditions are subject to a waiting period of 24 months.", "5", "policy.pdf", 0.81),
		semantics.NewClause("Cataract surgery is payable up to the sub-limit.", "9", "policy.pdf", 0.77),
	}}
	p := newTestPipeline(t, r)

	d, err := p.Evaluate(context.Background(), "Is cataract surgery covered in the first year?")
	require.NoError(t, err)
	assert.Equal(t, eligibility.Rejected, d.Decision)
	assert.Equal(t, "A waiting-period constraint applies based on relevant policy clauses.", d.Reason)
	assert.Equal(t, 3, d.Confidence)
	require.Len(t, d.Evidence, 2)
	assert.Equal(t, "9", d.Evidence[0].Page)
	assert.Equal(t, "5", d.Evidence[1].Page)
	assert.Equal(t, 5, r.gotTopK)
}

func TestEvaluateAccidentApproves(t *testing.T) {
	r := &fakeRetriever{clauses: []semantics.Clause{
		semantics.NewClause("Surgery required due to a road accident is covered.", "2", "policy.pdf", 0.88),
		semantics.NewClause("Hospitalisation following an accident or injury is eligible for benefit.", "7", "policy.pdf", 0.74),
	}}
	p := newTestPipeline(t, r)

	d, err := p.Evaluate(context.Background(), "Is surgery after a road accident covered?")
	require.NoError(t, err)
	assert.Equal(t, eligibility.Approved, d.Decision)
	assert.Equal(t, 2, d.Confidence)
	assert.Len(t, d.Evidence, 2)
}

func TestEvaluateNoClauses(t *testing.T) {
	p := newTestPipeline(t, &fakeRetriever{})

	d, err := p.Evaluate(context.Background(), "Is dental implant covered?")
	require.NoError(t, err)
	assert.Equal(t, eligibility.NeedsReview, d.Decision)
	assert.Equal(t, 0, d.Confidence)
	assert.NotNil(t, d.Evidence)
	assert.Empty(t, d.Evidence)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"decision": "Needs Review",
		"reason": "The policy clauses provide mixed or insufficient signals to make a final determination.",
		"confidence": 0,
		"evidence": []
	}`, string(data))
}

func TestEvaluateErrors(t *testing.T) {
	retrievalErr := errors.New("connection refused")
	p := newTestPipeline(t, &fakeRetriever{err: retrievalErr})

	_, err := p.Evaluate(context.Background(), "Is cataract covered?")
	assert.ErrorIs(t, err, ErrRetrievalFailed)

	_, err = p.Evaluate(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestTraceMergesDuplicatePages(t *testing.T) {
	r := &fakeRetriever{clauses: []semantics.Clause{
		semantics.NewClause("Pre-existing conditions are subject to a waiting period of 24 months.", "5", "policy.pdf", 0.61),
		semantics.NewClause("Cataract surgery is payable up to the sub-limit.", "5", "annex.pdf", 0.77),
	}}
	p := newTestPipeline(t, r)

	tr, err := p.Trace(context.Background(), "cataract")
	require.NoError(t, err)
	require.Len(t, tr.Clauses, 1)
	c := tr.Clauses[0]
	assert.Equal(t, "policy.pdf", c.Source)
	assert.Equal(t, 0.77, c.SimilarityScore)
	assert.Contains(t, c.Topics, semantics.TopicWaitingPeriod)
	assert.Contains(t, c.Treatments, semantics.TreatmentCataract)

	// one node, no edges, no paths
	assert.Equal(t, 0, tr.Graph.EdgeCount())
	assert.Empty(t, tr.Paths)
	assert.Equal(t, eligibility.NeedsReview, tr.Decision.Decision)
	assert.Equal(t, "cataract", tr.Query)
}

func TestTraceIsDeterministic(t *testing.T) {
	r := &fakeRetriever{clauses: []semantics.Clause{
		semantics.NewClause("Pre-existing conditions are subject to a waiting period of 24 months.", "5", "policy.pdf", 0.81),
		semantics.NewClause("Cataract surgery is payable up to the sub-limit.", "9", "policy.pdf", 0.77),
		semantics.NewClause("Laser eye procedures are excluded.", "12", "policy.pdf", 0.52),
	}}
	p := newTestPipeline(t, r)

	first, err := p.Trace(context.Background(), "cataract")
	require.NoError(t, err)
	second, err := p.Trace(context.Background(), "cataract")
	require.NoError(t, err)

	first.ElapsedMs, second.ElapsedMs = 0, 0
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestNewPipelineRejectsInvalidVocabulary(t *testing.T) {
	_, err := NewPipeline(&fakeRetriever{}, semantics.Vocabulary{}, PipelineOptions{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
