package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/policyreason/eligibility"
)

// Dataset is a collection of test cases for evaluation.
type Dataset struct {
	Name  string     `json:"name" yaml:"name"`
	Tests []TestCase `json:"tests" yaml:"tests"`
}

// TestCase is one eligibility question and the decision it should get.
type TestCase struct {
	Question         string              `json:"question" yaml:"question"`
	ExpectedDecision eligibility.Outcome `json:"expected_decision" yaml:"expected_decision"`
	Category         string              `json:"category,omitempty" yaml:"category,omitempty"`
	Explanation      string              `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// PolicyDataset returns the built-in health-policy regression cases.
func PolicyDataset() Dataset {
	return Dataset{
		Name: "Health Policy - Eligibility",
		Tests: []TestCase{
			{
				Question:         "Is cataract surgery covered under this insurance policy?",
				ExpectedDecision: eligibility.Rejected,
				Category:         "waiting-period",
				Explanation:      "Cataract is listed under the specific waiting period.",
			},
			{
				Question:         "Is knee joint replacement surgery covered if it is not due to an accident?",
				ExpectedDecision: eligibility.Rejected,
				Category:         "waiting-period",
				Explanation:      "Non-accidental joint replacement is subject to a waiting period.",
			},
			{
				Question:         "Is surgery required due to a road accident covered under this policy?",
				ExpectedDecision: eligibility.Approved,
				Category:         "accident",
				Explanation:      "Accidental injuries are covered from day one.",
			},
		},
	}
}

// LoadDataset reads a dataset from a YAML or JSON file, chosen by
// extension. Every case must name a known decision.
func LoadDataset(path string) (Dataset, error) {
	var ds Dataset
	data, err := os.ReadFile(path)
	if err != nil {
		return ds, fmt.Errorf("reading dataset: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &ds)
	default:
		err = yaml.Unmarshal(data, &ds)
	}
	if err != nil {
		return ds, fmt.Errorf("parsing dataset %s: %w", path, err)
	}

	if ds.Name == "" {
		ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	for i, tc := range ds.Tests {
		if strings.TrimSpace(tc.Question) == "" {
			return ds, fmt.Errorf("dataset %s: test %d has no question", path, i+1)
		}
		switch tc.ExpectedDecision {
		case eligibility.Approved, eligibility.Rejected, eligibility.NeedsReview:
		default:
			return ds, fmt.Errorf("dataset %s: test %d: unknown decision %q", path, i+1, tc.ExpectedDecision)
		}
	}
	return ds, nil
}
