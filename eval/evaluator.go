// Package eval measures decision accuracy over a dataset of eligibility
// questions with known outcomes.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/brunobiangulo/policyreason/eligibility"
)

// Decider answers an eligibility question. Both policyreason.Engine and
// *policyreason.Pipeline satisfy it.
type Decider interface {
	Evaluate(ctx context.Context, query string) (*eligibility.Decision, error)
}

// Evaluator runs evaluation datasets against a Decider.
type Evaluator struct {
	decider Decider
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(d Decider) *Evaluator {
	return &Evaluator{decider: d}
}

// Report holds the results of an evaluation run.
type Report struct {
	Dataset    string                            `json:"dataset"`
	TotalTests int                               `json:"total_tests"`
	Passed     int                               `json:"passed"`
	Failed     int                               `json:"failed"`
	Errors     int                               `json:"errors"`
	Accuracy   float64                           `json:"accuracy"`
	Confusion  map[eligibility.Outcome]Confusion `json:"confusion"`
	Categories map[string]CategoryResult         `json:"categories,omitempty"`
	Results    []TestResult                      `json:"results"`
	RunTime    time.Duration                     `json:"run_time"`
}

// Confusion counts, for one expected outcome, what the engine decided.
type Confusion map[eligibility.Outcome]int

// CategoryResult is the pass count for one test category.
type CategoryResult struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
}

// TestResult holds the result of a single test case.
type TestResult struct {
	Question   string              `json:"question"`
	Category   string              `json:"category,omitempty"`
	Expected   eligibility.Outcome `json:"expected"`
	Actual     eligibility.Outcome `json:"actual,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	Confidence int                 `json:"confidence"`
	Evidence   []string            `json:"evidence_pages,omitempty"`
	Passed     bool                `json:"passed"`
	Error      string              `json:"error,omitempty"`
	ElapsedMs  int64               `json:"elapsed_ms"`
}

// Run executes every test case in order. A case that errors counts as
// failed and is excluded from the confusion matrix.
func (e *Evaluator) Run(ctx context.Context, dataset Dataset) (*Report, error) {
	start := time.Now()
	report := &Report{
		Dataset:    dataset.Name,
		TotalTests: len(dataset.Tests),
		Confusion:  make(map[eligibility.Outcome]Confusion),
		Categories: make(map[string]CategoryResult),
	}

	for i, test := range dataset.Tests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := e.runTest(ctx, test)
		report.Results = append(report.Results, result)

		status := "PASS"
		switch {
		case result.Error != "":
			status = "ERROR"
			report.Errors++
		case !result.Passed:
			status = "FAIL"
		}

		slog.Info("eval: test complete",
			"progress", fmt.Sprintf("%d/%d", i+1, len(dataset.Tests)),
			"status", status,
			"expected", result.Expected,
			"actual", result.Actual,
			"confidence", result.Confidence,
			"elapsed_ms", result.ElapsedMs,
			"question", truncate(test.Question, 80))

		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}

		if result.Error == "" {
			row := report.Confusion[result.Expected]
			if row == nil {
				row = make(Confusion)
				report.Confusion[result.Expected] = row
			}
			row[result.Actual]++
		}

		if test.Category != "" {
			cat := report.Categories[test.Category]
			cat.Total++
			if result.Passed {
				cat.Passed++
			}
			report.Categories[test.Category] = cat
		}
	}

	report.Accuracy = passRate(report.Passed, report.TotalTests)
	report.RunTime = time.Since(start)
	return report, nil
}

func (e *Evaluator) runTest(ctx context.Context, test TestCase) TestResult {
	start := time.Now()
	result := TestResult{
		Question: test.Question,
		Category: test.Category,
		Expected: test.ExpectedDecision,
	}

	d, err := e.decider.Evaluate(ctx, test.Question)
	result.ElapsedMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Actual = d.Decision
	result.Reason = d.Reason
	result.Confidence = d.Confidence
	for _, ev := range d.Evidence {
		result.Evidence = append(result.Evidence, ev.Page)
	}
	result.Passed = d.Decision == test.ExpectedDecision
	return result
}

// FormatReport renders a report as plain text.
func FormatReport(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", r.Dataset)
	fmt.Fprintf(&b, "Tests: %d  Passed: %d  Failed: %d  Errors: %d  Accuracy: %.1f%%  (%s)\n",
		r.TotalTests, r.Passed, r.Failed, r.Errors, r.Accuracy*100, r.RunTime.Round(time.Millisecond))

	if len(r.Categories) > 0 {
		b.WriteString("\nBy category:\n")
		cats := make([]string, 0, len(r.Categories))
		for c := range r.Categories {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			cr := r.Categories[c]
			fmt.Fprintf(&b, "  %-20s %d/%d\n", c, cr.Passed, cr.Total)
		}
	}

	b.WriteString("\nResults:\n")
	for i, res := range r.Results {
		status := "PASS"
		if res.Error != "" {
			status = "ERROR"
		} else if !res.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "  %2d. [%s] %s\n", i+1, status, truncate(res.Question, 90))
		if res.Error != "" {
			fmt.Fprintf(&b, "      error: %s\n", res.Error)
			continue
		}
		fmt.Fprintf(&b, "      expected %s, got %s (confidence %d, pages %s)\n",
			res.Expected, res.Actual, res.Confidence, strings.Join(res.Evidence, ","))
	}
	return b.String()
}

func passRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
