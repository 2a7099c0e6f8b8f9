package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/policyreason"
)

const (
	clausePreviewChars = 900
	printedPaths       = 5
)

func newEvaluateCommand(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "evaluate <query>",
		Short: "Decide eligibility for a query and print every reasoning stage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			t, err := e.Trace(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(t)
			}
			return printTrace(cmd.OutOrStdout(), t)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full trace as JSON")
	return cmd
}

// printTrace renders a trace for humans. It only reads t.
func printTrace(w io.Writer, t *policyreason.Trace) error {
	fmt.Fprintf(w, "Query: %s\n", t.Query)

	fmt.Fprintf(w, "\n=== Retrieved clauses (%d) ===\n", len(t.Clauses))
	for i, c := range t.Clauses {
		fmt.Fprintf(w, "\n[%d] page %s, %s (similarity %.4f)\n", i+1, c.PageNumber, c.Source, c.SimilarityScore)
		fmt.Fprintf(w, "    topics: %s\n", strings.Join(c.Topics, ", "))
		fmt.Fprintf(w, "    treatments: %s\n", strings.Join(c.Treatments, ", "))
		fmt.Fprintf(w, "    %s\n", preview(c.Text, clausePreviewChars))
	}

	fmt.Fprintf(w, "\n=== Clause graph (%d nodes, %d edges) ===\n", t.Graph.Len(), t.Graph.EdgeCount())
	for _, page := range t.Graph.Nodes() {
		for _, edge := range t.Graph.Edges(page) {
			var rels []string
			for _, r := range edge.Relations {
				rels = append(rels, fmt.Sprintf("%s%v", r.Type, r.Value))
			}
			fmt.Fprintf(w, "  %s -> %s: %s\n", page, edge.ConnectedTo, strings.Join(rels, ", "))
		}
	}

	fmt.Fprintf(w, "\n=== Reasoning paths (%d, top %d shown) ===\n", len(t.Paths), min(len(t.Paths), printedPaths))
	for i, p := range t.Paths[:min(len(t.Paths), printedPaths)] {
		var rels []string
		for _, r := range p.Relations {
			rels = append(rels, string(r.Type))
		}
		fmt.Fprintf(w, "  %d. score %d: pages %s via %s\n", i+1, p.Score,
			strings.Join(p.Pages(), " -> "), strings.Join(rels, ", "))
	}

	fmt.Fprintf(w, "\n=== Explanation ===\n%s\n", t.Explanation.Summary)
	for _, d := range t.Explanation.Details {
		fmt.Fprintf(w, "  page %s: %s\n", d.Page, d.Explanation)
	}

	fmt.Fprintf(w, "\n=== Decision ===\n%s (confidence %d)\n%s\n",
		t.Decision.Decision, t.Decision.Confidence, t.Decision.Reason)
	return nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
