package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/policyreason/eval"
)

func newEvalCommand(root *rootOptions) *cobra.Command {
	var (
		datasetPath string
		asJSON      bool
		minAccuracy float64
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure decision accuracy over a dataset of questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds := eval.PolicyDataset()
			if datasetPath != "" {
				var err error
				if ds, err = eval.LoadDataset(datasetPath); err != nil {
					return err
				}
			}

			e, err := root.openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			report, err := eval.NewEvaluator(e).Run(cmd.Context(), ds)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), eval.FormatReport(report))
			}

			if report.Accuracy < minAccuracy {
				return fmt.Errorf("accuracy %.2f below threshold %.2f", report.Accuracy, minAccuracy)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&datasetPath, "dataset", "d", "", "YAML or JSON dataset (default: built-in policy cases)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().Float64Var(&minAccuracy, "min-accuracy", 0, "fail when accuracy is below this fraction")
	return cmd
}
