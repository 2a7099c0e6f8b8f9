package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/policyreason"
)

func newIngestCommand(root *rootOptions) *cobra.Command {
	var (
		force  bool
		source string
	)
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Parse, chunk and embed policy documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			var opts []policyreason.IngestOption
			if force {
				opts = append(opts, policyreason.WithForceReparse())
			}
			if source != "" {
				opts = append(opts, policyreason.WithSource(source))
			}

			for _, path := range args {
				id, err := e.Ingest(cmd.Context(), path, opts...)
				if err != nil {
					return fmt.Errorf("ingesting %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ingested %s (document %d)\n", path, id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-ingest even if the file is unchanged")
	cmd.Flags().StringVar(&source, "source", "", "source label for the chunks (default: file name)")
	return cmd
}
