package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDocumentsCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List ingested documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			docs, err := e.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILE\tFORMAT\tSTATUS\tUPDATED")
			for _, d := range docs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", d.ID, d.Filename, d.Format, d.Status, d.UpdatedAt)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}
			e, err := root.openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted document %d\n", id)
			return nil
		},
	})
	return cmd
}
