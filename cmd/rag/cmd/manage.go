package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>...",
		Short: "Remove documents from a persistent vector store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), root.cfg, root.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, id := range args {
				n, err := a.service.DeleteDocument(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks removed\n", id, n)
			}
			return nil
		},
	}
}

func newClearCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every record from the vector store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), root.cfg, root.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.service.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records removed\n", n)
			return nil
		},
	}
}
