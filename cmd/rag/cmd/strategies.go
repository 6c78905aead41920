package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hybridrag/internal/domain"
)

func newStrategiesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List chunking strategies in selection order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := buildStrategies(root.cfg.Chunker, root.logger)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tOVERLAP\tRULES")
			for _, s := range reg.Strategies() {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Name, s.ChunkSize, s.ChunkOverlap, describeRules(s.DetectionRules))
			}
			d := reg.Default()
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", d.Name, d.ChunkSize, d.ChunkOverlap, "(fallback)")
			return tw.Flush()
		},
	}
}

func describeRules(r domain.DetectionRules) string {
	var parts []string
	if len(r.SourcePatterns) > 0 {
		parts = append(parts, "source="+strings.Join(r.SourcePatterns, ","))
	}
	if len(r.DocumentTypes) > 0 {
		parts = append(parts, "type="+strings.Join(r.DocumentTypes, ","))
	}
	if len(r.ContentContains) > 0 {
		parts = append(parts, "contains="+strings.Join(r.ContentContains, ","))
	}
	if r.ContainsHangul {
		parts = append(parts, "hangul")
	}
	if r.MinContentLength > 0 {
		parts = append(parts, fmt.Sprintf("min=%d", r.MinContentLength))
	}
	if r.MaxContentLength > 0 {
		parts = append(parts, fmt.Sprintf("max=%d", r.MaxContentLength))
	}
	if len(parts) == 0 {
		return "(by name only)"
	}
	return strings.Join(parts, " ")
}
