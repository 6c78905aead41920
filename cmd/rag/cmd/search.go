package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"hybridrag/internal/domain"
	"hybridrag/internal/errors"
	"hybridrag/internal/service"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	query     string
	limit     int
	weight    float64
	threshold float64
	docType   string
	document  string
	format    string // "text", "json"
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search --query <text> [files...]",
		Short: "Ingest files and print ranked results for one query",
		Long: `Ingest the given files (if any) and run a single hybrid search.

With a persistent vector store (sqlite, qdrant) files may be omitted to
search what is already indexed.

Examples:
  rag search --query "vector search" docs/*.md
  rag search -q "포트폴리오" --weight 0.2 notes/*.txt
  rag search -q "error handling" --type go --format json src/*.go`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.query) == "" {
				return errors.Validationf("--query is required")
			}
			return runSearch(cmd.Context(), cmd, root, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "Query text")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().Float64VarP(&opts.weight, "weight", "w", -1, "Hybrid weight: 0 lexical only, 1 vector only (default from config)")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", -1, "Minimum combined score (default from config)")
	cmd.Flags().StringVarP(&opts.docType, "type", "t", "", "Only return chunks of this document type (file extension)")
	cmd.Flags().StringVar(&opts.document, "document", "", "Only return chunks of this document id")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, root *rootOptions, paths []string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return errors.Validationf("unknown format %q", opts.format)
	}
	a, err := buildApp(ctx, root.cfg, root.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(paths) > 0 {
		report, err := a.service.IngestFiles(ctx, paths)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		for _, f := range report.Failed {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: chunk %s not indexed: %v\n", f.ChunkID, f.Err)
		}
	}
	if n, err := a.service.Count(ctx); err != nil {
		return err
	} else if n == 0 {
		return errors.Validationf("nothing indexed: pass files to ingest")
	}

	qopts := service.QueryOptions{Limit: opts.limit}
	if opts.weight >= 0 {
		qopts.HybridWeight = &opts.weight
	}
	if opts.threshold >= 0 {
		qopts.Threshold = &opts.threshold
	}
	filter := map[string]any{}
	if opts.docType != "" {
		filter[domain.PayloadType] = strings.TrimPrefix(strings.ToLower(opts.docType), ".")
	}
	if opts.document != "" {
		filter[domain.PayloadDocumentID] = opts.document
	}
	if len(filter) > 0 {
		qopts.Filter = filter
	}

	results, err := a.service.Query(ctx, opts.query, qopts)
	if err != nil {
		return err
	}
	if opts.format == "json" {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	writeText(cmd.OutOrStdout(), results)
	return nil
}

type jsonResult struct {
	ID           string  `json:"id"`
	Score        float64 `json:"score"`
	VectorScore  float64 `json:"vector_score"`
	LexicalScore float64 `json:"lexical_score"`
	DocumentID   any     `json:"document_id,omitempty"`
	Source       any     `json:"source,omitempty"`
	Strategy     any     `json:"strategy,omitempty"`
	Text         string  `json:"text"`
}

func writeJSON(w io.Writer, results []domain.SearchResult) error {
	out := make([]jsonResult, len(results))
	for i, r := range results {
		out[i] = jsonResult{
			ID:           r.ID,
			Score:        r.Score,
			VectorScore:  r.VectorScore,
			LexicalScore: r.LexicalScore,
			DocumentID:   r.Payload[domain.PayloadDocumentID],
			Source:       r.Payload[domain.PayloadSource],
			Strategy:     r.Payload[domain.PayloadStrategy],
			Text:         r.Text(),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeText(w io.Writer, results []domain.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s  score=%.3f (vector=%.3f lexical=%.3f)\n",
			i+1, r.ID, r.Score, r.VectorScore, r.LexicalScore)
		if src, _ := r.Payload[domain.PayloadSource].(string); src != "" {
			fmt.Fprintf(w, "   %s\n", src)
		}
		fmt.Fprintf(w, "   %s\n\n", oneLine(r.Text(), 160))
	}
}

func oneLine(s string, maxRunes int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxRunes {
		return string(r[:maxRunes]) + "…"
	}
	return s
}
