package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ziadkadry99/docchat/internal/ingest"
	"github.com/ziadkadry99/docchat/internal/llm"
	"github.com/ziadkadry99/docchat/internal/retrieval"
	"github.com/ziadkadry99/docchat/internal/store"
)

// SummaryStyle selects how a document summary is laid out.
type SummaryStyle string

const (
	StyleExecutive SummaryStyle = "executive"
	StyleBullet    SummaryStyle = "bullet"
	StyleSection   SummaryStyle = "section"
)

// ParseSummaryStyle validates a client-supplied style, defaulting to
// executive when empty.
func ParseSummaryStyle(s string) (SummaryStyle, error) {
	switch SummaryStyle(s) {
	case StyleExecutive, StyleBullet, StyleSection:
		return SummaryStyle(s), nil
	case "":
		return StyleExecutive, nil
	default:
		return "", fmt.Errorf("unknown summary style %q", s)
	}
}

// SearchResult is a one-shot grounded answer outside any chat session.
type SearchResult struct {
	Response   string               `json:"response"`
	Sources    []retrieval.Source   `json:"sources"`
	Confidence retrieval.Confidence `json:"confidence"`
}

// Search answers a single question against the given scope without a
// session: retrieve, then one non-streamed completion.
func (r *Router) Search(ctx context.Context, query string, scope store.Scope) (*SearchResult, error) {
	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.retriever.Retrieve(sctx, query, scope)
	if err != nil {
		return nil, err
	}

	resp, err := r.provider.Complete(sctx, llm.CompletionRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: groundedSystem},
			{Role: llm.RoleSystem, Content: renderExcerpts(result)},
			{Role: llm.RoleUser, Content: query},
		},
	})
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Response:   resp.Content,
		Sources:    result.Sources,
		Confidence: result.Confidence,
	}, nil
}

// DocumentSummary is one generated summary, always attributed to a single
// document.
type DocumentSummary struct {
	DocumentID   string       `json:"document_id"`
	DocumentName string       `json:"document_name"`
	Style        SummaryStyle `json:"style"`
	Summary      string       `json:"summary"`
}

// summaryBudgetTokens bounds how much of a document is fed to the model
// when summarizing.
const summaryBudgetTokens = 6000

// Summarize produces one summary per requested document. Documents are
// never blended into a joint summary.
func (r *Router) Summarize(ctx context.Context, docIDs []string, style SummaryStyle) ([]*DocumentSummary, error) {
	summaries := make([]*DocumentSummary, 0, len(docIDs))
	for _, id := range docIDs {
		s, err := r.summarizeOne(ctx, id, style)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", id, err)
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func (r *Router) summarizeOne(ctx context.Context, docID string, style SummaryStyle) (*DocumentSummary, error) {
	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc, err := r.store.Document(sctx, docID)
	if err != nil {
		return nil, err
	}
	chunks, err := r.store.ChunksByDocument(sctx, docID)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	used := 0
	for _, c := range chunks {
		t := ingest.EstimateTokens(c.Text)
		if used+t > summaryBudgetTokens {
			break
		}
		used += t
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}

	resp, err := r.provider.Complete(sctx, llm.CompletionRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: summarySystem(style)},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Summarize the document %q:\n\n%s", doc.Name, b.String())},
		},
	})
	if err != nil {
		return nil, err
	}

	return &DocumentSummary{
		DocumentID:   docID,
		DocumentName: doc.Name,
		Style:        style,
		Summary:      resp.Content,
	}, nil
}

func summarySystem(style SummaryStyle) string {
	switch style {
	case StyleBullet:
		return "Summarize the document as a flat list of bullet points, one key fact per bullet."
	case StyleSection:
		return "Summarize the document section by section, keeping the document's own structure and headings."
	default:
		return "Write a short executive summary of the document: two or three paragraphs covering purpose, key findings and conclusions."
	}
}

// CompareResult pairs the structural comparison with an optional model
// narrative.
type CompareResult struct {
	*retrieval.Comparison
	Narrative string `json:"narrative,omitempty"`
}

// Compare runs the structural comparison of two documents and, when a
// model is available, asks it for a short narrative of the differences.
func (r *Router) Compare(ctx context.Context, docA, docB string) (*CompareResult, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmp, err := r.retriever.Compare(cctx, docA, docB)
	if err != nil {
		return nil, err
	}
	out := &CompareResult{Comparison: cmp}

	a, err := r.store.Document(cctx, docA)
	if err != nil {
		return nil, err
	}
	b, err := r.store.Document(cctx, docB)
	if err != nil {
		return nil, err
	}

	resp, err := r.provider.Complete(cctx, llm.CompletionRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You compare documents. Given similarity data, write two or three sentences on how alike the documents are and what sets them apart."},
			{Role: llm.RoleUser, Content: fmt.Sprintf(
				"Document A: %s (%s). Document B: %s (%s). Embedding similarity: %.2f. Observed differences: %s.",
				a.Name, a.Kind, b.Name, b.Kind, cmp.Similarity, strings.Join(cmp.Differences, "; "))},
		},
	})
	if err != nil {
		// The structural comparison stands on its own.
		return out, nil
	}
	out.Narrative = resp.Content
	return out, nil
}
