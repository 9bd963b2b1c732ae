package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/docchat/internal/retrieval"
	"github.com/ziadkadry99/docchat/internal/store"
)

// handleSearchDocuments performs semantic search over the document store.
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	var scope store.Scope
	if id := request.GetString("document_id", ""); id != "" {
		scope = store.Scope{id}
	}

	result, err := s.retriever.Retrieve(ctx, query, scope)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(result.Matches) == 0 {
		return mcp.NewToolResultText("No results found. Ingest documents first with `docchat ingest` or the upload API."), nil
	}

	return mcp.NewToolResultText(formatSearchResult(result)), nil
}

// handleListDocuments lists the complete documents in the store.
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.store.Documents(ctx, nil, true)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("The store is empty."), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d document(s):\n", len(docs)))
	for _, d := range docs {
		sb.WriteString(fmt.Sprintf("\n- %s (%s)\n  hash: %s\n  size: %d bytes\n", d.Name, d.Kind, d.ID, d.Size))
		if d.Summary.Pages > 0 {
			sb.WriteString(fmt.Sprintf("  pages: %d\n", d.Summary.Pages))
		}
		if d.Summary.Rows > 0 {
			sb.WriteString(fmt.Sprintf("  rows: %d\n", d.Summary.Rows))
		}
		if d.Summary.Cells > 0 {
			sb.WriteString(fmt.Sprintf("  cells: %d\n", d.Summary.Cells))
		}
		if d.Summary.Tables > 0 {
			sb.WriteString(fmt.Sprintf("  tables: %d\n", d.Summary.Tables))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleGetStats returns corpus statistics.
func (s *Server) handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Documents: %d\nChunks: %d\n", stats.Documents, stats.Chunks))
	for kind, n := range stats.ByKind {
		sb.WriteString(fmt.Sprintf("  %s: %d\n", kind, n))
	}
	sb.WriteString(fmt.Sprintf("Pages: %d\nTables: %d\nForms: %d\n", stats.Pages, stats.Tables, stats.Forms))
	return mcp.NewToolResultText(sb.String()), nil
}

// handleGetDocumentTables returns the structured tables of one document.
func (s *Server) handleGetDocumentTables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: document_id"), nil
	}

	chunks, err := s.store.ChunksByDocument(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}

	var sb strings.Builder
	n := 0
	for i := range chunks {
		t := chunks[i].Table
		if t == nil {
			continue
		}
		n++
		sb.WriteString(fmt.Sprintf("\n--- Table %d ---\n", n))
		sb.WriteString(strings.Join(t.Headers, " | "))
		sb.WriteString("\n")
		for _, row := range t.Rows {
			sb.WriteString(strings.Join(row, " | "))
			sb.WriteString("\n")
		}
	}
	if n == 0 {
		return mcp.NewToolResultText("The document contains no extracted tables."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d table(s):\n%s", n, sb.String())), nil
}

// formatSearchResult converts retrieval output into text for agent
// consumption.
func formatSearchResult(result *retrieval.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s), confidence %s:\n", len(result.Matches), result.Confidence))

	for i, m := range result.Matches {
		src := result.Sources[i]
		sb.WriteString(fmt.Sprintf("\n--- Result %d ---\n", i+1))
		sb.WriteString(fmt.Sprintf("Document: %s (%s)\n", src.DocumentName, src.DocumentID))
		switch {
		case src.Locator.Page > 0:
			sb.WriteString(fmt.Sprintf("Page: %d\n", src.Locator.Page))
		case src.Locator.CellRange != "":
			sb.WriteString(fmt.Sprintf("Rows: %s\n", src.Locator.CellRange))
		case src.Locator.Cell > 0:
			sb.WriteString(fmt.Sprintf("Cell: %d\n", src.Locator.Cell))
		}
		sb.WriteString(fmt.Sprintf("Similarity: %.1f%%\n\n", m.Score*100))
		sb.WriteString(m.Chunk.Text)
		sb.WriteString("\n")
	}

	return sb.String()
}
