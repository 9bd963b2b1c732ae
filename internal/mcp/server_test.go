package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/docchat/internal/config"
	"github.com/ziadkadry99/docchat/internal/retrieval"
	"github.com/ziadkadry99/docchat/internal/store"
)

// flatEmbedder returns the same unit vector for every text so similarity
// against the seeded chunks is exactly 1.0.
type flatEmbedder struct{}

func (flatEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (flatEmbedder) Dimensions() int { return 3 }
func (flatEmbedder) Name() string    { return "flat" }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	st, err := store.OpenMemory(nil)
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	id, _, err := st.PutDocument(ctx, []byte("region,revenue\nnorth,100\n"), "revenue.csv", store.KindSpreadsheet)
	if err != nil {
		t.Fatalf("put document: %v", err)
	}
	chunks := []store.Chunk{
		{
			DocumentID: id,
			Seq:        0,
			Text:       "region: north | revenue: 100",
			Table:      &store.Table{Headers: []string{"region", "revenue"}, Rows: [][]string{{"north", "100"}}},
			Locator:    store.Locator{Sheet: "revenue", CellRange: "A2:B2"},
			Embedding:  []float32{1, 0, 0},
		},
	}
	if err := st.AddChunks(ctx, id, chunks); err != nil {
		t.Fatalf("add chunks: %v", err)
	}
	if err := st.MarkComplete(ctx, id, store.Summary{Rows: 1, Cells: 2, Tables: 1}); err != nil {
		t.Fatalf("mark complete: %v", err)
	}

	cfg := config.RetrievalConfig{TopK: 5, MinScore: 0.2, HighScore: 0.8, MediumScore: 0.5}
	retriever := retrieval.New(st, flatEmbedder{}, cfg)
	return NewServer(st, retriever), id
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name string
		tool mcp.Tool
	}{
		{"search_documents", searchDocumentsTool},
		{"list_documents", listDocumentsTool},
		{"get_stats", getStatsTool},
		{"get_document_tables", getDocumentTablesTool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.name {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.name)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestHandleSearchDocuments(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"query": "northern revenue"}

	result, err := srv.handleSearchDocuments(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "revenue.csv") {
		t.Errorf("result should name the source document: %q", text)
	}
	if !strings.Contains(text, "confidence high") {
		t.Errorf("result should report confidence: %q", text)
	}
}

func TestHandleSearchDocumentsMissingQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := srv.handleSearchDocuments(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error for missing query")
	}
}

func TestHandleListDocuments(t *testing.T) {
	srv, id := newTestServer(t)

	result, err := srv.handleListDocuments(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "revenue.csv") || !strings.Contains(text, id) {
		t.Errorf("listing should include name and hash: %q", text)
	}
	if !strings.Contains(text, "rows: 1") {
		t.Errorf("listing should include extraction counts: %q", text)
	}
}

func TestHandleGetStats(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleGetStats(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Documents: 1") {
		t.Errorf("stats should count documents: %q", text)
	}
}

func TestHandleGetDocumentTables(t *testing.T) {
	srv, id := newTestServer(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"document_id": id}

	result, err := srv.handleGetDocumentTables(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "region | revenue") {
		t.Errorf("table output should include headers: %q", text)
	}
	if !strings.Contains(text, "north | 100") {
		t.Errorf("table output should include rows: %q", text)
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return tc.Text
}
