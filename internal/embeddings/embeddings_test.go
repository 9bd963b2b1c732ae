package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaEmbedBatch(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Input) != 3 {
			t.Errorf("expected the whole batch in one request, got %d inputs", len(req.Input))
		}

		embeddings := make([][]float32, len(req.Input))
		for i := range embeddings {
			embeddings[i] = []float32{float32(i), 0, 0}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	defer srv.Close()

	e := NewOllama("nomic-embed-text", srv.URL)
	got, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(got))
	}
	if requests != 1 {
		t.Errorf("expected 1 request, got %d", requests)
	}
	if got[1][0] != 1 {
		t.Errorf("embeddings out of order: %v", got[1])
	}
}

func TestOllamaEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1, 0}}})
	}))
	defer srv.Close()

	e := NewOllama("nomic-embed-text", srv.URL)
	_, err := e.Embed(context.Background(), []string{"a", "b"})
	if err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Errorf("expected count mismatch error, got %v", err)
	}
}

func TestOllamaEmbedErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllama("missing-model", srv.URL)
	if _, err := e.Embed(context.Background(), []string{"a"}); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestEmbedderDimensions(t *testing.T) {
	tests := []struct {
		embedder Embedder
		name     string
		dims     int
	}{
		{NewOllama("nomic-embed-text", ""), "ollama/nomic-embed-text", 768},
		{NewOllama("all-minilm", ""), "ollama/all-minilm", 384},
		{NewOllama("unknown-model", ""), "ollama/unknown-model", 768},
		{NewOpenAI("key", "text-embedding-3-large"), "openai/text-embedding-3-large", 3072},
		{NewOpenAI("key", "unknown-model"), "openai/unknown-model", 1536},
	}
	for _, tt := range tests {
		if got := tt.embedder.Name(); got != tt.name {
			t.Errorf("Name() = %q, want %q", got, tt.name)
		}
		if got := tt.embedder.Dimensions(); got != tt.dims {
			t.Errorf("%s: Dimensions() = %d, want %d", tt.name, got, tt.dims)
		}
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	e := NewOllama("nomic-embed-text", "http://unreachable.invalid")
	got, err := e.Embed(context.Background(), nil)
	if err != nil || got != nil {
		t.Errorf("empty input should short-circuit, got %v, %v", got, err)
	}
}
