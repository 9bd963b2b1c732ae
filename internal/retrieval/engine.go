package retrieval

import (
	"context"
	"fmt"
	"math"

	"github.com/ziadkadry99/docchat/internal/config"
	"github.com/ziadkadry99/docchat/internal/embeddings"
	"github.com/ziadkadry99/docchat/internal/store"
)

// Confidence labels how well the retrieved chunks match the query.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Source references one retrieved chunk: the document it belongs to, the
// chunk's sequence index, and the relevance score. Always derived from a
// query, never supplied by the client.
type Source struct {
	DocumentID   string        `json:"document_id"`
	DocumentName string        `json:"document_name,omitempty"`
	Seq          int           `json:"chunk"`
	Score        float64       `json:"score"`
	Locator      store.Locator `json:"locator"`
}

// Result is one retrieval outcome: ranked sources, the matched chunks for
// prompt assembly, and the aggregate confidence label.
type Result struct {
	Sources    []Source
	Matches    []store.Match
	Confidence Confidence
}

// Engine answers "what's relevant" for a free-text query over a document
// scope.
type Engine struct {
	store    *store.Store
	embedder embeddings.Embedder
	cfg      config.RetrievalConfig
}

// New creates a retrieval engine.
func New(st *store.Store, embedder embeddings.Embedder, cfg config.RetrievalConfig) *Engine {
	return &Engine{store: st, embedder: embedder, cfg: cfg}
}

// Retrieve embeds the query and returns ranked sources over the scope.
func (e *Engine) Retrieve(ctx context.Context, query string, scope store.Scope) (*Result, error) {
	embedding, err := embeddings.EmbedOne(ctx, e.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := e.store.Query(ctx, embedding, scope, e.cfg.TopK, e.cfg.MinScore)
	if err != nil {
		return nil, err
	}

	return e.buildResult(ctx, matches)
}

// RetrievePerDocument issues one retrieval per document and returns the
// results keyed by document ID, so multi-document answers can label every
// source by its origin instead of mixing chunks into one list.
func (e *Engine) RetrievePerDocument(ctx context.Context, query string, docIDs []string) (map[string]*Result, error) {
	embedding, err := embeddings.EmbedOne(ctx, e.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results := make(map[string]*Result, len(docIDs))
	for _, id := range docIDs {
		matches, err := e.store.Query(ctx, embedding, store.Scope{id}, e.cfg.TopK, e.cfg.MinScore)
		if err != nil {
			return nil, err
		}
		result, err := e.buildResult(ctx, matches)
		if err != nil {
			return nil, err
		}
		results[id] = result
	}
	return results, nil
}

func (e *Engine) buildResult(ctx context.Context, matches []store.Match) (*Result, error) {
	result := &Result{
		Matches:    matches,
		Confidence: e.classify(matches),
	}

	names := make(map[string]string)
	for _, m := range matches {
		name, ok := names[m.Chunk.DocumentID]
		if !ok {
			doc, err := e.store.Document(ctx, m.Chunk.DocumentID)
			if err != nil {
				return nil, err
			}
			name = doc.Name
			names[m.Chunk.DocumentID] = name
		}
		result.Sources = append(result.Sources, Source{
			DocumentID:   m.Chunk.DocumentID,
			DocumentName: name,
			Seq:          m.Chunk.Seq,
			Score:        m.Score,
			Locator:      m.Chunk.Locator,
		})
	}
	return result, nil
}

// classify bands the top score into high/medium/low. An empty result set is
// always low.
func (e *Engine) classify(matches []store.Match) Confidence {
	if len(matches) == 0 {
		return ConfidenceLow
	}
	top := matches[0].Score
	switch {
	case top >= e.cfg.HighScore:
		return ConfidenceHigh
	case top >= e.cfg.MediumScore:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Comparison is the outcome of comparing two documents.
type Comparison struct {
	DocumentA   string   `json:"document_a"`
	DocumentB   string   `json:"document_b"`
	Similarity  float64  `json:"similarity"`
	Differences []string `json:"differences"`
}

// Compare computes the cosine similarity between the embedding centroids of
// two documents plus high-level metadata differences.
func (e *Engine) Compare(ctx context.Context, docA, docB string) (*Comparison, error) {
	a, err := e.store.Document(ctx, docA)
	if err != nil {
		return nil, err
	}
	b, err := e.store.Document(ctx, docB)
	if err != nil {
		return nil, err
	}

	centroidA, err := e.centroid(ctx, docA)
	if err != nil {
		return nil, err
	}
	centroidB, err := e.centroid(ctx, docB)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{
		DocumentA:  docA,
		DocumentB:  docB,
		Similarity: cosine(centroidA, centroidB),
	}

	if a.Kind != b.Kind {
		cmp.Differences = append(cmp.Differences,
			fmt.Sprintf("%s is a %s while %s is a %s", a.Name, a.Kind, b.Name, b.Kind))
	}
	if a.Summary.Pages != b.Summary.Pages && (a.Summary.Pages > 0 || b.Summary.Pages > 0) {
		cmp.Differences = append(cmp.Differences,
			fmt.Sprintf("page counts differ: %d vs %d", a.Summary.Pages, b.Summary.Pages))
	}
	if a.Summary.Tables != b.Summary.Tables {
		cmp.Differences = append(cmp.Differences,
			fmt.Sprintf("table counts differ: %d vs %d", a.Summary.Tables, b.Summary.Tables))
	}
	if cmp.Similarity < e.cfg.MediumScore {
		cmp.Differences = append(cmp.Differences, "overall content is largely dissimilar")
	}
	return cmp, nil
}

func (e *Engine) centroid(ctx context.Context, docID string) ([]float32, error) {
	chunks, err := e.store.ChunksByDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s has no chunks", docID)
	}

	dims := len(chunks[0].Embedding)
	centroid := make([]float32, dims)
	for _, c := range chunks {
		for i, v := range c.Embedding {
			if i < dims {
				centroid[i] += v
			}
		}
	}
	for i := range centroid {
		centroid[i] /= float32(len(chunks))
	}
	return centroid, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
