package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"testing"

	"github.com/ziadkadry99/docchat/internal/config"
	"github.com/ziadkadry99/docchat/internal/extract"
	"github.com/ziadkadry99/docchat/internal/store"
)

// fakeEmbedder produces deterministic unit vectors derived from the text.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		h := fnv.New32a()
		h.Write([]byte(text))
		seed := h.Sum32()
		v := []float32{
			float32(seed%97) + 1,
			float32(seed%89) + 1,
			float32(seed%83) + 1,
			float32(seed%79) + 1,
		}
		var norm float32
		for _, f := range v {
			norm += f * f
		}
		norm = float32(math.Sqrt(float64(norm)))
		for j := range v {
			v[j] /= norm
		}
		vecs[i] = v
	}
	return vecs, nil
}

func (fakeEmbedder) Dimensions() int { return 4 }
func (fakeEmbedder) Name() string    { return "fake" }

// failingEmbedder always errors.
type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding backend down")
}
func (failingEmbedder) Dimensions() int { return 4 }
func (failingEmbedder) Name() string    { return "failing" }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.EmbedWorkers = 2
	cfg.Chunking = config.ChunkingConfig{TargetTokens: 50, OverlapTokens: 8, MinTokens: 1}
	return cfg
}

const sampleCSV = "region,revenue\nnorth,100\nsouth,80\neast,120\n"

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	st, err := store.OpenMemory(nil)
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	p, err := New(st, fakeEmbedder{}, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(p.Close)
	return p, st
}

func TestIngestCSV(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	summary, err := p.Ingest(ctx, []byte(sampleCSV), "revenue.csv", store.KindSpreadsheet)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if summary.Duplicate {
		t.Error("fresh ingestion reported as duplicate")
	}
	if summary.Chunks == 0 {
		t.Fatal("no chunks produced")
	}
	if summary.Counts.Rows != 3 {
		t.Errorf("expected 3 rows, got %d", summary.Counts.Rows)
	}

	doc, err := st.Document(ctx, summary.DocumentID)
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if !doc.Complete {
		t.Error("ingested document not marked complete")
	}

	chunks, err := st.ChunksByDocument(ctx, summary.DocumentID)
	if err != nil {
		t.Fatalf("ChunksByDocument failed: %v", err)
	}
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %d stored without embedding", c.Seq)
		}
	}
}

func TestIngestDuplicate(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.Ingest(ctx, []byte(sampleCSV), "revenue.csv", store.KindSpreadsheet)
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	second, err := p.Ingest(ctx, []byte(sampleCSV), "renamed.csv", store.KindSpreadsheet)
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if !second.Duplicate {
		t.Error("identical bytes not reported as duplicate")
	}
	if second.DocumentID != first.DocumentID {
		t.Errorf("duplicate got different id: %s vs %s", second.DocumentID, first.DocumentID)
	}
	if second.Chunks != first.Chunks {
		t.Errorf("duplicate reports %d chunks, original %d", second.Chunks, first.Chunks)
	}
}

func TestIngestConcurrentIdenticalUploads(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	const n = 8
	summaries := make([]*Summary, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			summaries[i], errs[i] = p.Ingest(ctx, []byte(sampleCSV), fmt.Sprintf("upload-%d.csv", i), store.KindSpreadsheet)
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("upload %d failed: %v", i, errs[i])
		}
		if !summaries[i].Duplicate {
			fresh++
		}
	}
	if fresh != 1 {
		t.Errorf("expected exactly one fresh ingestion, got %d", fresh)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Documents != 1 {
		t.Errorf("expected 1 stored document, got %d", stats.Documents)
	}
}

func TestIngestEmbeddingFailureDiscards(t *testing.T) {
	st, err := store.OpenMemory(nil)
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	defer st.Close()

	broken, err := New(st, failingEmbedder{}, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer broken.Close()

	ctx := context.Background()
	_, err = broken.Ingest(ctx, []byte(sampleCSV), "revenue.csv", store.KindSpreadsheet)
	if !errors.Is(err, ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
	}

	// The pending record must be gone so a retry starts clean.
	id := store.ContentHash([]byte(sampleCSV))
	if _, err := st.Document(ctx, id); !errors.Is(err, store.ErrUnknownDocument) {
		t.Errorf("failed ingestion left a document behind, err=%v", err)
	}

	working, err := New(st, fakeEmbedder{}, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer working.Close()

	summary, err := working.Ingest(ctx, []byte(sampleCSV), "revenue.csv", store.KindSpreadsheet)
	if err != nil {
		t.Fatalf("retry after failure did not succeed: %v", err)
	}
	if summary.Duplicate {
		t.Error("retry after a failed ingestion reported as duplicate")
	}
}

func TestIngestMalformedContent(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.Ingest(ctx, []byte("%PDF-garbage"), "broken.pdf", store.KindPDF)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Documents != 0 {
		t.Errorf("failed extraction left %d documents", stats.Documents)
	}
}

func TestIngestUnsupportedKind(t *testing.T) {
	p, _ := newTestPipeline(t)
	_, err := p.Ingest(context.Background(), []byte("data"), "a.bin", store.Kind("binary"))
	if !errors.Is(err, extract.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}
