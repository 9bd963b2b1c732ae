package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/singleflight"

	"github.com/ziadkadry99/docchat/internal/config"
	"github.com/ziadkadry99/docchat/internal/embeddings"
	"github.com/ziadkadry99/docchat/internal/extract"
	"github.com/ziadkadry99/docchat/internal/store"
)

// embedBatchSize is the number of chunk texts embedded per worker task.
const embedBatchSize = 16

// Pipeline turns raw uploaded bytes into queryable chunks:
// hash -> extract -> chunk -> embed -> store. Concurrent ingestions of the
// same content hash share one run; the later caller adopts the first
// caller's result.
type Pipeline struct {
	store    *store.Store
	embedder embeddings.Embedder
	chunking config.ChunkingConfig
	timeout  time.Duration
	pool     *ants.Pool
	group    singleflight.Group
}

// Summary reports the outcome of one ingestion.
type Summary struct {
	DocumentID string        `json:"document_id"`
	Name       string        `json:"name"`
	Kind       store.Kind    `json:"kind"`
	Chunks     int           `json:"chunks"`
	Counts     store.Summary `json:"counts"`
	Duplicate  bool          `json:"duplicate"`
}

// New creates a Pipeline with a bounded embedding worker pool.
func New(st *store.Store, embedder embeddings.Embedder, cfg *config.Config) (*Pipeline, error) {
	workers := cfg.EmbedWorkers
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("creating embed pool: %w", err)
	}

	return &Pipeline{
		store:    st,
		embedder: embedder,
		chunking: cfg.Chunking,
		timeout:  time.Duration(cfg.RequestTimeoutSec) * time.Second,
		pool:     pool,
	}, nil
}

// Close releases the worker pool.
func (p *Pipeline) Close() {
	p.pool.Release()
}

// Ingest processes one upload. Identical bytes uploaded twice return the
// existing document's summary without reprocessing, including when the two
// uploads race.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte, name string, kind store.Kind) (*Summary, error) {
	hash := store.ContentHash(raw)

	v, err, shared := p.group.Do(hash, func() (any, error) {
		return p.run(ctx, hash, raw, name, kind)
	})
	if err != nil {
		return nil, err
	}

	summary := v.(*Summary)
	if shared && !summary.Duplicate {
		// This caller raced another upload of the same bytes and adopted
		// its result.
		dup := *summary
		dup.Duplicate = true
		return &dup, nil
	}
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, hash string, raw []byte, name string, kind store.Kind) (*Summary, error) {
	id, existing, err := p.store.PutDocument(ctx, raw, name, kind)
	if err != nil {
		return nil, err
	}
	if existing {
		log.Printf("ingest: duplicate upload of %s (%s), reusing document", name, shortHash(id))
		doc, err := p.store.Document(ctx, id)
		if err != nil {
			return nil, err
		}
		chunks, err := p.store.ChunksByDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		return &Summary{
			DocumentID: id,
			Name:       doc.Name,
			Kind:       doc.Kind,
			Chunks:     len(chunks),
			Counts:     doc.Summary,
			Duplicate:  true,
		}, nil
	}

	extractor, err := extract.ForKind(kind)
	if err != nil {
		p.discard(id)
		return nil, err
	}

	extractCtx, cancel := context.WithTimeout(ctx, p.timeout)
	result, err := extractor.Extract(extractCtx, raw)
	cancel()
	if err != nil {
		p.discard(id)
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	chunks := chunkSegments(result.Segments, p.chunking)
	if len(chunks) == 0 {
		p.discard(id)
		return nil, fmt.Errorf("%w: no chunks produced", ErrExtractionFailed)
	}
	for i := range chunks {
		chunks[i].DocumentID = id
	}

	if err := p.embedChunks(ctx, chunks); err != nil {
		p.discard(id)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	if err := p.store.AddChunks(ctx, id, chunks); err != nil {
		p.discard(id)
		return nil, err
	}
	if err := p.store.MarkComplete(ctx, id, result.Summary); err != nil {
		p.discard(id)
		return nil, err
	}

	log.Printf("ingest: %s (%s) -> %d chunks", name, shortHash(id), len(chunks))
	return &Summary{
		DocumentID: id,
		Name:       name,
		Kind:       kind,
		Chunks:     len(chunks),
		Counts:     result.Summary,
	}, nil
}

// embedChunks fills in chunk embeddings, batching texts across the worker
// pool. The first error aborts the whole ingestion.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []store.Chunk) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()

			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}
			vecs, err := p.embedder.Embed(ctx, texts)
			if err != nil {
				setErr(err)
				return
			}
			if len(vecs) != len(batch) {
				setErr(fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(batch)))
				return
			}
			for i := range batch {
				batch[i].Embedding = vecs[i]
			}
		})
		if err != nil {
			wg.Done()
			setErr(fmt.Errorf("submitting embed task: %w", err))
			break
		}
	}

	wg.Wait()
	return firstErr
}

// discard removes a pending document after a failed ingestion so a retry
// starts clean. Partial ingestion is invisible either way; this just frees
// the reserved record.
func (p *Pipeline) discard(id string) {
	if err := p.store.Clear(context.Background(), store.Scope{id}); err != nil {
		log.Printf("ingest: discarding pending document %s: %v", shortHash(id), err)
	}
}

func shortHash(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
