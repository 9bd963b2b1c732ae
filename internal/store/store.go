package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"
	_ "modernc.org/sqlite"

	"github.com/ziadkadry99/docchat/internal/embeddings"
)

const collectionName = "documents"

// Store is the content-addressed document and chunk store. Document and
// chunk metadata live in SQLite; chunk embeddings live in a chromem
// collection keyed by "<document_id>:<seq>".
type Store struct {
	db         *sql.DB
	chrom      *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// Open creates or opens a store backed by a SQLite file under dir.
func Open(dir string, embedder embeddings.Embedder) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, "docchat.db")
	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return newStore(sqlDB, embedder)
}

// OpenMemory creates a fully in-memory store (useful for testing).
func OpenMemory(embedder embeddings.Embedder) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	return newStore(sqlDB, embedder)
}

func newStore(sqlDB *sql.DB, embedder embeddings.Embedder) (*Store, error) {
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	var ef chromem.EmbeddingFunc
	if embedder != nil {
		ef = embeddings.ToChromemFunc(embedder)
	} else {
		// Chunks always arrive with precomputed embeddings, so the
		// function is only a fallback chromem requires at creation.
		ef = func(ctx context.Context, text string) ([]float32, error) {
			return nil, fmt.Errorf("no embedder configured")
		}
	}

	chrom := chromem.NewDB()
	col, err := chrom.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s := &Store{
		db:         sqlDB,
		chrom:      chrom,
		collection: col,
		embedFunc:  ef,
	}

	// The SQLite side is durable; the chromem index is rebuilt from it.
	if err := s.rebuildIndex(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("rebuilding vector index: %w", err)
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ContentHash returns the document identity for the given raw bytes.
func ContentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    size INTEGER NOT NULL,
    kind TEXT NOT NULL CHECK(kind IN ('pdf','spreadsheet','notebook')),
    ingested_at DATETIME NOT NULL DEFAULT (datetime('now')),
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending','complete')),
    pages INTEGER NOT NULL DEFAULT 0,
    rows INTEGER NOT NULL DEFAULT 0,
    cells INTEGER NOT NULL DEFAULT 0,
    tables INTEGER NOT NULL DEFAULT 0,
    images INTEGER NOT NULL DEFAULT 0,
    forms INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS chunks (
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    text TEXT NOT NULL,
    embedding BLOB NOT NULL,
    table_json TEXT,
    page INTEGER NOT NULL DEFAULT 0,
    sheet TEXT NOT NULL DEFAULT '',
    cell_range TEXT NOT NULL DEFAULT '',
    cell INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (document_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
`
