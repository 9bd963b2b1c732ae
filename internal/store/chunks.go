package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
)

// AddChunks appends chunks (with their embeddings) to a document. It fails
// with ErrUnknownDocument if the document was never registered.
func (s *Store) AddChunks(ctx context.Context, docID string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, docID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("looking up document: %w", err)
	}
	if exists == 0 {
		return ErrUnknownDocument
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	chromDocs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		var tableJSON any
		if c.Table != nil {
			data, err := json.Marshal(c.Table)
			if err != nil {
				return fmt.Errorf("marshalling table payload: %w", err)
			}
			tableJSON = string(data)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (document_id, seq, text, embedding, table_json, page, sheet, cell_range, cell)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			docID, c.Seq, c.Text, encodeVector(c.Embedding), tableJSON,
			c.Locator.Page, c.Locator.Sheet, c.Locator.CellRange, c.Locator.Cell)
		if err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.Seq, err)
		}

		chromDocs = append(chromDocs, chromem.Document{
			ID:        chunkKey(docID, c.Seq),
			Content:   c.Text,
			Embedding: c.Embedding,
			Metadata: map[string]string{
				"document_id": docID,
				"seq":         strconv.Itoa(c.Seq),
			},
		})
	}

	if err := s.collection.AddDocuments(ctx, chromDocs, 1); err != nil {
		return fmt.Errorf("indexing chunks: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ChunksByDocument returns all chunks for a document in sequence order.
func (s *Store) ChunksByDocument(ctx context.Context, docID string) ([]Chunk, error) {
	if _, err := s.Document(ctx, docID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, seq, text, embedding, table_json, page, sheet, cell_range, cell
		 FROM chunks WHERE document_id = ? ORDER BY seq`, docID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Query returns up to topK chunks from complete documents in scope with
// score >= minScore, ordered by descending score. Ties break by ascending
// document ID then chunk sequence, so repeated queries over an unchanged
// store return identical orderings.
func (s *Store) Query(ctx context.Context, embedding []float32, scope Scope, topK int, minScore float64) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}

	docs, err := s.Documents(ctx, scope, true)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, doc := range docs {
		var count int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE document_id = ?`, doc.ID).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("counting chunks: %w", err)
		}
		if count == 0 {
			continue
		}

		n := topK
		if n > count {
			n = count
		}
		results, err := s.collection.QueryEmbedding(ctx, embedding, n,
			map[string]string{"document_id": doc.ID}, nil)
		if err != nil {
			return nil, fmt.Errorf("querying document %s: %w", doc.ID, err)
		}

		for _, r := range results {
			score := float64(r.Similarity)
			if score < minScore {
				continue
			}
			seq, _ := strconv.Atoi(r.Metadata["seq"])
			chunk, err := s.chunk(ctx, doc.ID, seq)
			if err != nil {
				return nil, err
			}
			matches = append(matches, Match{Chunk: chunk, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.DocumentID != b.Chunk.DocumentID {
			return a.Chunk.DocumentID < b.Chunk.DocumentID
		}
		return a.Chunk.Seq < b.Chunk.Seq
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Store) chunk(ctx context.Context, docID string, seq int) (Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT document_id, seq, text, embedding, table_json, page, sheet, cell_range, cell
		 FROM chunks WHERE document_id = ? AND seq = ?`, docID, seq)
	return scanChunk(row)
}

func scanChunk(row rowScanner) (Chunk, error) {
	var c Chunk
	var raw []byte
	var tableJSON sql.NullString
	err := row.Scan(&c.DocumentID, &c.Seq, &c.Text, &raw, &tableJSON,
		&c.Locator.Page, &c.Locator.Sheet, &c.Locator.CellRange, &c.Locator.Cell)
	if err != nil {
		return Chunk{}, fmt.Errorf("scanning chunk: %w", err)
	}
	c.Embedding = decodeVector(raw)
	if tableJSON.Valid {
		var table Table
		if err := json.Unmarshal([]byte(tableJSON.String), &table); err != nil {
			return Chunk{}, fmt.Errorf("unmarshalling table payload: %w", err)
		}
		c.Table = &table
	}
	return c, nil
}

// rebuildIndex repopulates the chromem collection from persisted chunks.
func (s *Store) rebuildIndex(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT document_id, seq, text, embedding FROM chunks`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var docs []chromem.Document
	for rows.Next() {
		var docID, text string
		var seq int
		var raw []byte
		if err := rows.Scan(&docID, &seq, &text, &raw); err != nil {
			return err
		}
		docs = append(docs, chromem.Document{
			ID:        chunkKey(docID, seq),
			Content:   text,
			Embedding: decodeVector(raw),
			Metadata: map[string]string{
				"document_id": docID,
				"seq":         strconv.Itoa(seq),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	return s.collection.AddDocuments(ctx, docs, 1)
}

func chunkKey(docID string, seq int) string {
	return fmt.Sprintf("%s:%d", docID, seq)
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
