package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PutDocument registers raw uploaded bytes under their content hash. If a
// complete document with the same hash already exists the existing ID is
// returned with existing=true and no new record is created. Otherwise a
// pending record is reserved (or an earlier pending record reused).
func (s *Store) PutDocument(ctx context.Context, raw []byte, name string, kind Kind) (id string, existing bool, err error) {
	id = ContentHash(raw)

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = ?`, id).Scan(&status)
	switch {
	case err == nil:
		if status == "complete" {
			return id, true, nil
		}
		// A crashed ingestion can leave chunks behind on a pending
		// record; drop them so re-extraction starts clean.
		if err := s.deleteChunks(ctx, id); err != nil {
			return "", false, err
		}
		return id, false, nil
	case err != sql.ErrNoRows:
		return "", false, fmt.Errorf("looking up document: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, size, kind, ingested_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, len(raw), string(kind), time.Now().UTC())
	if err != nil {
		return "", false, fmt.Errorf("inserting document: %w", err)
	}
	return id, false, nil
}

// MarkComplete records the extraction summary and flips the document from
// pending to complete, making its chunks visible to Query.
func (s *Store) MarkComplete(ctx context.Context, id string, summary Summary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = 'complete', pages = ?, rows = ?, cells = ?, tables = ?, images = ?, forms = ? WHERE id = ?`,
		summary.Pages, summary.Rows, summary.Cells, summary.Tables, summary.Images, summary.Forms, id)
	if err != nil {
		return fmt.Errorf("marking document complete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUnknownDocument
	}
	return nil
}

// Document returns a single document record by ID.
func (s *Store) Document(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, size, kind, ingested_at, status, pages, rows, cells, tables, images, forms
		 FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrUnknownDocument
	}
	return doc, err
}

// Documents lists document records, optionally restricted to a scope and to
// complete documents only.
func (s *Store) Documents(ctx context.Context, scope Scope, completeOnly bool) ([]*Document, error) {
	query := `SELECT id, name, size, kind, ingested_at, status, pages, rows, cells, tables, images, forms FROM documents`
	var args []any
	var conds []string
	if completeOnly {
		conds = append(conds, `status = 'complete'`)
	}
	if !scope.All() {
		if len(scope) == 0 {
			return nil, nil
		}
		placeholders := ""
		for i, id := range scope {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, id)
		}
		conds = append(conds, `id IN (`+placeholders+`)`)
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Clear removes the documents in scope together with their chunks and
// embeddings. Clearing an empty or already-cleared scope succeeds.
func (s *Store) Clear(ctx context.Context, scope Scope) error {
	docs, err := s.Documents(ctx, scope, false)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := s.deleteChunks(ctx, doc.ID); err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, doc.ID); err != nil {
			return fmt.Errorf("deleting document %s: %w", doc.ID, err)
		}
	}
	return nil
}

// deleteChunks removes a document's chunks from both sqlite and the vector
// index, leaving the document record itself in place.
func (s *Store) deleteChunks(ctx context.Context, docID string) error {
	if err := s.collection.Delete(ctx, map[string]string{"document_id": docID}, nil); err != nil {
		return fmt.Errorf("deleting embeddings for %s: %w", docID, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("deleting chunks for %s: %w", docID, err)
	}
	return nil
}

// Stats returns aggregate counts over complete documents.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByKind: make(map[Kind]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*), COALESCE(SUM(pages),0), COALESCE(SUM(tables),0), COALESCE(SUM(images),0), COALESCE(SUM(forms),0)
		 FROM documents WHERE status = 'complete' GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("document stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count, pages, tables, images, forms int
		if err := rows.Scan(&kind, &count, &pages, &tables, &images, &forms); err != nil {
			return nil, err
		}
		stats.ByKind[Kind(kind)] = count
		stats.Documents += count
		stats.Pages += pages
		stats.Tables += tables
		stats.Images += images
		stats.Forms += forms
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks c JOIN documents d ON d.id = c.document_id WHERE d.status = 'complete'`).
		Scan(&stats.Chunks)
	if err != nil {
		return nil, fmt.Errorf("chunk stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var kind, status string
	err := row.Scan(&doc.ID, &doc.Name, &doc.Size, &kind, &doc.IngestedAt, &status,
		&doc.Summary.Pages, &doc.Summary.Rows, &doc.Summary.Cells,
		&doc.Summary.Tables, &doc.Summary.Images, &doc.Summary.Forms)
	if err != nil {
		return nil, err
	}
	doc.Kind = Kind(kind)
	doc.Complete = status == "complete"
	return &doc, nil
}
