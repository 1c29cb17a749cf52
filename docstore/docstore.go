// Package docstore persists model.Document and model.Chunk records —
// the document registry and chunk bodies that C6 VectorIndex and C7
// KeywordIndex only hold scores and IDs for. The schema and CRUD shape
// (documents/chunks tables, content_hash change detection, JSON
// metadata columns) is adapted from store/schema.go and store/store.go,
// dropping the entity/relationship/community graph tables: no graph
// component appears among this system's twenty, so that half of the
// teacher's schema has nothing to serve.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kesslerio/ragcore/model"
)

// Store is a SQLite-backed document and chunk registry.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the documents/chunks schema on db.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("docstore: schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS documents (
    doc_id TEXT PRIMARY KEY,
    source_kind TEXT NOT NULL,
    title TEXT NOT NULL,
    ingested_at DATETIME NOT NULL,
    created_at DATETIME NOT NULL,
    content_hash TEXT NOT NULL,
    byte_size INTEGER NOT NULL,
    ocr_confidence REAL,
    provenance JSON NOT NULL,
    metadata JSON NOT NULL,
    scores JSON NOT NULL,
    is_duplicate INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents(content_hash);

CREATE TABLE IF NOT EXISTS chunks (
    chunk_id TEXT PRIMARY KEY,
    doc_id TEXT NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    token_estimate INTEGER NOT NULL,
    kind TEXT NOT NULL,
    parent_titles JSON NOT NULL,
    position INTEGER NOT NULL,
    topics JSON NOT NULL,
    title TEXT NOT NULL,
    scores JSON NOT NULL,
    created_at DATETIME NOT NULL,
    source_kind TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
`)
	return err
}

// PutDocument upserts a document record.
func (s *Store) PutDocument(ctx context.Context, d model.Document) error {
	prov, err := json.Marshal(d.Provenance)
	if err != nil {
		return fmt.Errorf("docstore: marshal provenance: %w", err)
	}
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("docstore: marshal metadata: %w", err)
	}
	scores, err := json.Marshal(d.Scores)
	if err != nil {
		return fmt.Errorf("docstore: marshal scores: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents (doc_id, source_kind, title, ingested_at, created_at, content_hash, byte_size, ocr_confidence, provenance, metadata, scores, is_duplicate)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(doc_id) DO UPDATE SET
    source_kind=excluded.source_kind, title=excluded.title, ingested_at=excluded.ingested_at,
    created_at=excluded.created_at, content_hash=excluded.content_hash, byte_size=excluded.byte_size,
    ocr_confidence=excluded.ocr_confidence, provenance=excluded.provenance, metadata=excluded.metadata,
    scores=excluded.scores, is_duplicate=excluded.is_duplicate`,
		d.DocID, string(d.SourceKind), d.Title, d.IngestedAt, d.CreatedAt, d.ContentHash, d.ByteSize,
		d.OCRConfidence, prov, meta, scores, boolToInt(d.IsDuplicate))
	if err != nil {
		return fmt.Errorf("docstore: upsert document %s: %w", d.DocID, err)
	}
	return nil
}

// GetDocument retrieves a document by ID, or model.ErrDocumentNotFound.
func (s *Store) GetDocument(ctx context.Context, docID string) (model.Document, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT doc_id, source_kind, title, ingested_at, created_at, content_hash, byte_size, ocr_confidence, provenance, metadata, scores, is_duplicate
FROM documents WHERE doc_id = ?`, docID)

	var d model.Document
	var sourceKind string
	var prov, meta, scores []byte
	var isDup int
	var ocr sql.NullFloat64
	if err := row.Scan(&d.DocID, &sourceKind, &d.Title, &d.IngestedAt, &d.CreatedAt, &d.ContentHash,
		&d.ByteSize, &ocr, &prov, &meta, &scores, &isDup); err != nil {
		if err == sql.ErrNoRows {
			return model.Document{}, model.ErrDocumentNotFound
		}
		return model.Document{}, fmt.Errorf("docstore: get document %s: %w", docID, err)
	}
	d.SourceKind = model.SourceKind(sourceKind)
	d.IsDuplicate = isDup != 0
	if ocr.Valid {
		v := ocr.Float64
		d.OCRConfidence = &v
	}
	if err := json.Unmarshal(prov, &d.Provenance); err != nil {
		return model.Document{}, fmt.Errorf("docstore: unmarshal provenance: %w", err)
	}
	if err := json.Unmarshal(meta, &d.Metadata); err != nil {
		return model.Document{}, fmt.Errorf("docstore: unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal(scores, &d.Scores); err != nil {
		return model.Document{}, fmt.Errorf("docstore: unmarshal scores: %w", err)
	}
	return d, nil
}

// ListDocuments returns every document, ordered by created_at ascending.
// Used by the thread and entity_timeline surfaces, which need to scan
// and filter on JSON metadata/provenance fields the schema doesn't
// index directly.
func (s *Store) ListDocuments(ctx context.Context) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT doc_id, source_kind, title, ingested_at, created_at, content_hash, byte_size, ocr_confidence, provenance, metadata, scores, is_duplicate
FROM documents ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("docstore: list documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		var sourceKind string
		var prov, meta, scores []byte
		var isDup int
		var ocr sql.NullFloat64
		if err := rows.Scan(&d.DocID, &sourceKind, &d.Title, &d.IngestedAt, &d.CreatedAt, &d.ContentHash,
			&d.ByteSize, &ocr, &prov, &meta, &scores, &isDup); err != nil {
			return nil, fmt.Errorf("docstore: scan document: %w", err)
		}
		d.SourceKind = model.SourceKind(sourceKind)
		d.IsDuplicate = isDup != 0
		if ocr.Valid {
			v := ocr.Float64
			d.OCRConfidence = &v
		}
		if err := json.Unmarshal(prov, &d.Provenance); err != nil {
			return nil, fmt.Errorf("docstore: unmarshal provenance: %w", err)
		}
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("docstore: unmarshal metadata: %w", err)
		}
		if err := json.Unmarshal(scores, &d.Scores); err != nil {
			return nil, fmt.Errorf("docstore: unmarshal scores: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// FindByContentHash returns the doc_id of an existing document sharing
// contentHash, for idempotent re-ingestion (§4.16).
func (s *Store) FindByContentHash(ctx context.Context, contentHash string) (string, bool, error) {
	var docID string
	err := s.db.QueryRowContext(ctx, `SELECT doc_id FROM documents WHERE content_hash = ? LIMIT 1`, contentHash).Scan(&docID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("docstore: find by content hash: %w", err)
	}
	return docID, true, nil
}

// PutChunks inserts chunks in a single transaction, replacing any
// existing chunks for the same chunk_id (re-chunking is idempotent by
// content-addressed chunk_id, see chunker.chunkID).
func (s *Store) PutChunks(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO chunks (chunk_id, doc_id, text, token_estimate, kind, parent_titles, position, topics, title, scores, created_at, source_kind)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("docstore: prepare insert chunk: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		parentTitles, err := json.Marshal(c.ParentTitles)
		if err != nil {
			return fmt.Errorf("docstore: marshal parent_titles: %w", err)
		}
		topics, err := json.Marshal(c.Topics)
		if err != nil {
			return fmt.Errorf("docstore: marshal topics: %w", err)
		}
		scores, err := json.Marshal(c.Scores)
		if err != nil {
			return fmt.Errorf("docstore: marshal chunk scores: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.ChunkID, c.DocID, c.Text, c.TokenEstimate, string(c.Kind),
			parentTitles, c.Position, topics, c.Title, scores, c.CreatedAt, string(c.SourceKind)); err != nil {
			return fmt.Errorf("docstore: insert chunk %s: %w", c.ChunkID, err)
		}
	}
	return tx.Commit()
}

// GetChunk retrieves one chunk by ID.
func (s *Store) GetChunk(ctx context.Context, chunkID string) (model.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT chunk_id, doc_id, text, token_estimate, kind, parent_titles, position, topics, title, scores, created_at, source_kind
FROM chunks WHERE chunk_id = ?`, chunkID)
	return scanChunk(row)
}

// GetChunksByDocument returns every chunk belonging to docID, ordered
// by position.
func (s *Store) GetChunksByDocument(ctx context.Context, docID string) ([]model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT chunk_id, doc_id, text, token_estimate, kind, parent_titles, position, topics, title, scores, created_at, source_kind
FROM chunks WHERE doc_id = ? ORDER BY position`, docID)
	if err != nil {
		return nil, fmt.Errorf("docstore: get chunks for %s: %w", docID, err)
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		c, err := scanChunkRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(row scanner) (model.Chunk, error) {
	c, err := scanChunkRows(row)
	if err == sql.ErrNoRows {
		return model.Chunk{}, model.ErrDocumentNotFound
	}
	return c, err
}

func scanChunkRows(row scanner) (model.Chunk, error) {
	var c model.Chunk
	var kind, sourceKind string
	var parentTitles, topics, scores []byte
	if err := row.Scan(&c.ChunkID, &c.DocID, &c.Text, &c.TokenEstimate, &kind, &parentTitles,
		&c.Position, &topics, &c.Title, &scores, &c.CreatedAt, &sourceKind); err != nil {
		if err == sql.ErrNoRows {
			return model.Chunk{}, err
		}
		return model.Chunk{}, fmt.Errorf("docstore: scan chunk: %w", err)
	}
	c.Kind = model.ChunkKind(kind)
	c.SourceKind = model.SourceKind(sourceKind)
	if err := json.Unmarshal(parentTitles, &c.ParentTitles); err != nil {
		return model.Chunk{}, fmt.Errorf("docstore: unmarshal parent_titles: %w", err)
	}
	if err := json.Unmarshal(topics, &c.Topics); err != nil {
		return model.Chunk{}, fmt.Errorf("docstore: unmarshal topics: %w", err)
	}
	if err := json.Unmarshal(scores, &c.Scores); err != nil {
		return model.Chunk{}, fmt.Errorf("docstore: unmarshal chunk scores: %w", err)
	}
	return c, nil
}

// DeleteDocument removes a document and all its chunks.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, docID)
	if err != nil {
		return fmt.Errorf("docstore: delete document %s: %w", docID, err)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID)
	if err != nil {
		return fmt.Errorf("docstore: delete chunks for %s: %w", docID, err)
	}
	return nil
}

// Stats summarizes the corpus for monitoring/CLI surfaces.
type Stats struct {
	DocumentCount int
	ChunkCount    int
}

// CorpusStats returns document and chunk counts.
func (s *Store) CorpusStats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&st.DocumentCount); err != nil {
		return Stats{}, fmt.Errorf("docstore: count documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.ChunkCount); err != nil {
		return Stats{}, fmt.Errorf("docstore: count chunks: %w", err)
	}
	return st, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
