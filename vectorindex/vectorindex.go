// Package vectorindex implements C6: a sqlite-vec backed nearest-neighbor
// index over chunk embeddings, one vec0 virtual table per corpus view.
// The schema and KNN query shape follow store/schema.go's vec_chunks
// table and store/store.go's InsertEmbedding/VectorSearch directly; this
// package generalizes the teacher's single integer-chunk_id table into
// one table per model.CorpusView (so CANONICAL and FULL never share
// rows) addressed by string chunk_id instead of an autoincrement row,
// since chunk IDs here are content-derived rather than database-assigned.
package vectorindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	sqlitevec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/kesslerio/ragcore/model"
)

func init() {
	sqlitevec.Auto()
}

// Index wraps a *sql.DB (shared with the keyword index and document
// store) and the fixed embedding dimensionality every vector in the
// index must match.
type Index struct {
	db  *sql.DB
	dim int
}

// New wraps db and ensures the per-view vec0 tables and id-mapping
// tables exist.
func New(db *sql.DB, dim int) (*Index, error) {
	idx := &Index{db: db, dim: dim}
	if err := idx.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) ensureSchema(ctx context.Context) error {
	for _, view := range []model.CorpusView{model.ViewCanonical, model.ViewFull} {
		ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s_ids (
    rowid INTEGER PRIMARY KEY AUTOINCREMENT,
    chunk_id TEXT NOT NULL UNIQUE,
    doc_id TEXT NOT NULL
);
CREATE VIRTUAL TABLE IF NOT EXISTS %s_vec USING vec0(
    rowid INTEGER PRIMARY KEY,
    embedding float[%d]
);
`, tablePrefix(view), tablePrefix(view), idx.dim)
		if _, err := idx.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("vectorindex: creating schema for %s: %w", view, err)
		}
	}
	return nil
}

func tablePrefix(view model.CorpusView) string {
	if view == model.ViewCanonical {
		return "vec_canonical"
	}
	return "vec_full"
}

// Add inserts or replaces the embedding for a chunk in the given view.
// It returns model.ErrDimensionMismatch if embedding does not have the
// index's configured dimensionality.
func (idx *Index) Add(ctx context.Context, view model.CorpusView, chunkID, docID string, embedding []float32) error {
	if len(embedding) != idx.dim {
		return fmt.Errorf("%w: got %d, want %d", model.ErrDimensionMismatch, len(embedding), idx.dim)
	}
	prefix := tablePrefix(view)

	return withTx(ctx, idx.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s_ids (chunk_id, doc_id) VALUES (?, ?)
				ON CONFLICT(chunk_id) DO UPDATE SET doc_id = excluded.doc_id`, prefix),
			chunkID, docID); err != nil {
			return err
		}
		var rowid int64
		if err := tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT rowid FROM %s_ids WHERE chunk_id = ?`, prefix), chunkID).Scan(&rowid); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT OR REPLACE INTO %s_vec (rowid, embedding) VALUES (?, ?)`, prefix),
			rowid, serializeFloat32(embedding))
		return err
	})
}

// Match is one nearest-neighbor hit.
type Match struct {
	ChunkID string
	DocID   string
	// Score is cosine similarity normalized and clamped to [0,1] — sqlite-vec
	// reports L2 distance over normalized vectors, which for unit vectors
	// relates to cosine similarity as distance^2 = 2(1 - cosine); the
	// teacher's own VectorSearch used the simpler (and incorrect for
	// non-bounded distances) `1 - distance`, which can fall outside [0,1].
	// This is fixed here by deriving cosine from the L2 identity and
	// clamping defensively.
	Score float64
}

// Query returns the k nearest chunks to queryEmbedding in the given view.
func (idx *Index) Query(ctx context.Context, view model.CorpusView, queryEmbedding []float32, k int) ([]Match, error) {
	if len(queryEmbedding) != idx.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", model.ErrDimensionMismatch, len(queryEmbedding), idx.dim)
	}
	prefix := tablePrefix(view)
	rows, err := idx.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT i.chunk_id, i.doc_id, v.distance
		FROM %s_vec v
		JOIN %s_ids i ON i.rowid = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, prefix, prefix), serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var distance float64
		if err := rows.Scan(&m.ChunkID, &m.DocID, &distance); err != nil {
			return nil, err
		}
		m.Score = clamp01(1 - distance*distance/2)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Embedding returns the stored vector for chunkID in view, or nil if no
// such chunk is indexed there. Used by retrieval's MMR diversification
// pass, which needs pairwise similarity between candidates rather than
// just each candidate's distance to the query.
func (idx *Index) Embedding(ctx context.Context, view model.CorpusView, chunkID string) ([]float32, error) {
	prefix := tablePrefix(view)
	var raw []byte
	err := idx.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT v.embedding FROM %s_vec v
		JOIN %s_ids i ON i.rowid = v.rowid
		WHERE i.chunk_id = ?
	`, prefix, prefix), chunkID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vectorindex: embedding lookup: %w", err)
	}
	return deserializeFloat32(raw, idx.dim), nil
}

// deserializeFloat32 is the inverse of serializeFloat32.
func deserializeFloat32(buf []byte, dim int) []float32 {
	out := make([]float32, dim)
	for i := 0; i < dim && (i+1)*4 <= len(buf); i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// DeleteDocument removes every embedding belonging to docID from view,
// satisfying corpus.Deleter.
func (idx *Index) DeleteDocument(ctx context.Context, view model.CorpusView, docID string) error {
	prefix := tablePrefix(view)
	return withTx(ctx, idx.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM %s_vec WHERE rowid IN (SELECT rowid FROM %s_ids WHERE doc_id = ?)
		`, prefix, prefix), docID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s_ids WHERE doc_id = ?`, prefix), docID)
		return err
	})
}

func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// serializeFloat32 packs a []float32 into the little-endian byte layout
// sqlite-vec expects, matching store.go's serializeFloat32 helper.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
