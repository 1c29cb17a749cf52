// Package keywordindex implements C7: an FTS5-backed BM25 keyword index,
// one table per corpus view. The FTS5 table shape, porter/unicode61
// tokenizer, and rank-to-score conversion follow
// store/schema.go's chunks_fts table and store/store.go's FTSSearch
// directly; this package drops the external-content linkage to a shared
// chunks table (content='chunks') in favor of a self-contained table per
// view, since keywordindex is its own component here rather than a
// facet of one monolithic store, and min-max normalizes the raw BM25
// rank into [0,1] instead of the teacher's raw `-rank` passthrough,
// which is unbounded and not comparable across queries — §4.10's
// weighted-sum fusion needs a bounded, comparable score.
package keywordindex

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kesslerio/ragcore/model"
)

// Index wraps a *sql.DB shared with the rest of the storage layer.
type Index struct {
	db *sql.DB
}

// New wraps db and ensures the per-view FTS5 tables exist.
func New(db *sql.DB) (*Index, error) {
	idx := &Index{db: db}
	if err := idx.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) ensureSchema(ctx context.Context) error {
	for _, view := range []model.CorpusView{model.ViewCanonical, model.ViewFull} {
		ddl := fmt.Sprintf(`
CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(
    chunk_id UNINDEXED,
    doc_id UNINDEXED,
    heading,
    content,
    tokenize='porter unicode61'
);`, tableName(view))
		if _, err := idx.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("keywordindex: creating schema for %s: %w", view, err)
		}
	}
	return nil
}

func tableName(view model.CorpusView) string {
	if view == model.ViewCanonical {
		return "fts_canonical"
	}
	return "fts_full"
}

// Add inserts or replaces the indexed text for a chunk. FTS5 has no
// native UPSERT, so this deletes any existing row for chunk_id first.
func (idx *Index) Add(ctx context.Context, view model.CorpusView, chunkID, docID, heading, content string) error {
	table := tableName(view)
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE chunk_id = ?`, table), chunkID); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (chunk_id, doc_id, heading, content) VALUES (?, ?, ?, ?)`, table),
		chunkID, docID, heading, content); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Match is one keyword-search hit with a [0,1]-normalized score.
type Match struct {
	ChunkID string
	DocID   string
	Score   float64
}

// Query runs an FTS5 MATCH query and returns up to k hits, min-max
// normalized across the returned batch so Score is always in [0,1]
// (the single-result case scores 1.0, since there is nothing to compare
// against).
func (idx *Index) Query(ctx context.Context, view model.CorpusView, query string, k int) ([]Match, error) {
	table := tableName(view)
	rows, err := idx.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT chunk_id, doc_id, bm25(%s) AS rank
		FROM %s
		WHERE %s MATCH ?
		ORDER BY rank
		LIMIT ?
	`, table, table, table), query, k)
	if err != nil {
		return nil, fmt.Errorf("keywordindex: query: %w", err)
	}
	defer rows.Close()

	type raw struct {
		chunkID, docID string
		rank           float64
	}
	var all []raw
	for rows.Next() {
		var r raw
		if err := rows.Scan(&r.chunkID, &r.docID, &r.rank); err != nil {
			return nil, err
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}

	// bm25() is more negative for a better match; flip sign so higher is
	// better, then min-max scale to [0,1].
	minScore, maxScore := -all[0].rank, -all[0].rank
	for _, r := range all {
		s := -r.rank
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	matches := make([]Match, len(all))
	spread := maxScore - minScore
	for i, r := range all {
		s := -r.rank
		norm := 1.0
		if spread > 0 {
			norm = (s - minScore) / spread
		}
		matches[i] = Match{ChunkID: r.chunkID, DocID: r.docID, Score: norm}
	}
	return matches, nil
}

// DeleteDocument removes every row belonging to docID from view,
// satisfying corpus.Deleter.
func (idx *Index) DeleteDocument(ctx context.Context, view model.CorpusView, docID string) error {
	_, err := idx.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE doc_id = ?`, tableName(view)), docID)
	return err
}
