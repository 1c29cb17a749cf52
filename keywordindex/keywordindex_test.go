//go:build cgo

package keywordindex

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kesslerio/ragcore/model"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	idx, err := New(db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return idx
}

func TestAddAndQueryRanksBestMatchFirst(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	idx.Add(ctx, model.ViewCanonical, "chunk-a", "doc-1", "Embeddings", "embeddings embeddings embeddings are vector representations")
	idx.Add(ctx, model.ViewCanonical, "chunk-b", "doc-1", "Unrelated", "this chunk briefly mentions embeddings once")

	matches, err := idx.Query(ctx, model.ViewCanonical, "embeddings", 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 2 || matches[0].ChunkID != "chunk-a" {
		t.Fatalf("Query() = %+v, want chunk-a ranked first", matches)
	}
}

func TestQueryScoresNormalizedToUnitInterval(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	idx.Add(ctx, model.ViewCanonical, "chunk-a", "doc-1", "", "alpha beta gamma")
	idx.Add(ctx, model.ViewCanonical, "chunk-b", "doc-1", "", "alpha alpha alpha beta")

	matches, err := idx.Query(ctx, model.ViewCanonical, "alpha", 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	for _, m := range matches {
		if m.Score < 0 || m.Score > 1 {
			t.Errorf("Score = %v, want in [0,1]", m.Score)
		}
	}
}

func TestViewsAreIsolated(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	idx.Add(ctx, model.ViewFull, "chunk-a", "doc-1", "", "only in full view")

	matches, err := idx.Query(ctx, model.ViewCanonical, "full", 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected CANONICAL view empty, got %+v", matches)
	}
}

func TestDeleteDocumentRemovesItsChunks(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	idx.Add(ctx, model.ViewCanonical, "chunk-a", "doc-1", "", "keyword hunt")
	idx.Add(ctx, model.ViewCanonical, "chunk-b", "doc-2", "", "keyword hunt")

	if err := idx.DeleteDocument(ctx, model.ViewCanonical, "doc-1"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	matches, err := idx.Query(ctx, model.ViewCanonical, "keyword", 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 1 || matches[0].ChunkID != "chunk-b" {
		t.Errorf("expected only doc-2's chunk to remain, got %+v", matches)
	}
}
