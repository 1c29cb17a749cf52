//go:build cgo

package vectorindex

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

	idx, err := New(db, 4)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return idx
}

func TestAddAndQueryReturnsNearestFirst(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Add(ctx, model.ViewCanonical, "chunk-a", "doc-1", []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := idx.Add(ctx, model.ViewCanonical, "chunk-b", "doc-1", []float32{0, 1, 0, 0}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	matches, err := idx.Query(ctx, model.ViewCanonical, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) == 0 || matches[0].ChunkID != "chunk-a" {
		t.Fatalf("Query() = %+v, want chunk-a first", matches)
	}
	if matches[0].Score < 0.99 {
		t.Errorf("Score = %v, want ~1.0 for an identical vector", matches[0].Score)
	}
}

func TestAddRejectsWrongDimension(t *testing.T) {
	idx := newTestIndex(t)
	err := idx.Add(context.Background(), model.ViewCanonical, "chunk-a", "doc-1", []float32{1, 0})
	if err == nil {
		t.Fatal("expected a dimension-mismatch error")
	}
}

func TestViewsAreIsolated(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Add(ctx, model.ViewFull, "chunk-a", "doc-1", []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	matches, err := idx.Query(ctx, model.ViewCanonical, []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected CANONICAL view to be empty, got %+v", matches)
	}
}

func TestDeleteDocumentRemovesAllItsChunks(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	idx.Add(ctx, model.ViewCanonical, "chunk-a", "doc-1", []float32{1, 0, 0, 0})
	idx.Add(ctx, model.ViewCanonical, "chunk-b", "doc-1", []float32{0, 1, 0, 0})
	idx.Add(ctx, model.ViewCanonical, "chunk-c", "doc-2", []float32{0, 0, 1, 0})

	if err := idx.DeleteDocument(ctx, model.ViewCanonical, "doc-1"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}

	matches, err := idx.Query(ctx, model.ViewCanonical, []float32{0, 0, 1, 0}, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 1 || matches[0].ChunkID != "chunk-c" {
		t.Errorf("expected only doc-2's chunk to remain, got %+v", matches)
	}
}
