//go:build cgo

package retrieval

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kesslerio/ragcore/docstore"
	"github.com/kesslerio/ragcore/embedding"
	"github.com/kesslerio/ragcore/keywordindex"
	"github.com/kesslerio/ragcore/llm"
	"github.com/kesslerio/ragcore/model"
	"github.com/kesslerio/ragcore/vectorindex"
)

const testDim = 4

// fakeProvider returns a fixed vector per known text so Embed's
// normalization step produces comparable, deterministic vectors
// without a real embedding provider.
type fakeProvider struct{ vectors map[string][]float32 }

func (f fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float32{0.1, 0.1, 0.1, 0.1}
		}
		out[i] = append([]float32(nil), v...)
	}
	return out, nil
}

func (f fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: "{}"}, nil
}

func newTestEngine(t *testing.T) (*Engine, context.Context) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	vec, err := vectorindex.New(db, testDim)
	if err != nil {
		t.Fatalf("vectorindex.New() error = %v", err)
	}
	kw, err := keywordindex.New(db)
	if err != nil {
		t.Fatalf("keywordindex.New() error = %v", err)
	}
	docs, err := docstore.New(db)
	if err != nil {
		t.Fatalf("docstore.New() error = %v", err)
	}
	provider := fakeProvider{vectors: map[string][]float32{
		"rotating equipment maintenance schedule": {1, 0, 0, 0},
	}}
	embed := embedding.New(provider, testDim)

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	chunks := []model.Chunk{
		{ChunkID: "c-match", DocID: "d1", Text: "Rotating equipment must be inspected every quarter.", Kind: model.ChunkParagraph, ParentTitles: []string{}, Topics: []string{"maintenance"}, CreatedAt: now},
		{ChunkID: "c-other", DocID: "d2", Text: "Unrelated onboarding instructions for new employees.", Kind: model.ChunkParagraph, ParentTitles: []string{}, Topics: []string{"hr"}, CreatedAt: now},
	}
	if err := docs.PutChunks(ctx, chunks); err != nil {
		t.Fatalf("PutChunks() error = %v", err)
	}
	if err := kw.Add(ctx, model.ViewCanonical, "c-match", "d1", "", chunks[0].Text); err != nil {
		t.Fatalf("kw.Add() error = %v", err)
	}
	if err := kw.Add(ctx, model.ViewCanonical, "c-other", "d2", "", chunks[1].Text); err != nil {
		t.Fatalf("kw.Add() error = %v", err)
	}
	if err := vec.Add(ctx, model.ViewCanonical, "c-match", "d1", []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("vec.Add() error = %v", err)
	}
	if err := vec.Add(ctx, model.ViewCanonical, "c-other", "d2", []float32{0, 1, 0, 0}); err != nil {
		t.Fatalf("vec.Add() error = %v", err)
	}

	return New(vec, kw, docs, embed, Config{}), ctx
}

func TestSearchRanksMatchingChunkFirst(t *testing.T) {
	e, ctx := newTestEngine(t)
	results, err := e.Search(ctx, model.ViewCanonical, "rotating equipment maintenance schedule", Filter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].Chunk.ChunkID != "c-match" {
		t.Errorf("top result = %s, want c-match", results[0].Chunk.ChunkID)
	}
	if results[0].FusedScore <= 0 {
		t.Errorf("FusedScore = %f, want > 0", results[0].FusedScore)
	}
}

func TestSearchAppliesTopicFilter(t *testing.T) {
	e, ctx := newTestEngine(t)
	results, err := e.Search(ctx, model.ViewCanonical, "equipment", Filter{Topics: []string{"hr"}})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, r := range results {
		if r.Chunk.ChunkID == "c-match" {
			t.Errorf("expected c-match to be excluded by the hr-only filter, got %+v", r)
		}
	}
}

func TestSearchWithNoIndexedChunksReturnsEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()
	vec, _ := vectorindex.New(db, testDim)
	kw, _ := keywordindex.New(db)
	docs, _ := docstore.New(db)
	embed := embedding.New(fakeProvider{}, testDim)

	e := New(vec, kw, docs, embed, Config{})
	results, err := e.Search(context.Background(), model.ViewCanonical, "anything", Filter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %+v", results)
	}
}

func TestFuseWeightsBM25AndDense(t *testing.T) {
	e := &Engine{cfg: Config{WeightBM25: 0.3, WeightDense: 0.7}}
	fused := e.fuse(
		[]keywordindex.Match{{ChunkID: "a", Score: 1.0}},
		[]vectorindex.Match{{ChunkID: "a", Score: 0.5}},
	)
	if len(fused) != 1 {
		t.Fatalf("len(fused) = %d, want 1", len(fused))
	}
	want := 0.3*1.0 + 0.7*0.5
	if diff := fused[0].fused - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("fused score = %f, want %f", fused[0].fused, want)
	}
}

func TestFuseHandlesKeywordOnlyMatch(t *testing.T) {
	e := &Engine{cfg: Config{WeightBM25: 0.3, WeightDense: 0.7}}
	fused := e.fuse([]keywordindex.Match{{ChunkID: "b", Score: 0.8}}, nil)
	if len(fused) != 1 || fused[0].dense != 0 {
		t.Fatalf("fused = %+v, want dense score defaulted to 0", fused)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.WeightBM25 != defaultWeightBM25 || cfg.WeightDense != defaultWeightDense {
		t.Errorf("weights = %f/%f, want defaults", cfg.WeightBM25, cfg.WeightDense)
	}
	if cfg.TopK != defaultTopK || cfg.MMRLambda != defaultMMRLambda {
		t.Errorf("TopK/MMRLambda = %d/%f, want defaults", cfg.TopK, cfg.MMRLambda)
	}
}

func TestFilterMatchesRequiresAllConstraints(t *testing.T) {
	f := Filter{Topics: []string{"maintenance"}, SourceKinds: []model.SourceKind{model.SourceText}}
	match := model.Chunk{Topics: []string{"maintenance"}, SourceKind: model.SourceText}
	if !f.Matches(match) {
		t.Error("expected chunk to match filter")
	}
	noMatch := model.Chunk{Topics: []string{"hr"}, SourceKind: model.SourceText}
	if f.Matches(noMatch) {
		t.Error("expected chunk to be excluded by topic mismatch")
	}
}
