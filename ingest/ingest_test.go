//go:build cgo

package ingest

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kesslerio/ragcore/chunker"
	"github.com/kesslerio/ragcore/corpus"
	"github.com/kesslerio/ragcore/dedup"
	"github.com/kesslerio/ragcore/docstore"
	"github.com/kesslerio/ragcore/embedding"
	"github.com/kesslerio/ragcore/enrichment"
	"github.com/kesslerio/ragcore/keywordindex"
	"github.com/kesslerio/ragcore/llm"
	"github.com/kesslerio/ragcore/llmdispatch"
	"github.com/kesslerio/ragcore/model"
	"github.com/kesslerio/ragcore/monitoring"
	"github.com/kesslerio/ragcore/ocrqueue"
	"github.com/kesslerio/ragcore/quality"
	"github.com/kesslerio/ragcore/source"
	"github.com/kesslerio/ragcore/vectorindex"
)

type fakeProvider struct{}

func (fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: `{"topics":[],"projects":[],"places":[],"people":[],"organizations":[],"technologies":[],"dates":[],"numbers":[],"summary":"","suggested_tags":[]}`}, nil
}

func (fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}

	vec, err := vectorindex.New(db, 4)
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

	specs := []model.ProviderSpec{{Provider: "fake", ModelID: "fake-1"}}
	dispatcher, err := llmdispatch.New(specs, &llmdispatch.Budget{LimitUSD: 100}, nil, func(model.ProviderSpec) (llm.Provider, error) {
		return fakeProvider{}, nil
	})
	if err != nil {
		t.Fatalf("llmdispatch.New() error = %v", err)
	}

	registry := source.NewRegistry()
	registry.Register(source.NewTextExtractor())

	embedSvc := embedding.New(fakeProvider{}, 4)
	enrichSvc := enrichment.New(dispatcher, nil, enrichment.NewPeopleRegistry())
	corpusMgr := corpus.New(vec, kw)
	queue, err := ocrqueue.Open(t.TempDir() + "/queue.json")
	if err != nil {
		t.Fatalf("ocrqueue.Open() error = %v", err)
	}
	monitor := monitoring.New(nil)

	return New(registry, dedup.New(), enrichSvc, quality.New(), chunker.New(), embedSvc, vec, kw, docs, corpusMgr, queue, monitor)
}

func TestIngestIndexesANewDocument(t *testing.T) {
	p := newTestPipeline(t)
	text := "Rotating equipment must be inspected every quarter to remain compliant with the maintenance schedule and operational safety standards."
	out := p.Ingest(context.Background(), []byte(text), Hints{OriginalFilename: "manual.txt"})
	if out.Kind != OutcomeIndexed && out.Kind != OutcomeGated {
		t.Fatalf("Ingest() = %+v, want indexed or gated", out)
	}
	if out.DocID == "" {
		t.Error("DocID is empty")
	}
}

func TestIngestIsIdempotentByContentHash(t *testing.T) {
	p := newTestPipeline(t)
	text := "Identical content ingested twice should not be reprocessed the second time around at all."
	ctx := context.Background()

	first := p.Ingest(ctx, []byte(text), Hints{OriginalFilename: "a.txt"})
	second := p.Ingest(ctx, []byte(text), Hints{OriginalFilename: "a.txt"})

	if second.Kind != OutcomeIndexed {
		t.Fatalf("second Ingest() = %+v, want indexed (idempotent no-op)", second)
	}
	if first.DocID != second.DocID {
		t.Errorf("DocID changed across identical re-ingest: %q vs %q", first.DocID, second.DocID)
	}
}

func TestIngestFailsOnUnrecognizedSource(t *testing.T) {
	registry := source.NewRegistry() // no extractors registered
	p := &Pipeline{sources: registry, dedup: dedup.New(), monitor: monitoring.New(nil)}
	out := p.Ingest(context.Background(), []byte("anything"), Hints{})
	if out.Kind != OutcomeFailed {
		t.Errorf("Ingest() = %+v, want failed with no extractor registered", out)
	}
}

func TestGateKindForMapsSourceKinds(t *testing.T) {
	cases := map[model.SourceKind]string{
		model.SourcePDF:  "pdf.report",
		model.SourceEmail: "email.thread",
		model.SourceOther: "generic",
	}
	for kind, want := range cases {
		if got := gateKindFor(kind); got != want {
			t.Errorf("gateKindFor(%v) = %q, want %q", kind, got, want)
		}
	}
}
