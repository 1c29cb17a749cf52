package corpus

import (
	"context"
	"errors"
	"testing"

	"github.com/kesslerio/ragcore/model"
)

type fakeDeleter struct {
	calls []string
	failOn string
}

func (f *fakeDeleter) DeleteDocument(_ context.Context, view model.CorpusView, docID string) error {
	f.calls = append(f.calls, string(view)+":"+docID)
	if f.failOn != "" && docID == f.failOn {
		return errors.New("boom")
	}
	return nil
}

func TestRouteAlwaysIncludesFull(t *testing.T) {
	views := Route(model.Scores{DoIndex: false}, false)
	if len(views) != 1 || views[0] != model.ViewFull {
		t.Errorf("Route() = %v, want [FULL] for a gated doc", views)
	}
}

func TestRouteAddsCanonicalWhenIndexableAndNotDuplicate(t *testing.T) {
	views := Route(model.Scores{DoIndex: true}, false)
	if len(views) != 2 {
		t.Fatalf("Route() = %v, want FULL+CANONICAL", views)
	}
}

func TestRouteExcludesCanonicalForDuplicates(t *testing.T) {
	views := Route(model.Scores{DoIndex: true}, true)
	for _, v := range views {
		if v == model.ViewCanonical {
			t.Error("a duplicate document must never enter CANONICAL")
		}
	}
}

func TestCollectionNameDeterministic(t *testing.T) {
	if CollectionName(model.ViewCanonical) != "documents_canonical" {
		t.Errorf("CollectionName(CANONICAL) = %q", CollectionName(model.ViewCanonical))
	}
	if CollectionName(model.ViewFull) != "documents_full" {
		t.Errorf("CollectionName(FULL) = %q", CollectionName(model.ViewFull))
	}
}

func TestSuggestView(t *testing.T) {
	cases := map[QueryKind]model.CorpusView{
		QueryKindSearch:     model.ViewCanonical,
		QueryKindQA:         model.ViewCanonical,
		QueryKindAudit:      model.ViewFull,
		QueryKindDedup:      model.ViewFull,
		QueryKindCompliance: model.ViewFull,
	}
	for kind, want := range cases {
		if got := SuggestView(kind); got != want {
			t.Errorf("SuggestView(%s) = %s, want %s", kind, got, want)
		}
	}
}

func TestDeleteDocumentCoordinatesAllIndexes(t *testing.T) {
	a, b := &fakeDeleter{}, &fakeDeleter{}
	m := New(a, b)
	if err := m.DeleteDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if len(a.calls) != 2 || len(b.calls) != 2 {
		t.Errorf("expected both views deleted on both indexes, got a=%v b=%v", a.calls, b.calls)
	}
}

func TestDeleteDocumentPropagatesIndexErrors(t *testing.T) {
	a := &fakeDeleter{failOn: "doc-1"}
	m := New(a)
	if err := m.DeleteDocument(context.Background(), "doc-1"); err == nil {
		t.Fatal("expected error to propagate from a failing index")
	}
}
