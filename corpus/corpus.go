// Package corpus implements C12: routing of documents between the
// CANONICAL (indexed, high-signal) and FULL (audit) views, and
// coordinated cross-index deletion. The deletion walks every view of every
// registered index (vector + keyword) in turn, after the teacher's
// store.Store.DeleteDocument multi-table delete; it is not transactional:
// a failure part-way leaves the deletes already made in place.
package corpus

import (
	"context"
	"fmt"

	"github.com/kesslerio/ragcore/model"
)

// Deleter is satisfied by anything that can remove a document's entries
// for one index (C6 VectorIndex, C7 KeywordIndex).
type Deleter interface {
	DeleteDocument(ctx context.Context, view model.CorpusView, docID string) error
}

// Manager routes documents to corpus views and coordinates deletion
// across the registered indexes.
type Manager struct {
	indexes []Deleter
}

// New returns a Manager that coordinates deletion across the given
// indexes (typically a vector index and a keyword index).
func New(indexes ...Deleter) *Manager {
	return &Manager{indexes: indexes}
}

// Route returns every view a document with the given scores should enter.
// Every accepted document enters FULL; it additionally enters CANONICAL
// iff do_index, not a duplicate, and quality/signalness clear the
// thresholds already baked into scores.DoIndex by the quality scorer.
func Route(scores model.Scores, isDuplicate bool) []model.CorpusView {
	views := []model.CorpusView{model.ViewFull}
	if scores.DoIndex && !isDuplicate {
		views = append(views, model.ViewCanonical)
	}
	return views
}

// CollectionName returns the deterministic storage collection name for a
// view.
func CollectionName(view model.CorpusView) string {
	return view.CollectionName()
}

// QueryKind identifies the intent behind a query, used to pick a default
// corpus view when the caller does not pin one explicitly.
type QueryKind string

const (
	QueryKindSearch     QueryKind = "search"
	QueryKindQA         QueryKind = "qa"
	QueryKindAudit      QueryKind = "audit"
	QueryKindDedup      QueryKind = "dedup"
	QueryKindCompliance QueryKind = "compliance"
)

// SuggestView returns CANONICAL for ordinary search/QA traffic and FULL
// for audit, dedup, or compliance queries that must see everything,
// including gated and duplicate documents.
func SuggestView(kind QueryKind) model.CorpusView {
	switch kind {
	case QueryKindAudit, QueryKindDedup, QueryKindCompliance:
		return model.ViewFull
	default:
		return model.ViewCanonical
	}
}

// DeleteDocument removes docID from both views across every registered
// index. It stops at the first failing index and returns that error;
// callers may retry, since deletes are idempotent (deleting an
// already-absent document is not an error for the underlying indexes).
func (m *Manager) DeleteDocument(ctx context.Context, docID string) error {
	for _, view := range []model.CorpusView{model.ViewCanonical, model.ViewFull} {
		for _, idx := range m.indexes {
			if err := idx.DeleteDocument(ctx, view, docID); err != nil {
				return fmt.Errorf("corpus: delete %s from %s: %w", docID, view.CollectionName(), err)
			}
		}
	}
	return nil
}
