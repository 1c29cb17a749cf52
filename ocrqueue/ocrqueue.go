// Package ocrqueue implements C3: a persistent FIFO of documents whose
// OCR confidence fell below the per-kind threshold, queued for a
// stricter re-OCR pass. The queue itself is a JSON file rewritten
// atomically on every mutation; the priority-by-inverse-confidence
// ordering and the attempt/backoff bookkeeping follow
// llmdispatch.Dispatcher's own exponential-backoff shape (§4.5),
// generalized here from per-call retry to per-entry retry across
// process restarts.
package ocrqueue

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kesslerio/ragcore/model"
)

const (
	maxAttempts    = 3
	initialBackoff = 1 * time.Minute
	maxBackoff     = 30 * time.Minute
)

// perKindThreshold is the minimum acceptable OCR confidence before an
// entry is queued for re-processing, per §4.17's worked example.
var perKindThreshold = map[model.SourceKind]float64{
	model.SourcePDF:   0.7,
	model.SourceEmail: 0.5,
	model.SourceImage: 0.7,
}

const defaultThreshold = 0.6

// ShouldReocr reports whether confidence for a document of the given
// kind falls below its per-kind threshold and therefore needs queuing.
func ShouldReocr(confidence float64, kind model.SourceKind) bool {
	threshold, ok := perKindThreshold[kind]
	if !ok {
		threshold = defaultThreshold
	}
	return confidence < threshold
}

// State is an OCRQueue entry's position in its processing lifecycle.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Entry is one document queued for re-OCR.
type Entry struct {
	DocID              string           `json:"doc_id"`
	SourcePath         string           `json:"source_path"`
	SourceKind         model.SourceKind `json:"source_kind"`
	OriginalConfidence float64          `json:"original_confidence"`
	Attempts           int              `json:"attempts"`
	State              State            `json:"state"`
	LastError          string           `json:"last_error,omitempty"`
	EnqueuedAt         time.Time        `json:"enqueued_at"`
	NextAttemptAt      time.Time        `json:"next_attempt_at"`
}

// Queue is a JSON-file-backed FIFO, priority-ordered by ascending
// original confidence (the worst OCR results are re-processed first).
type Queue struct {
	mu      sync.Mutex
	path    string
	entries map[string]*Entry // keyed by doc_id
}

// Open loads an existing queue file at path, or starts an empty queue
// if none exists yet.
func Open(path string) (*Queue, error) {
	q := &Queue{path: path, entries: map[string]*Entry{}}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ocrqueue: reading %s: %w", path, err)
	}
	var list []*Entry
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("ocrqueue: parsing %s: %w", path, err)
	}
	for _, e := range list {
		q.entries[e.DocID] = e
	}
	return q, nil
}

// Enqueue adds a new pending entry for docID, or is a no-op if docID
// is already queued.
func (q *Queue) Enqueue(docID, sourcePath string, kind model.SourceKind, confidence float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.entries[docID]; exists {
		return nil
	}
	now := time.Now()
	q.entries[docID] = &Entry{
		DocID:              docID,
		SourcePath:         sourcePath,
		SourceKind:         kind,
		OriginalConfidence: confidence,
		State:              StatePending,
		EnqueuedAt:         now,
		NextAttemptAt:      now,
	}
	return q.persistLocked()
}

// Next returns the highest-priority pending entry whose backoff has
// elapsed, transitioning it to processing, or nil if none is ready.
// Priority is ascending original confidence, so the worst scans go
// first; ties break by earliest enqueue time.
func (q *Queue) Next() (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ready []*Entry
	now := time.Now()
	for _, e := range q.entries {
		if e.State == StatePending && !e.NextAttemptAt.After(now) {
			ready = append(ready, e)
		}
	}
	if len(ready) == 0 {
		return nil, nil
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].OriginalConfidence != ready[j].OriginalConfidence {
			return ready[i].OriginalConfidence < ready[j].OriginalConfidence
		}
		return ready[i].EnqueuedAt.Before(ready[j].EnqueuedAt)
	})

	next := ready[0]
	next.State = StateProcessing
	next.Attempts++
	if err := q.persistLocked(); err != nil {
		return nil, err
	}
	entryCopy := *next
	return &entryCopy, nil
}

// Complete marks docID completed and removes it from future scans.
func (q *Queue) Complete(docID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[docID]
	if !ok {
		return fmt.Errorf("ocrqueue: unknown doc_id %q", docID)
	}
	e.State = StateCompleted
	return q.persistLocked()
}

// Fail records a failed attempt for docID. Below maxAttempts, the
// entry returns to pending with an exponential backoff delay before
// its next attempt; at maxAttempts it is marked permanently failed.
func (q *Queue) Fail(docID string, reason error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[docID]
	if !ok {
		return fmt.Errorf("ocrqueue: unknown doc_id %q", docID)
	}
	e.LastError = reason.Error()
	if e.Attempts >= maxAttempts {
		e.State = StateFailed
		return q.persistLocked()
	}
	e.State = StatePending
	e.NextAttemptAt = time.Now().Add(backoffFor(e.Attempts))
	return q.persistLocked()
}

// backoffFor returns the delay before retry n (1-indexed), doubling
// from initialBackoff and capped at maxBackoff.
func backoffFor(attempt int) time.Duration {
	d := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt-1)))
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Entries returns a snapshot of every entry currently in the queue,
// for inspection or metrics.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnqueuedAt.Before(out[j].EnqueuedAt) })
	return out
}

// persistLocked rewrites the queue file. Callers must hold q.mu.
func (q *Queue) persistLocked() error {
	list := make([]*Entry, 0, len(q.entries))
	for _, e := range q.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].EnqueuedAt.Before(list[j].EnqueuedAt) })

	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("ocrqueue: marshaling queue: %w", err)
	}

	dir := filepath.Dir(q.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ocrqueue: creating %s: %w", dir, err)
		}
	}

	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("ocrqueue: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, q.path); err != nil {
		return fmt.Errorf("ocrqueue: renaming %s to %s: %w", tmp, q.path, err)
	}
	return nil
}
