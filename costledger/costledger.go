// Package costledger implements the append-only JSONL cost sink the
// LLMDispatcher writes every completed call into, following the
// open-for-append-then-write-entry pattern used for the daily memory
// files in cortex-gateway/internal/memory/store.go, generalized from
// Markdown entries to one JSON object per line.
package costledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kesslerio/ragcore/model"
)

// Ledger appends model.CostRecord entries to a JSONL file, one per line.
// Safe for concurrent use.
type Ledger struct {
	mu   sync.Mutex
	path string
}

// Open returns a Ledger writing to path, creating parent directories as
// needed. The file itself is opened fresh on each Record call so the
// ledger tolerates external rotation/truncation between writes.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("costledger: mkdir: %w", err)
		}
	}
	return &Ledger{path: path}, nil
}

// Record appends one cost entry. Errors are swallowed by design: a
// ledger write must never fail the LLM call it's recording the cost of.
// Callers that need to observe write failures should call RecordErr.
func (l *Ledger) Record(rec model.CostRecord) {
	_ = l.RecordErr(rec)
}

// RecordErr is Record with the write error surfaced, for callers (and
// tests) that want to assert persistence actually happened.
func (l *Ledger) RecordErr(rec model.CostRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("costledger: open: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("costledger: marshal: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("costledger: write: %w", err)
	}
	return nil
}

// TotalUSD replays the ledger file and sums every recorded USD field.
// Used by Engine.Stats to report cumulative spend across restarts.
func (l *Ledger) TotalUSD() (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("costledger: read: %w", err)
	}

	var total float64
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var rec model.CostRecord
		if err := dec.Decode(&rec); err != nil {
			break
		}
		total += rec.USD
	}
	return total, nil
}
