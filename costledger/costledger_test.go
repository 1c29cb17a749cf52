package costledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kesslerio/ragcore/model"
)

func TestRecordErrAppendsEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "costs.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	rec := model.CostRecord{Timestamp: time.Now(), Provider: "groq", Model: "llama", USD: 0.02, Op: "chat"}
	if err := l.RecordErr(rec); err != nil {
		t.Fatalf("RecordErr() error = %v", err)
	}

	total, err := l.TotalUSD()
	if err != nil {
		t.Fatalf("TotalUSD() error = %v", err)
	}
	if total != 0.02 {
		t.Errorf("TotalUSD() = %v, want 0.02", total)
	}
}

func TestTotalUSDSumsMultipleEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "costs.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	for _, usd := range []float64{0.01, 0.02, 0.03} {
		if err := l.RecordErr(model.CostRecord{USD: usd}); err != nil {
			t.Fatalf("RecordErr() error = %v", err)
		}
	}

	total, err := l.TotalUSD()
	if err != nil {
		t.Fatalf("TotalUSD() error = %v", err)
	}
	if total < 0.0599 || total > 0.0601 {
		t.Errorf("TotalUSD() = %v, want ~0.06", total)
	}
}

func TestTotalUSDMissingFileReturnsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	total, err := l.TotalUSD()
	if err != nil {
		t.Fatalf("TotalUSD() error = %v", err)
	}
	if total != 0 {
		t.Errorf("TotalUSD() = %v, want 0", total)
	}
}
