//go:build integration && cgo

package ragcore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kesslerio/ragcore/retrieval"
)

const (
	ollamaURL   = "http://localhost:11434"
	chatModel   = "qwen3:8b"
	embedModel  = "qwen3-embedding"
	embedDim    = 4096
	testTimeout = 10 * time.Minute
)

var shared struct {
	once  sync.Once
	eng   *Engine
	docID string
	dir   string
	err   error
}

func ollamaAvailable() bool {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(ollamaURL + "/api/tags")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func warmModel(m string) error {
	body := fmt.Sprintf(`{"model":%q,"messages":[{"role":"user","content":"hi"}],"stream":false,"options":{"num_predict":1}}`, m)
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Post(ollamaURL+"/api/chat", "application/json", strings.NewReader(body))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func warmEmbedModel(m string) error {
	body := fmt.Sprintf(`{"model":%q,"input":["test"]}`, m)
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Post(ollamaURL+"/api/embed", "application/json", strings.NewReader(body))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// setupShared builds one Engine against a local Ollama and ingests one
// document, shared across every test in this file.
func setupShared(t *testing.T) {
	t.Helper()
	shared.once.Do(func() {
		if !ollamaAvailable() {
			shared.err = fmt.Errorf("ollama not available")
			return
		}
		if err := warmEmbedModel(embedModel); err != nil {
			shared.err = fmt.Errorf("warming embed model: %w", err)
			return
		}
		if err := warmModel(chatModel); err != nil {
			shared.err = fmt.Errorf("warming chat model: %w", err)
			return
		}

		dir, err := os.MkdirTemp("", "ragcore-integration-*")
		if err != nil {
			shared.err = err
			return
		}
		shared.dir = dir

		cfg := DefaultConfig()
		cfg.DBPath = filepath.Join(dir, "integration.db")
		cfg.OCRQueuePath = filepath.Join(dir, "ocr_queue.json")
		cfg.CostLedgerPath = filepath.Join(dir, "cost_ledger.jsonl")
		cfg.VocabularyDir = ""
		cfg.ModelCacheDir = filepath.Join(dir, "models_cache")
		cfg.EmbeddingDim = embedDim
		cfg.ChatProviders = []LLMConfig{{Provider: "ollama", Model: chatModel, BaseURL: ollamaURL}}
		cfg.EmbeddingProviders = []LLMConfig{{Provider: "ollama", Model: embedModel, BaseURL: ollamaURL}}

		eng, err := New(cfg)
		if err != nil {
			shared.err = fmt.Errorf("creating engine: %w", err)
			return
		}
		shared.eng = eng

		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		text := "Rotating equipment must be inspected every quarter. Inspection records are retained for five years per the maintenance policy."
		result, err := eng.Ingest(ctx, []byte(text), "manual.txt", "")
		if err != nil {
			shared.err = fmt.Errorf("ingesting document: %w", err)
			eng.Close()
			return
		}
		shared.docID = result.DocID
	})
}

func skipOrSetup(t *testing.T) {
	t.Helper()
	setupShared(t)
	if shared.err != nil {
		t.Skipf("shared setup failed: %v", shared.err)
	}
}

func TestEngineIngestThenChat(t *testing.T) {
	skipOrSetup(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	result, err := shared.eng.Chat(ctx, "how often is rotating equipment inspected?", 5, retrieval.Filter{})
	if err != nil && !errors.Is(err, ErrInsufficientEvidence) {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Answer == "" {
		t.Error("Answer is empty")
	}
}

func TestEngineDocumentRoundTrips(t *testing.T) {
	skipOrSetup(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	doc, chunks, err := shared.eng.Document(ctx, shared.docID)
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if doc.DocID != shared.docID {
		t.Errorf("DocID = %q, want %q", doc.DocID, shared.docID)
	}
	if len(chunks) == 0 {
		t.Error("expected at least one chunk")
	}
}

func TestEngineStatsReflectsIngestedDocument(t *testing.T) {
	skipOrSetup(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	stats, err := shared.eng.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Documents == 0 {
		t.Error("Documents = 0, want at least 1")
	}
}
