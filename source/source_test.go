package source

import (
	"context"
	"testing"

	"github.com/kesslerio/ragcore/model"
)

func TestRegistryDispatchesByExtension(t *testing.T) {
	r := NewDefaultRegistry()
	res, kind, err := r.Extract(context.Background(), []byte("hello world"), Hint{OriginalFilename: "notes.txt"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if kind != model.SourceText {
		t.Errorf("kind = %s, want text", kind)
	}
	if res.Text != "hello world" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestRegistryUnsupportedFormat(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Extract(context.Background(), []byte{0xff, 0xfe}, Hint{OriginalFilename: "mystery.bin"})
	if err == nil {
		t.Fatal("expected an error for an unclaimed payload")
	}
}

func TestStripIgnoreRegions(t *testing.T) {
	in := "keep this\n<!-- RAG:IGNORE-START -->\nsecret stuff\n<!-- RAG:IGNORE-END -->\nkeep this too"
	got := StripIgnoreRegions(in)
	if got != "keep this\n\nkeep this too" {
		t.Errorf("StripIgnoreRegions() = %q", got)
	}
}

func TestStripIgnoreRegionsUnterminatedDropsToEnd(t *testing.T) {
	in := "keep\n<!-- RAG:IGNORE-START -->\neverything after is gone"
	got := StripIgnoreRegions(in)
	if got != "keep\n" {
		t.Errorf("StripIgnoreRegions() = %q, want content truncated at the unterminated marker", got)
	}
}

func TestChatExtractorDetectsTurnTranscript(t *testing.T) {
	e := NewChatExtractor()
	data := []byte("User: hello\nAssistant: hi there\nUser: how are you\nAssistant: good")
	if !e.Detect(Hint{}, data) {
		t.Fatal("expected turn-labeled transcript to be detected as chat")
	}
	res, err := e.Extract(context.Background(), data, Hint{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Text == "" {
		t.Error("expected non-empty extracted text")
	}
}

func TestWhatsAppNormalizesTimestamp(t *testing.T) {
	e := NewChatExtractor()
	data := []byte("[1/2/24, 10:30] Alice: hi\n[1/2/24, 10:31] Bob: hey there")
	if !e.Detect(Hint{OriginalFilename: "WhatsApp Chat.txt"}, data) {
		t.Fatal("expected WhatsApp-named file to be detected as chat")
	}
	res, err := e.Extract(context.Background(), data, Hint{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Text == "" {
		t.Error("expected non-empty normalized text")
	}
}

func TestEmailThreadIDIgnoresReplyPrefix(t *testing.T) {
	if threadID("Re: Q3 Planning") != threadID("Fwd: re: Q3 Planning") {
		t.Error("thread_id should be stable across Re:/Fwd: prefixes")
	}
	if threadID("Q3 Planning") == threadID("Q4 Planning") {
		t.Error("different subjects must not collide")
	}
}
