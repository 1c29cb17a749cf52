package synthesize

import (
	"context"
	"strings"
	"testing"

	"github.com/kesslerio/ragcore/confidence"
	"github.com/kesslerio/ragcore/llm"
	"github.com/kesslerio/ragcore/llmdispatch"
	"github.com/kesslerio/ragcore/model"
)

type fakeProvider struct {
	response string
}

func (f fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: f.response}, nil
}

func (f fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func newTestDispatcher(t *testing.T, response string) *llmdispatch.Dispatcher {
	t.Helper()
	specs := []model.ProviderSpec{{Provider: "fake", ModelID: "fake-1"}}
	d, err := llmdispatch.New(specs, &llmdispatch.Budget{LimitUSD: 100}, nil, func(model.ProviderSpec) (llm.Provider, error) {
		return fakeProvider{response: response}, nil
	})
	if err != nil {
		t.Fatalf("llmdispatch.New() error = %v", err)
	}
	return d
}

func sampleChunks() []model.ScoredChunk {
	return []model.ScoredChunk{
		{Chunk: model.Chunk{ChunkID: "c1", Title: "Maintenance Manual", Position: 3, Text: "Rotate equipment quarterly."}},
		{Chunk: model.Chunk{ChunkID: "c2", Title: "Inspection Log", Position: 7, Text: "Inspections are logged per site."}},
	}
}

func TestSynthesizeReturnsAnswerWithCitations(t *testing.T) {
	d := newTestDispatcher(t, "Equipment should be rotated quarterly [Source 1], and inspections logged per site [Source 2].")
	svc := New(d)
	assessment := confidence.Assessment{Recommendation: confidence.RecommendAnswer}

	out, err := svc.Synthesize(context.Background(), "how often should equipment be rotated?", sampleChunks(), assessment)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(out.Citations) != 2 {
		t.Fatalf("Citations = %+v, want 2", out.Citations)
	}
	if out.Citations[0].ChunkID != "c1" || out.Citations[1].ChunkID != "c2" {
		t.Errorf("Citations = %+v, want c1 then c2", out.Citations)
	}
	if out.ModelUsed != "fake-1" {
		t.Errorf("ModelUsed = %q, want fake-1", out.ModelUsed)
	}
}

func TestSynthesizeIgnoresOutOfRangeCitations(t *testing.T) {
	d := newTestDispatcher(t, "This references a source that doesn't exist [Source 99].")
	svc := New(d)
	assessment := confidence.Assessment{Recommendation: confidence.RecommendAnswer}

	out, err := svc.Synthesize(context.Background(), "q", sampleChunks(), assessment)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(out.Citations) != 0 {
		t.Errorf("Citations = %+v, want none for an out-of-range reference", out.Citations)
	}
}

func TestSynthesizeDedupesRepeatedCitations(t *testing.T) {
	d := newTestDispatcher(t, "Quarterly rotation [Source 1] is required; see also [Source 1] for detail.")
	svc := New(d)
	assessment := confidence.Assessment{Recommendation: confidence.RecommendAnswer}

	out, err := svc.Synthesize(context.Background(), "q", sampleChunks(), assessment)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(out.Citations) != 1 {
		t.Errorf("Citations = %+v, want 1 deduped entry", out.Citations)
	}
}

func TestSynthesizeRefusesWithoutCallingDispatcherWhenGateSaysRefuse(t *testing.T) {
	d := newTestDispatcher(t, "this should never be reached")
	svc := New(d)
	assessment := confidence.Assessment{Recommendation: confidence.RecommendRefuseNoResults}

	out, err := svc.Synthesize(context.Background(), "q", nil, assessment)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if out.AnswerText == "" {
		t.Error("AnswerText is empty, want a canned refusal")
	}
	if out.ModelUsed != "" {
		t.Errorf("ModelUsed = %q, want empty since the dispatcher must not be called", out.ModelUsed)
	}
}

func TestSynthesizeClarifyQuestionAlsoSkipsDispatcher(t *testing.T) {
	d := newTestDispatcher(t, "this should never be reached")
	svc := New(d)
	assessment := confidence.Assessment{Recommendation: confidence.RecommendClarifyQuestion}

	out, err := svc.Synthesize(context.Background(), "vague question", sampleChunks(), assessment)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if out.AnswerText == "" {
		t.Error("AnswerText is empty, want a clarification prompt")
	}
}

func TestSynthesizeAnswersOnPartialRecommendation(t *testing.T) {
	d := newTestDispatcher(t, "Partial answer based on limited material [Source 1].")
	svc := New(d)
	assessment := confidence.Assessment{Recommendation: confidence.RecommendPartialAnswer}

	out, err := svc.Synthesize(context.Background(), "q", sampleChunks(), assessment)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if out.ModelUsed != "fake-1" {
		t.Errorf("ModelUsed = %q, want fake-1 — partial_answer must still call the dispatcher", out.ModelUsed)
	}
}

func TestBuildPromptIncludesSourceNumbersAndTitles(t *testing.T) {
	prompt := buildPrompt("when to rotate?", sampleChunks(), false)
	for _, want := range []string{"[Source 1: Maintenance Manual, chunk 3]", "[Source 2: Inspection Log, chunk 7]", "when to rotate?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("buildPrompt() missing %q:\n%s", want, prompt)
		}
	}
}
