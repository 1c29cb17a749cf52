// Package synthesize implements C17: composing a grounded answer from
// reranked context. build_prompt assembles numbered context blocks
// carrying [source: title, chunk_position] tags and a strict
// context-only instruction; Synthesize calls the LLMDispatcher with a
// plain completion and extracts citations by source number, following
// reasoning.ExtractCitations' [Source N] convention and
// confidence.ResponseForLowConfidence's obligation to short-circuit
// before ever reaching the dispatcher when the gate says not to answer.
package synthesize

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kesslerio/ragcore/confidence"
	"github.com/kesslerio/ragcore/llmdispatch"
	"github.com/kesslerio/ragcore/model"
)

const defaultMaxTokens = 1000

// Citation attributes part of the answer to one retrieved chunk,
// referenced by the source number the model was told to cite.
type Citation struct {
	SourceNumber int    `json:"source_number"`
	ChunkID      string `json:"chunk_id"`
	Title        string `json:"title"`
	Position     int    `json:"position"`
}

// Result is everything the caller needs to render an answer and judge
// its grounding, per §4.14.
type Result struct {
	AnswerText string
	Citations  []Citation
	ModelUsed  string
	USD        float64
	LatencyMS  int64
}

// Service composes and dispatches synthesis prompts.
type Service struct {
	dispatcher *llmdispatch.Dispatcher
}

// New returns a Service bound to dispatcher.
func New(dispatcher *llmdispatch.Dispatcher) *Service {
	return &Service{dispatcher: dispatcher}
}

// Synthesize builds a grounded-answer prompt from query and chunks and
// calls the dispatcher, attributing citations by source number. If
// assessment.Recommendation isn't confidence.RecommendAnswer (or
// RecommendPartialAnswer), it returns the gate's canned response
// without ever calling the dispatcher — the Synthesizer must obey the
// gate, not second-guess it.
func (s *Service) Synthesize(ctx context.Context, query string, chunks []model.ScoredChunk, assessment confidence.Assessment) (Result, error) {
	switch assessment.Recommendation {
	case confidence.RecommendRefuseNoResults, confidence.RecommendRefuseIrrelevant, confidence.RecommendClarifyQuestion:
		return Result{AnswerText: confidence.ResponseForLowConfidence(assessment, query)}, nil
	}

	start := time.Now()
	prompt := buildPrompt(query, chunks, assessment.Recommendation == confidence.RecommendPartialAnswer)
	result, err := s.dispatcher.Complete(ctx, prompt, defaultMaxTokens, 0.2)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return Result{}, fmt.Errorf("synthesize: %w", err)
	}

	return Result{
		AnswerText: result.Text,
		Citations:  extractCitations(result.Text, chunks),
		ModelUsed:  result.UsedModel,
		USD:        result.USD,
		LatencyMS:  latency,
	}, nil
}

func buildPrompt(query string, chunks []model.ScoredChunk, partial bool) string {
	var b strings.Builder
	b.WriteString("Answer the question using ONLY the numbered context below. ")
	b.WriteString("Cite every claim by its source number in brackets, e.g. [Source 2]. ")
	b.WriteString("If the context doesn't fully answer the question, say so explicitly")
	if partial {
		b.WriteString(" and make clear the answer is partial")
	}
	b.WriteString(".\n\n")

	for i, c := range chunks {
		fmt.Fprintf(&b, "[Source %d: %s, chunk %d]\n%s\n\n", i+1, c.Chunk.Title, c.Chunk.Position, c.Chunk.Text)
	}

	fmt.Fprintf(&b, "Question: %s\n\nAnswer:", query)
	return b.String()
}

var sourceCitationPattern = regexp.MustCompile(`\[Source\s*(\d+)\]`)

// extractCitations finds every [Source N] reference the model emitted
// and resolves it back to the chunk that occupied position N in the
// prompt. Out-of-range references are dropped rather than erroring —
// an ungrounded sentence is a caller-surfaced warning, not a failure.
func extractCitations(answer string, chunks []model.ScoredChunk) []Citation {
	seen := make(map[int]bool)
	var citations []Citation

	for _, match := range sourceCitationPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > len(chunks) || seen[n] {
			continue
		}
		seen[n] = true
		c := chunks[n-1].Chunk
		citations = append(citations, Citation{
			SourceNumber: n,
			ChunkID:      c.ChunkID,
			Title:        c.Title,
			Position:     c.Position,
		})
	}
	return citations
}
