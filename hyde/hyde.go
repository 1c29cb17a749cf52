// Package hyde implements C15: Hypothetical Document Embeddings query
// expansion. expand asks the LLMDispatcher for short hypothetical
// answers to a query, on the theory that a hypothetical answer's
// embedding sits closer to real answer chunks than the bare question
// does; multi_query_search then fans a set of query variants out to a
// caller-supplied search function and merges by max score per chunk_id.
// The structured-completion and graceful-degradation shape follows
// enrichment.Enrich (same dispatcher, same "never error past the
// dispatcher" contract) and the parallel-search-then-merge shape
// follows retrieval.Engine.Search's concurrent keyword/vector fanout.
package hyde

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kesslerio/ragcore/llmdispatch"
	"github.com/kesslerio/ragcore/model"
)

const defaultNumVariants = 2

// Style selects the tone of the generated hypothetical answers.
type Style string

const (
	StyleInformative Style = "informative"
	StyleConcise     Style = "concise"
)

// Service expands queries via an LLMDispatcher.
type Service struct {
	dispatcher *llmdispatch.Dispatcher
}

// New returns a Service bound to dispatcher.
func New(dispatcher *llmdispatch.Dispatcher) *Service {
	return &Service{dispatcher: dispatcher}
}

type expansion struct {
	Hypotheses []string `json:"hypotheses"`
}

// Expand returns [query, hypo_1, ..., hypo_numVariants]. On any
// dispatcher failure it returns the original query alone, per §4.12 —
// HyDE is strictly additive and must never turn a working query into a
// failed one.
func (s *Service) Expand(ctx context.Context, query string, numVariants int, style Style) []string {
	if numVariants <= 0 {
		numVariants = defaultNumVariants
	}
	if style == "" {
		style = StyleInformative
	}

	prompt := buildExpandPrompt(query, numVariants, style)
	result, err := s.dispatcher.CompleteStructured(ctx, prompt, expansionValidator(), 800)
	if err != nil {
		return []string{query}
	}
	var parsed expansion
	if err := json.Unmarshal([]byte(result.Text), &parsed); err != nil {
		return []string{query}
	}

	out := make([]string, 0, numVariants+1)
	out = append(out, query)
	for _, h := range parsed.Hypotheses {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

func buildExpandPrompt(query string, numVariants int, style Style) string {
	tone := "a detailed, informative hypothetical answer"
	if style == StyleConcise {
		tone = "a short, concise hypothetical answer"
	}
	return fmt.Sprintf(`Question: %s

Write %d different hypothetical answers to this question, each as %s,
as if taken verbatim from a document that actually answers it. Do not
hedge or say you don't know; invent plausible specifics.

Return ONLY JSON: {"hypotheses": [<%d strings>]}`, query, numVariants, tone, numVariants)
}

func expansionValidator() func([]byte) error {
	return func(payload []byte) error {
		var raw expansion
		return json.Unmarshal(payload, &raw)
	}
}

// SearchFunc runs one retrieval query and returns scored chunks, the
// shape retrieval.Engine.Search already satisfies.
type SearchFunc func(ctx context.Context, query string) ([]model.ScoredChunk, error)

// MultiQuerySearch runs search concurrently for every query, dedupes
// results by chunk_id keeping each candidate's max score across
// variants, and returns the merged set ranked by that merged score
// descending, per §4.12.
func MultiQuerySearch(ctx context.Context, queries []string, search SearchFunc) ([]model.ScoredChunk, error) {
	results := make([][]model.ScoredChunk, len(queries))
	errs := make([]error, len(queries))

	var wg sync.WaitGroup
	wg.Add(len(queries))
	for i, q := range queries {
		go func(i int, q string) {
			defer wg.Done()
			results[i], errs[i] = search(ctx, q)
		}(i, q)
	}
	wg.Wait()

	var firstErr error
	for _, err := range errs {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil && allFailed(errs) {
		return nil, fmt.Errorf("hyde: multi_query_search: %w", firstErr)
	}

	best := make(map[string]model.ScoredChunk)
	for _, variantResults := range results {
		for _, r := range variantResults {
			existing, ok := best[r.Chunk.ChunkID]
			if !ok || scoreOf(r) > scoreOf(existing) {
				best[r.Chunk.ChunkID] = r
			}
		}
	}

	merged := make([]model.ScoredChunk, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return scoreOf(merged[i]) > scoreOf(merged[j]) })
	return merged, nil
}

// scoreOf prefers RerankScore when present (post-rerank merge) and
// falls back to FusedScore, so MultiQuerySearch works whether it's fed
// pre- or post-rerank results.
func scoreOf(c model.ScoredChunk) float64 {
	if c.RerankScore != 0 {
		return c.RerankScore
	}
	return c.FusedScore
}

func allFailed(errs []error) bool {
	for _, err := range errs {
		if err == nil {
			return false
		}
	}
	return true
}
