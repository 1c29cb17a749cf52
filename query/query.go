// Package query implements C20: the ask-a-question pipeline, wiring
// HyDE query expansion, the Retriever, the Reranker, the ConfidenceGate,
// and the Synthesizer into one call per §4. HyDE is optional per
// request (useHyde) since §4.12 frames it as an additive precision
// technique, not a mandatory hop — the pipeline must work with it
// disabled and with the dispatcher unavailable alike.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/kesslerio/ragcore/confidence"
	"github.com/kesslerio/ragcore/corpus"
	"github.com/kesslerio/ragcore/hyde"
	"github.com/kesslerio/ragcore/model"
	"github.com/kesslerio/ragcore/rerank"
	"github.com/kesslerio/ragcore/retrieval"
	"github.com/kesslerio/ragcore/synthesize"
)

const defaultRerankTopK = 10

// Request bundles one question and its retrieval/expansion options.
type Request struct {
	Query      string
	Kind       corpus.QueryKind
	Filter     retrieval.Filter
	UseHyDE    bool
	NumHyDE    int
	// SkipRerank bypasses the Reranker and returns fused-score order
	// truncated to RerankTopK. Zero value reranks, matching the API
	// surface's use_rerank defaulting to true.
	SkipRerank bool
	RerankTopK int
}

// Response is the full pipeline result, including the confidence
// assessment that drove the Synthesizer's behavior.
type Response struct {
	Answer     synthesize.Result
	Assessment confidence.Assessment
	Chunks     []model.ScoredChunk
}

// Pipeline wires the five query-time components together.
type Pipeline struct {
	retriever *retrieval.Engine
	reranker  *rerank.Service
	expander  *hyde.Service
	synth     *synthesize.Service
}

// New returns a Pipeline. expander may be nil if HyDE is never used by
// any Request this Pipeline serves.
func New(retriever *retrieval.Engine, reranker *rerank.Service, expander *hyde.Service, synth *synthesize.Service) *Pipeline {
	return &Pipeline{retriever: retriever, reranker: reranker, expander: expander, synth: synth}
}

// Ask runs §4's query-time data flow: (optional) HyDE expansion → fused
// retrieval → rerank → confidence assessment → grounded synthesis or
// canned refusal.
func (p *Pipeline) Ask(ctx context.Context, req Request) (Response, error) {
	view := corpus.SuggestView(req.Kind)
	topK := req.RerankTopK
	if topK <= 0 {
		topK = defaultRerankTopK
	}

	candidates, err := p.retrieve(ctx, req, view)
	if err != nil {
		return Response{}, fmt.Errorf("query: retrieve: %w", err)
	}

	var reranked []model.ScoredChunk
	if req.SkipRerank {
		reranked = truncateByFusedScore(candidates, topK)
	} else {
		reranked, err = p.reranker.Rerank(ctx, req.Query, candidates, topK, true)
		if err != nil {
			return Response{}, fmt.Errorf("query: rerank: %w", err)
		}
	}

	assessment := confidence.Assess(req.Query, reranked)

	answer, err := p.synth.Synthesize(ctx, req.Query, reranked, assessment)
	if err != nil {
		return Response{}, fmt.Errorf("query: synthesize: %w", err)
	}

	return Response{Answer: answer, Assessment: assessment, Chunks: reranked}, nil
}

// retrieve runs a single-query search, or — when req.UseHyDE is set and
// an expander is configured — expands the query into variants first and
// merges each variant's results via hyde.MultiQuerySearch.
func (p *Pipeline) retrieve(ctx context.Context, req Request, view model.CorpusView) ([]model.ScoredChunk, error) {
	if !req.UseHyDE || p.expander == nil {
		return p.retriever.Search(ctx, view, req.Query, req.Filter)
	}

	variants := p.expander.Expand(ctx, req.Query, req.NumHyDE, hyde.StyleInformative)
	return hyde.MultiQuerySearch(ctx, variants, func(ctx context.Context, q string) ([]model.ScoredChunk, error) {
		return p.retriever.Search(ctx, view, q, req.Filter)
	})
}

// truncateByFusedScore sorts a copy of candidates by FusedScore
// descending and trims to topK, for the SkipRerank path.
func truncateByFusedScore(candidates []model.ScoredChunk, topK int) []model.ScoredChunk {
	out := make([]model.ScoredChunk, len(candidates))
	copy(out, candidates)
	sort.Slice(out, func(i, j int) bool { return out[i].FusedScore > out[j].FusedScore })
	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}
	return out
}
