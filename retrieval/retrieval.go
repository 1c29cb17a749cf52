// Package retrieval implements C13: hybrid search over the keyword (C7)
// and vector (C6) indexes, fused by weighted sum and diversified by MMR.
// The parallel-search-then-fuse shape follows this package's own prior
// vector+FTS+graph fanout (retrieval.go before this rewrite); the fusion
// itself is simplified from that version's Reciprocal Rank Fusion (see
// the deleted rrf.go, justified in DESIGN.md) to the spec's weighted sum
// of already min-max-normalized scores, since keywordindex.Query and
// vectorindex.Query both return [0,1]-normalized scores directly.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/kesslerio/ragcore/docstore"
	"github.com/kesslerio/ragcore/embedding"
	"github.com/kesslerio/ragcore/keywordindex"
	"github.com/kesslerio/ragcore/model"
	"github.com/kesslerio/ragcore/vectorindex"
)

const (
	defaultCandidateK  = 50
	defaultTopK        = 20
	defaultWeightBM25  = 0.3
	defaultWeightDense = 0.7
	defaultMMRLambda   = 0.7
)

// Config tunes fusion, diversification, and candidate-pool sizing. A
// zero Config is filled in with the spec's defaults by withDefaults.
type Config struct {
	WeightBM25  float64
	WeightDense float64
	MMRLambda   float64
	CandidateK  int
	TopK        int
}

func (c Config) withDefaults() Config {
	if c.WeightBM25 == 0 && c.WeightDense == 0 {
		c.WeightBM25, c.WeightDense = defaultWeightBM25, defaultWeightDense
	}
	if c.MMRLambda == 0 {
		c.MMRLambda = defaultMMRLambda
	}
	if c.CandidateK == 0 {
		c.CandidateK = defaultCandidateK
	}
	if c.TopK == 0 {
		c.TopK = defaultTopK
	}
	return c
}

// Filter restricts candidates by denormalized chunk metadata before MMR
// diversification runs, so diversity is spent on results the caller
// actually wants.
type Filter struct {
	Topics      []string
	SourceKinds []model.SourceKind
}

// Matches reports whether c satisfies every non-empty constraint in f.
// A zero Filter matches everything.
func (f Filter) Matches(c model.Chunk) bool {
	if len(f.Topics) > 0 && !anyTopicMatches(f.Topics, c.Topics) {
		return false
	}
	if len(f.SourceKinds) > 0 && !containsKind(f.SourceKinds, c.SourceKind) {
		return false
	}
	return true
}

func anyTopicMatches(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(w, h) {
				return true
			}
		}
	}
	return false
}

func containsKind(kinds []model.SourceKind, k model.SourceKind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

// Engine runs hybrid retrieval over one corpus view at a time; callers
// pick the view per query via corpus.SuggestView.
type Engine struct {
	vec   *vectorindex.Index
	kw    *keywordindex.Index
	docs  *docstore.Store
	embed *embedding.Service
	cfg   Config
}

// New returns an Engine wired to the given indexes, document registry,
// and embedding service, applying cfg's defaults.
func New(vec *vectorindex.Index, kw *keywordindex.Index, docs *docstore.Store, embed *embedding.Service, cfg Config) *Engine {
	return &Engine{vec: vec, kw: kw, docs: docs, embed: embed, cfg: cfg.withDefaults()}
}

// Search runs the full hybrid-retrieval algorithm against view: keyword
// and vector candidate search in parallel, weighted-sum fusion, an
// optional metadata filter, then MMR diversification down to cfg.TopK.
func (e *Engine) Search(ctx context.Context, view model.CorpusView, query string, filter Filter) ([]model.ScoredChunk, error) {
	ftsQuery := sanitizeFTSQuery(query, nil)

	var kwMatches []keywordindex.Match
	var vecMatches []vectorindex.Match
	var kwErr, vecErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		kwMatches, kwErr = e.kw.Query(ctx, view, ftsQuery, e.cfg.CandidateK)
	}()
	go func() {
		defer wg.Done()
		vecs, err := e.embed.Embed(ctx, []string{query}, embedding.KindQuery)
		if err != nil {
			vecErr = err
			return
		}
		vecMatches, vecErr = e.vec.Query(ctx, view, vecs[0], e.cfg.CandidateK)
	}()
	wg.Wait()
	if kwErr != nil {
		return nil, fmt.Errorf("retrieval: keyword search: %w", kwErr)
	}
	if vecErr != nil {
		return nil, fmt.Errorf("retrieval: vector search: %w", vecErr)
	}

	fused := e.fuse(kwMatches, vecMatches)
	if len(fused) == 0 {
		return nil, nil
	}

	candidates := make([]model.ScoredChunk, 0, len(fused))
	for _, f := range fused {
		chunk, err := e.docs.GetChunk(ctx, f.chunkID)
		if err != nil {
			continue // chunk_id indexed but registry entry missing/deleted; skip rather than fail the whole query
		}
		if !filter.Matches(chunk) {
			continue
		}
		candidates = append(candidates, model.ScoredChunk{
			Chunk: chunk, FusedScore: f.fused, BM25Score: f.bm25, DenseScore: f.dense,
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].FusedScore > candidates[j].FusedScore })
	return e.diversify(ctx, view, candidates), nil
}

type fusedCandidate struct {
	chunkID string
	bm25    float64
	dense   float64
	fused   float64
}

// fuse merges keyword and vector matches by chunk_id and computes the
// weighted-sum score. A chunk present in only one result set gets 0 for
// the missing term, per §4.10.
func (e *Engine) fuse(kw []keywordindex.Match, vec []vectorindex.Match) []fusedCandidate {
	byID := make(map[string]*fusedCandidate)
	for _, m := range kw {
		byID[m.ChunkID] = &fusedCandidate{chunkID: m.ChunkID, bm25: m.Score}
	}
	for _, m := range vec {
		c, ok := byID[m.ChunkID]
		if !ok {
			c = &fusedCandidate{chunkID: m.ChunkID}
			byID[m.ChunkID] = c
		}
		c.dense = m.Score
	}
	out := make([]fusedCandidate, 0, len(byID))
	for _, c := range byID {
		c.fused = e.cfg.WeightBM25*c.bm25 + e.cfg.WeightDense*c.dense
		out = append(out, *c)
	}
	return out
}

// diversify applies Maximal Marginal Relevance over candidates (already
// sorted by FusedScore descending) so near-duplicate top hits don't
// crowd out distinct but still relevant chunks, stopping at cfg.TopK.
// Similarity between two chunks is cosine over their stored embeddings,
// fetched lazily since Search's candidates don't carry one by default
// (vectorindex.Match never returns the vector itself, only a score).
func (e *Engine) diversify(ctx context.Context, view model.CorpusView, candidates []model.ScoredChunk) []model.ScoredChunk {
	limit := e.cfg.TopK
	if limit >= len(candidates) {
		return candidates
	}

	selected := make([]model.ScoredChunk, 0, limit)
	remaining := append([]model.ScoredChunk(nil), candidates...)

	for len(selected) < limit && len(remaining) > 0 {
		bestIdx, bestScore := 0, -1.0
		for i, cand := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				if s := e.cosineSimilarity(ctx, view, cand.Chunk.ChunkID, sel.Chunk.ChunkID); s > maxSim {
					maxSim = s
				}
			}
			mmr := e.cfg.MMRLambda*cand.FusedScore - (1-e.cfg.MMRLambda)*maxSim
			if mmr > bestScore {
				bestScore, bestIdx = mmr, i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// cosineSimilarity fetches both chunks' stored embeddings and returns
// their cosine similarity, or 0 if either is unavailable (e.g. a
// keyword-only hit with no vector entry) — MMR then falls back to pure
// relevance ranking for that pair, which is the safe degraded behavior.
func (e *Engine) cosineSimilarity(ctx context.Context, view model.CorpusView, idA, idB string) float64 {
	if idA == idB {
		return 1
	}
	a, okA := e.embeddingOf(ctx, view, idA)
	b, okB := e.embeddingOf(ctx, view, idB)
	if !okA || !okB {
		return 0
	}
	return cosine(a, b)
}

func (e *Engine) embeddingOf(ctx context.Context, view model.CorpusView, chunkID string) ([]float32, bool) {
	v, err := e.vec.Embedding(ctx, view, chunkID)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
