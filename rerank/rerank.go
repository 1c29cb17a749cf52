// Package rerank implements C14: cross-encoder rescoring of the
// Retriever's fused candidates, with an LRU+TTL result cache and
// optional two-stage (fast prefilter, precise final) scoring. The pack
// carries no local ML-inference binding anywhere (no onnxruntime, gguf
// loader, or tensor runtime in any example repo's go.mod), so the
// cross-encoder itself is realized through the same llmdispatch.Dispatcher
// every other LLM-backed component here uses — the dispatcher, not a
// downloaded model file, is what actually scores relevance. The
// repair-on-failure structured-output path (llmdispatch.CompleteStructured)
// and JSON-extraction shape follow enrichment's Enrich directly.
package rerank

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kesslerio/ragcore/llmdispatch"
	"github.com/kesslerio/ragcore/model"
)

const (
	defaultCacheSize = 1000
	defaultCacheTTL  = 10 * time.Minute
	defaultStage1K   = 50
	defaultStage2K   = 10
	maxPassageChars  = 800
)

// Metrics counts cache hits, misses, and evictions since the Service
// was created.
type Metrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

type cacheEntry struct {
	results   []model.ScoredChunk
	expiresAt time.Time
}

// Cache is the pluggable backing store for reranked results, keyed by
// cacheKey. The default is the in-process LRU+TTL cache below; SetCache
// lets a caller swap in an external backend (e.g. Redis) that survives
// process restarts and is shared across instances.
type Cache interface {
	Get(key string) ([]model.ScoredChunk, bool)
	Put(key string, results []model.ScoredChunk)
	Metrics() Metrics
}

// cache is a fixed-capacity LRU keyed by string, with TTL-based
// expiry checked on read. Eviction order is tracked as a plain slice
// since the spec's capacity (1000) never justifies a heap/list.
type cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*cacheEntry
	order    []string // least-recently-used first
	metrics  Metrics
}

func newCache(capacity int, ttl time.Duration) *cache {
	return &cache{capacity: capacity, ttl: ttl, entries: make(map[string]*cacheEntry)}
}

func (c *cache) Get(key string) ([]model.ScoredChunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.metrics.Misses++
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.metrics.Misses++
		return nil, false
	}
	c.touch(key)
	c.metrics.Hits++
	return e.results, true
}

func (c *cache) Put(key string, results []model.ScoredChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries[key] = &cacheEntry{results: results, expiresAt: time.Now().Add(c.ttl)}
	c.touch(key)
}

func (c *cache) touch(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *cache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
	c.metrics.Evictions++
}

func (c *cache) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// cacheKey is MD5(query + concatenated candidate chunk_ids + top_k +
// multistage flag), per §4.11.
func cacheKey(query string, candidates []model.ScoredChunk, topK int, multistage bool) string {
	var b strings.Builder
	b.WriteString(query)
	for _, c := range candidates {
		b.WriteString(c.Chunk.ChunkID)
	}
	b.WriteString(strconv.Itoa(topK))
	b.WriteString(strconv.FormatBool(multistage))
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Service reranks retrieval candidates. precise is required; fast is
// optional and, when nil, RerankMultistage always degrades to a
// single precise pass.
type Service struct {
	precise       *llmdispatch.Dispatcher
	fast          *llmdispatch.Dispatcher
	cache         Cache
	modelCacheDir string
	loadOnce      sync.Once
	loadErr       error
}

// New returns a Service. modelCacheDir is the directory the operational
// contract requires to persist across restarts (§6); empty disables the
// lazy-load step entirely.
func New(precise, fast *llmdispatch.Dispatcher, modelCacheDir string) *Service {
	return &Service{
		precise:       precise,
		fast:          fast,
		cache:         newCache(defaultCacheSize, defaultCacheTTL),
		modelCacheDir: modelCacheDir,
	}
}

// Metrics returns the cache's cumulative hit/miss/eviction counts.
func (s *Service) Metrics() Metrics { return s.cache.Metrics() }

// SetCache replaces the default in-process LRU+TTL cache with an
// external backend, e.g. a Redis-backed Cache shared across instances.
func (s *Service) SetCache(c Cache) { s.cache = c }

// ensureModelLoaded lazily ensures modelCacheDir exists, once per
// Service lifetime. Since the "model" here is the dispatcher's provider
// chain rather than a downloaded artifact, this step is the closest
// idiomatic stand-in for the spec's lazy-load-from-cache-dir contract.
func (s *Service) ensureModelLoaded() error {
	s.loadOnce.Do(func() {
		if s.modelCacheDir == "" {
			return
		}
		s.loadErr = os.MkdirAll(s.modelCacheDir, 0o755)
	})
	return s.loadErr
}

// Rerank scores candidates against query with the precise dispatcher
// and returns the top_k sorted by RerankScore descending. Each result
// still carries its original FusedScore/BM25Score/DenseScore.
func (s *Service) Rerank(ctx context.Context, query string, candidates []model.ScoredChunk, topK int, useCache bool) ([]model.ScoredChunk, error) {
	return s.rerankWith(ctx, s.precise, query, candidates, topK, useCache, false)
}

func (s *Service) rerankWith(ctx context.Context, dispatcher *llmdispatch.Dispatcher, query string, candidates []model.ScoredChunk, topK int, useCache, multistage bool) ([]model.ScoredChunk, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if err := s.ensureModelLoaded(); err != nil {
		return nil, fmt.Errorf("rerank: loading model: %w", err)
	}

	key := cacheKey(query, candidates, topK, multistage)
	if useCache {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}

	scores, err := score(ctx, dispatcher, query, candidates)
	if err != nil {
		return nil, err
	}
	out := make([]model.ScoredChunk, len(candidates))
	for i, c := range candidates {
		c.RerankScore = scores[i]
		out[i] = c
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RerankScore > out[j].RerankScore })
	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}
	if useCache {
		s.cache.Put(key, out)
	}
	return out, nil
}

// RerankMultistage runs a fast prefilter pass down to stage1K, then
// reranks the survivors with the precise dispatcher down to stage2K.
// When fast is unset or candidates is already at or below stage1K, it
// degrades to a single precise pass, per §4.11.
func (s *Service) RerankMultistage(ctx context.Context, query string, candidates []model.ScoredChunk, stage1K, stage2K int, useCache bool) ([]model.ScoredChunk, error) {
	if stage1K <= 0 {
		stage1K = defaultStage1K
	}
	if stage2K <= 0 {
		stage2K = defaultStage2K
	}
	if s.fast == nil || len(candidates) <= stage1K {
		return s.rerankWith(ctx, s.precise, query, candidates, stage2K, useCache, true)
	}
	stage1, err := s.rerankWith(ctx, s.fast, query, candidates, stage1K, useCache, true)
	if err != nil {
		return nil, fmt.Errorf("rerank: stage1: %w", err)
	}
	stage2, err := s.rerankWith(ctx, s.precise, query, stage1, stage2K, useCache, true)
	if err != nil {
		return nil, fmt.Errorf("rerank: stage2: %w", err)
	}
	return stage2, nil
}

// RerankBatch reranks each query against its aligned candidate list.
// queries and resultsLists must have equal length, per §4.11.
func (s *Service) RerankBatch(ctx context.Context, queries []string, resultsLists [][]model.ScoredChunk, topK int) ([][]model.ScoredChunk, error) {
	if len(queries) != len(resultsLists) {
		return nil, fmt.Errorf("rerank: %d queries but %d result lists", len(queries), len(resultsLists))
	}
	out := make([][]model.ScoredChunk, len(queries))
	for i, q := range queries {
		reranked, err := s.Rerank(ctx, q, resultsLists[i], topK, true)
		if err != nil {
			return nil, fmt.Errorf("rerank: batch item %d: %w", i, err)
		}
		out[i] = reranked
	}
	return out, nil
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

func scoreValidator() func([]byte) error {
	return func(payload []byte) error {
		var raw scoreResponse
		return json.Unmarshal(payload, &raw)
	}
}

// score asks dispatcher for one relevance score per candidate in a
// single structured call, the batched stand-in for a cross-encoder's
// per-pair forward pass.
func score(ctx context.Context, dispatcher *llmdispatch.Dispatcher, query string, candidates []model.ScoredChunk) ([]float64, error) {
	var b strings.Builder
	b.WriteString("Query: ")
	b.WriteString(query)
	b.WriteString("\n\nScore each passage's relevance to the query from 0.0 (irrelevant) to 1.0 (directly answers it).\n")
	b.WriteString("Return ONLY JSON: {\"scores\": [<one float per passage, in order>]}.\n\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "Passage %d: %s\n\n", i+1, truncate(c.Chunk.Text, maxPassageChars))
	}

	result, err := dispatcher.CompleteStructured(ctx, b.String(), scoreValidator(), 512)
	if err != nil {
		return nil, fmt.Errorf("rerank: scoring: %w", err)
	}
	var parsed scoreResponse
	if err := json.Unmarshal([]byte(result.Text), &parsed); err != nil {
		return nil, fmt.Errorf("rerank: parsing scores: %w", err)
	}
	if len(parsed.Scores) != len(candidates) {
		return nil, fmt.Errorf("rerank: got %d scores for %d candidates", len(parsed.Scores), len(candidates))
	}
	out := make([]float64, len(parsed.Scores))
	for i, sc := range parsed.Scores {
		out[i] = clamp01(sc)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
