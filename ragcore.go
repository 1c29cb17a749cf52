// Package ragcore wires every component into the §6 external surface:
// ingest, search, chat, document, thread, entity_timeline, stats, and
// delete. Engine's constructor follows goreason.go's single New(cfg)
// wiring shape — open storage, build the dispatcher(s), construct every
// component in dependency order, hand the leaves to the two pipelines.
package ragcore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kesslerio/ragcore/chunker"
	"github.com/kesslerio/ragcore/confidence"
	"github.com/kesslerio/ragcore/corpus"
	"github.com/kesslerio/ragcore/costledger"
	"github.com/kesslerio/ragcore/dedup"
	"github.com/kesslerio/ragcore/docstore"
	"github.com/kesslerio/ragcore/embedding"
	"github.com/kesslerio/ragcore/enrichment"
	"github.com/kesslerio/ragcore/hyde"
	"github.com/kesslerio/ragcore/ingest"
	"github.com/kesslerio/ragcore/keywordindex"
	"github.com/kesslerio/ragcore/llm"
	"github.com/kesslerio/ragcore/llmdispatch"
	"github.com/kesslerio/ragcore/model"
	"github.com/kesslerio/ragcore/monitoring"
	"github.com/kesslerio/ragcore/ocrqueue"
	"github.com/kesslerio/ragcore/quality"
	"github.com/kesslerio/ragcore/query"
	"github.com/kesslerio/ragcore/rediscache"
	"github.com/kesslerio/ragcore/rerank"
	"github.com/kesslerio/ragcore/retrieval"
	"github.com/kesslerio/ragcore/source"
	"github.com/kesslerio/ragcore/synthesize"
	"github.com/kesslerio/ragcore/vectorindex"
	"github.com/kesslerio/ragcore/vocabulary"
)

// Engine is the assembled RAG core: every component wired from one
// Config, exposing the operations an external front-end drives.
type Engine struct {
	cfg Config

	db     *sql.DB
	docs   *docstore.Store
	vec    *vectorindex.Index
	kw     *keywordindex.Index
	corpus *corpus.Manager

	ledger   *costledger.Ledger
	ocrQueue *ocrqueue.Queue
	monitor  *monitoring.Monitor

	ingest *ingest.Pipeline
	query  *query.Pipeline
}

// New builds an Engine from cfg: opens the SQLite store, loads the
// controlled vocabulary, builds the LLM dispatchers from the configured
// provider pools, and wires every component (§2 component table) into
// the ingest and query pipelines.
func New(cfg Config) (*Engine, error) {
	dbPath := cfg.resolveDBPath()
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("ragcore: open db: %w", err)
	}

	vec, err := vectorindex.New(db, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("ragcore: vectorindex: %w", err)
	}
	kw, err := keywordindex.New(db)
	if err != nil {
		return nil, fmt.Errorf("ragcore: keywordindex: %w", err)
	}
	docs, err := docstore.New(db)
	if err != nil {
		return nil, fmt.Errorf("ragcore: docstore: %w", err)
	}

	vocab := vocabulary.New()
	if cfg.VocabularyDir != "" {
		if err := vocab.Load(cfg.VocabularyDir); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrVocabularyLoad, err)
		}
	}

	ledger, err := costledger.Open(cfg.CostLedgerPath)
	if err != nil {
		return nil, fmt.Errorf("ragcore: cost ledger: %w", err)
	}

	// A non-positive DailyBudgetUSD leaves dispatch unmetered.
	limit := cfg.DailyBudgetUSD
	if limit <= 0 {
		limit = math.Inf(1)
	}
	budget := &llmdispatch.Budget{LimitUSD: limit}

	chatDispatcher, err := newDispatcher(cfg.ChatProviders, budget, ledger)
	if err != nil {
		return nil, fmt.Errorf("ragcore: chat dispatcher: %w", err)
	}
	// A fast dispatcher over just the cheapest (first) chat provider,
	// used by Reranker's stage-1 prefilter (§4.11); nil when there's
	// nothing cheaper than the full precise chain to fall back to.
	var fastDispatcher *llmdispatch.Dispatcher
	if len(cfg.ChatProviders) > 1 {
		fastDispatcher, err = newDispatcher(cfg.ChatProviders[:1], budget, ledger)
		if err != nil {
			return nil, fmt.Errorf("ragcore: fast dispatcher: %w", err)
		}
	}

	// embedding.Service wraps a single llm.Provider directly (no
	// fallback chain of its own), so only the first-preference
	// embedding provider is built here, not a full Dispatcher.
	embedProvider, err := firstProvider(cfg.EmbeddingProviders)
	if err != nil {
		return nil, fmt.Errorf("ragcore: embedding provider: %w", err)
	}
	embedSvc := embedding.New(embedProvider, cfg.EmbeddingDim)

	monitor := monitoring.New(nil)

	ocrQueue, err := ocrqueue.Open(cfg.OCRQueuePath)
	if err != nil {
		return nil, fmt.Errorf("ragcore: ocr queue: %w", err)
	}

	corpusMgr := corpus.New(vec, kw)
	sources := source.NewDefaultRegistry()
	enrichSvc := enrichment.New(chatDispatcher, vocab, enrichment.NewPeopleRegistry())

	ingestPipeline := ingest.New(
		sources, dedup.New(), enrichSvc, quality.New(), chunker.New(),
		embedSvc, vec, kw, docs, corpusMgr, ocrQueue, monitor,
	)

	retriever := retrieval.New(vec, kw, docs, embedSvc, retrieval.Config{
		WeightBM25:  cfg.WeightBM25,
		WeightDense: cfg.WeightDense,
		MMRLambda:   cfg.MMRLambda,
		TopK:        cfg.TopKDefault,
	})
	rerankSvc := rerank.New(chatDispatcher, fastDispatcher, cfg.ModelCacheDir)
	if cfg.RedisAddr != "" {
		ttl := time.Duration(cfg.RerankCacheTTLMin) * time.Minute
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		rerankSvc.SetCache(rediscache.New(cfg.RedisAddr, ttl))
	}
	var expander *hyde.Service
	if cfg.EnableHyDE {
		expander = hyde.New(chatDispatcher)
	}
	synthSvc := synthesize.New(chatDispatcher)
	queryPipeline := query.New(retriever, rerankSvc, expander, synthSvc)

	return &Engine{
		cfg: cfg, db: db, docs: docs, vec: vec, kw: kw, corpus: corpusMgr,
		ledger: ledger, ocrQueue: ocrQueue, monitor: monitor,
		ingest: ingestPipeline, query: queryPipeline,
	}, nil
}

func newDispatcher(specs []LLMConfig, budget *llmdispatch.Budget, ledger *costledger.Ledger) (*llmdispatch.Dispatcher, error) {
	providerSpecs := make([]model.ProviderSpec, len(specs))
	for i, c := range specs {
		providerSpecs[i] = model.ProviderSpec{
			Provider:           c.Provider,
			ModelID:            c.Model,
			USDPer1kPrompt:     c.USDPer1kPrompt,
			USDPer1kCompletion: c.USDPer1kCompletion,
			ContextWindow:      c.ContextWindow,
			SupportsStructured: c.StructuredOutput,
			SupportsVision:     c.Vision,
			BaseURL:            c.BaseURL,
			APIKey:             c.APIKey,
		}
	}
	byKey := make(map[string]LLMConfig, len(specs))
	for _, c := range specs {
		byKey[c.Provider+"/"+c.Model] = c
	}
	return llmdispatch.New(providerSpecs, budget, ledger, func(spec model.ProviderSpec) (llm.Provider, error) {
		cfg := byKey[spec.Provider+"/"+spec.ModelID]
		return llm.NewProvider(llm.Config{Provider: cfg.Provider, Model: cfg.Model, BaseURL: cfg.BaseURL, APIKey: cfg.APIKey})
	})
}

func firstProvider(specs []LLMConfig) (llm.Provider, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no embedding provider configured", model.ErrInvalidConfig)
	}
	c := specs[0]
	return llm.NewProvider(llm.Config{Provider: c.Provider, Model: c.Model, BaseURL: c.BaseURL, APIKey: c.APIKey})
}

// IngestResult is the ingest() operation's response shape.
type IngestResult struct {
	DocID      string
	NumChunks  int
	Gated      bool
	GateReason string
	Duplicate  bool
	CostUSD    float64
}

// Ingest runs the ingestion pipeline over raw bytes.
func (e *Engine) Ingest(ctx context.Context, data []byte, filename string, forceKind model.SourceKind) (IngestResult, error) {
	out := e.ingest.Ingest(ctx, data, ingest.Hints{OriginalFilename: filename, ForceKind: forceKind})
	if out.Kind == ingest.OutcomeFailed {
		return IngestResult{}, fmt.Errorf("%w: %s", model.ErrParseFailed, out.Reason)
	}
	return IngestResult{
		DocID:      out.DocID,
		NumChunks:  out.NumChunks,
		Gated:      out.Kind == ingest.OutcomeGated,
		GateReason: out.Reason,
		Duplicate:  out.Kind == ingest.OutcomeDuplicate,
		CostUSD:    out.CostUSD,
	}, nil
}

// Search runs the full query pipeline, synthesis included, and returns
// only its ranked chunks (the search() operation); HyDE applies only
// when the engine was built with EnableHyDE.
func (e *Engine) Search(ctx context.Context, text string, topK int, filter retrieval.Filter, useRerank, useHyDE bool) ([]model.ScoredChunk, error) {
	resp, err := e.query.Ask(ctx, query.Request{
		Query: text, Kind: corpus.QueryKindSearch, Filter: filter,
		UseHyDE: useHyDE, RerankTopK: topK, SkipRerank: !useRerank,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Chunks) == 0 {
		return nil, model.ErrEmptyCorpus
	}
	return resp.Chunks, nil
}

// ChatResult is the chat() operation's response shape.
type ChatResult struct {
	Answer         string
	Citations      []synthesize.Citation
	ModelUsed      string
	CostUSD        float64
	Confidence     float64
	Recommendation confidence.Recommendation
}

// Chat answers a question via full retrieve→rerank→confidence→synthesize.
func (e *Engine) Chat(ctx context.Context, question string, topK int, filter retrieval.Filter) (ChatResult, error) {
	resp, err := e.query.Ask(ctx, query.Request{
		Query: question, Kind: corpus.QueryKindQA, Filter: filter,
		RerankTopK: topK, SkipRerank: !e.cfg.EnableRerank,
	})
	if err != nil {
		return ChatResult{}, err
	}
	result := ChatResult{
		Answer:         resp.Answer.AnswerText,
		Citations:      resp.Answer.Citations,
		ModelUsed:      resp.Answer.ModelUsed,
		CostUSD:        resp.Answer.USD,
		Confidence:     resp.Assessment.Overall,
		Recommendation: resp.Assessment.Recommendation,
	}
	if !resp.Assessment.IsSufficient {
		return result, fmt.Errorf("%w", model.ErrInsufficientEvidence)
	}
	return result, nil
}

// Document returns one document's metadata and its chunk summary.
func (e *Engine) Document(ctx context.Context, docID string) (model.Document, []model.Chunk, error) {
	doc, err := e.docs.GetDocument(ctx, docID)
	if err != nil {
		return model.Document{}, nil, err
	}
	chunks, err := e.docs.GetChunksByDocument(ctx, docID)
	if err != nil {
		return model.Document{}, nil, err
	}
	return doc, chunks, nil
}

// Thread returns every document sharing threadKey, ordered by created_at.
func (e *Engine) Thread(ctx context.Context, threadKey string) ([]model.Document, error) {
	all, err := e.docs.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Document
	for _, d := range all {
		if d.Provenance.ThreadKey == threadKey {
			out = append(out, d)
		}
	}
	return out, nil
}

// EntityKind selects which metadata field EntityTimeline scans.
type EntityKind string

const (
	EntityTopic        EntityKind = "topic"
	EntityProject      EntityKind = "project"
	EntityPlace        EntityKind = "place"
	EntityPerson       EntityKind = "person"
	EntityOrganization EntityKind = "organization"
)

// EntityTimeline returns every document mentioning name under kind, in
// chronological order by created_at.
func (e *Engine) EntityTimeline(ctx context.Context, name string, kind EntityKind) ([]model.Document, error) {
	all, err := e.docs.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Document
	for _, d := range all {
		if mentions(d.Metadata, name, kind) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func mentions(m model.EnrichedMetadata, name string, kind EntityKind) bool {
	var list []string
	switch kind {
	case EntityTopic:
		list = m.Topics
	case EntityProject:
		list = m.Projects
	case EntityPlace:
		list = m.Places
	case EntityPerson:
		list = m.People
	case EntityOrganization:
		list = m.Organizations
	}
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}

// Stats is the stats() operation's response shape.
type Stats struct {
	Documents    int
	Chunks       int
	TotalCostUSD float64
	OCRQueueSize int
}

// Stats reports corpus counts, cumulative spend, and queue depth.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	corpusStats, err := e.docs.CorpusStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	totalUSD, err := e.ledger.TotalUSD()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Documents:    corpusStats.DocumentCount,
		Chunks:       corpusStats.ChunkCount,
		TotalCostUSD: totalUSD,
		OCRQueueSize: len(e.ocrQueue.Entries()),
	}, nil
}

// Delete removes a document and every chunk/index entry derived from it,
// across both corpus views (§4.15's coordinated cross-index delete).
func (e *Engine) Delete(ctx context.Context, docID string) error {
	if _, err := e.docs.GetDocument(ctx, docID); err != nil {
		return err
	}
	if err := e.corpus.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("ragcore: delete from indexes: %w", err)
	}
	return e.docs.DeleteDocument(ctx, docID)
}

// Close releases the underlying database connection.
func (e *Engine) Close() error {
	return e.db.Close()
}
