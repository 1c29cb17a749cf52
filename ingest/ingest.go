// Package ingest implements C19: the orchestration of extract → dedup →
// enrich → score → chunk → embed → index → OCR-queue → metrics over one
// document's raw bytes, per §4.16. It is pure wiring — every step
// delegates to its own component package — and follows goreason.go's
// Ingest method for the overall shape (sequential steps with named
// early-return outcomes) while replacing its single-pass parse+store
// with the fuller nine-step sequence the expanded design calls for.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kesslerio/ragcore/chunker"
	"github.com/kesslerio/ragcore/corpus"
	"github.com/kesslerio/ragcore/dedup"
	"github.com/kesslerio/ragcore/docstore"
	"github.com/kesslerio/ragcore/embedding"
	"github.com/kesslerio/ragcore/enrichment"
	"github.com/kesslerio/ragcore/keywordindex"
	"github.com/kesslerio/ragcore/model"
	"github.com/kesslerio/ragcore/monitoring"
	"github.com/kesslerio/ragcore/ocrqueue"
	"github.com/kesslerio/ragcore/quality"
	"github.com/kesslerio/ragcore/source"
	"github.com/kesslerio/ragcore/vectorindex"
)

// OutcomeKind tags what happened to one ingest call.
type OutcomeKind string

const (
	OutcomeIndexed   OutcomeKind = "indexed"
	OutcomeDuplicate OutcomeKind = "duplicate"
	OutcomeGated     OutcomeKind = "gated"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is the tagged result of one Ingest call, per §4.16's
// failed/duplicate/gated/indexed taxonomy.
type Outcome struct {
	Kind      OutcomeKind
	DocID     string
	Reason    string // gate_reason or failure detail
	NumChunks int
	CostUSD   float64
}

// Hints carries the caller-supplied context passed straight through to
// source detection and enrichment.
type Hints struct {
	MIMEType         string
	OriginalFilename string
	ForceKind        model.SourceKind
}

// Pipeline wires every ingest-time component together.
type Pipeline struct {
	sources    *source.Registry
	dedup      *dedup.Deduper
	enrich     *enrichment.Service
	score      *quality.Scorer
	chunk      *chunker.Chunker
	embed      *embedding.Service
	vec        *vectorindex.Index
	kw         *keywordindex.Index
	docs       *docstore.Store
	corpus     *corpus.Manager
	ocrQueue   *ocrqueue.Queue
	monitor    *monitoring.Monitor
	embedBatch int
}

// New wires a Pipeline from its constituent components. All chunk texts
// of a document are embedded in a single embedding.Service.Embed call.
func New(
	sources *source.Registry,
	deduper *dedup.Deduper,
	enrich *enrichment.Service,
	score *quality.Scorer,
	chunk *chunker.Chunker,
	embed *embedding.Service,
	vec *vectorindex.Index,
	kw *keywordindex.Index,
	docs *docstore.Store,
	corpusMgr *corpus.Manager,
	ocrQueue *ocrqueue.Queue,
	monitor *monitoring.Monitor,
) *Pipeline {
	return &Pipeline{
		sources: sources, dedup: deduper, enrich: enrich, score: score,
		chunk: chunk, embed: embed, vec: vec, kw: kw, docs: docs,
		corpus: corpusMgr, ocrQueue: ocrQueue, monitor: monitor,
	}
}

// Ingest runs the full §4.16 sequence over sourceBytes. It is
// idempotent by content_hash: a re-ingest of byte-identical content
// returns the existing doc_id without re-running enrichment, scoring,
// or indexing.
func (p *Pipeline) Ingest(ctx context.Context, sourceBytes []byte, hints Hints) Outcome {
	// 1. extract
	extracted, kind, err := p.sources.Extract(ctx, sourceBytes, source.Hint{
		MIMEType:         hints.MIMEType,
		OriginalFilename: hints.OriginalFilename,
		ForceKind:        hints.ForceKind,
	})
	if err != nil {
		p.logEvent("error", "ingest_extract_failed", "error", err.Error())
		return Outcome{Kind: OutcomeFailed, Reason: err.Error()}
	}

	docID := newDocID(extracted.Provenance, sourceBytes)
	contentHash := dedup.ContentHash(extracted.Text)

	if existing, ok, err := p.docs.FindByContentHash(ctx, contentHash); err == nil && ok {
		p.logEvent("info", "ingest_idempotent_hit", "doc_id", existing)
		return Outcome{Kind: OutcomeIndexed, DocID: existing}
	}

	// 2. dedup
	dedupResult := p.dedup.Check(docID, extracted.Text)
	now := time.Now().UTC()

	if dedupResult.IsDuplicate {
		doc := model.Document{
			DocID:       docID,
			SourceKind:  kind,
			IngestedAt:  now,
			CreatedAt:   now,
			ContentHash: contentHash,
			ByteSize:    int64(len(sourceBytes)),
			Provenance:  extracted.Provenance,
			IsDuplicate: true,
		}
		if err := p.docs.PutDocument(ctx, doc); err != nil {
			return Outcome{Kind: OutcomeFailed, Reason: err.Error()}
		}
		p.counter("ingest_duplicate_total")
		return Outcome{Kind: OutcomeDuplicate, DocID: docID, Reason: dedupResult.ExistingDocID}
	}

	// 3. enrich
	title, metadata := p.enrich.Enrich(ctx, enrichment.Hint{
		OriginalFilename: hints.OriginalFilename,
		Kind:             kind,
		RawText:          extracted.Text,
	})

	// 4. score
	scores := p.score.Compute(quality.Input{
		GateKind:       gateKindFor(kind),
		OCRConfidence:  extracted.OCRConfidence,
		ParseSucceeded: true,
		HasStructure:   chunker.HasStructuralSignal(extracted.Text),
		TextLength:     len(extracted.Text),
		Now:            now,
	})

	doc := model.Document{
		DocID:         docID,
		SourceKind:    kind,
		Title:         title,
		IngestedAt:    now,
		CreatedAt:     now,
		ContentHash:   contentHash,
		ByteSize:      int64(len(sourceBytes)),
		OCRConfidence: extracted.OCRConfidence,
		Provenance:    extracted.Provenance,
		Metadata:      metadata,
		Scores:        scores,
		IsDuplicate:   false,
	}
	if err := p.docs.PutDocument(ctx, doc); err != nil {
		return Outcome{Kind: OutcomeFailed, Reason: err.Error()}
	}

	if !scores.DoIndex {
		p.counter("ingest_gated_total")
		p.enqueueForOCRIfNeeded(doc, kind)
		p.logEvent("info", "ingest_gated", "doc_id", docID, "reason", scores.GateReason)
		return Outcome{Kind: OutcomeGated, DocID: docID, Reason: scores.GateReason, CostUSD: metadata.EnrichmentCostUSD}
	}

	// 5. chunk
	chunks := p.chunk.Chunk(chunker.Doc{
		DocID:      docID,
		Text:       extracted.Text,
		Topics:     metadata.Topics,
		Title:      title,
		Scores:     scores,
		CreatedAt:  now,
		SourceKind: kind,
	})
	if err := p.docs.PutChunks(ctx, chunks); err != nil {
		return Outcome{Kind: OutcomeFailed, Reason: err.Error()}
	}

	// 6. embed
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embed.Embed(ctx, texts, embedding.KindDocument)
	if err != nil {
		p.logEvent("error", "ingest_embed_failed", "doc_id", docID, "error", err.Error())
		return Outcome{Kind: OutcomeFailed, DocID: docID, Reason: err.Error()}
	}

	// 7. index
	views := corpus.Route(scores, false)
	if err := p.indexChunks(ctx, chunks, vectors, views, docID); err != nil {
		p.rollbackIndex(ctx, views, docID)
		p.logEvent("error", "ingest_index_failed", "doc_id", docID, "error", err.Error())
		return Outcome{Kind: OutcomeFailed, DocID: docID, Reason: err.Error()}
	}

	// 8. low-OCR queue
	p.enqueueForOCRIfNeeded(doc, kind)

	// 9. metrics
	p.counter("ingest_indexed_total")
	p.monitor.Histogram("ingest_enrichment_cost_usd", metadata.EnrichmentCostUSD)
	p.logEvent("info", "ingest_indexed", "doc_id", docID, "chunks", len(chunks))

	return Outcome{Kind: OutcomeIndexed, DocID: docID, NumChunks: len(chunks), CostUSD: metadata.EnrichmentCostUSD}
}

// indexChunks adds every chunk's embedding and text to C6 VectorIndex
// and C7 KeywordIndex across every routed view, stopping at the first
// failure so the caller can roll back whatever already landed.
func (p *Pipeline) indexChunks(ctx context.Context, chunks []model.Chunk, vectors [][]float32, views []model.CorpusView, docID string) error {
	for i, c := range chunks {
		for _, view := range views {
			if err := p.vec.Add(ctx, view, c.ChunkID, docID, vectors[i]); err != nil {
				return err
			}
			if err := p.kw.Add(ctx, view, c.ChunkID, docID, firstParentTitle(c), c.Text); err != nil {
				return err
			}
		}
	}
	return nil
}

// rollbackIndex restores C6/C7 to their pre-ingest state after a
// partial index write (§5 "Add/delete ... are transactional across
// C6+C7"; §7 "Consistency — partial index write"). DeleteDocument is a
// no-op for a view that never received any rows for docID, so it's
// safe to call it for every routed view rather than tracking exactly
// how far indexChunks got before failing.
func (p *Pipeline) rollbackIndex(ctx context.Context, views []model.CorpusView, docID string) {
	for _, view := range views {
		if err := p.vec.DeleteDocument(ctx, view, docID); err != nil {
			p.logEvent("error", "ingest_rollback_vec_failed", "doc_id", docID, "view", string(view), "error", err.Error())
		}
		if err := p.kw.DeleteDocument(ctx, view, docID); err != nil {
			p.logEvent("error", "ingest_rollback_kw_failed", "doc_id", docID, "view", string(view), "error", err.Error())
		}
	}
}

func (p *Pipeline) enqueueForOCRIfNeeded(doc model.Document, kind model.SourceKind) {
	if doc.OCRConfidence == nil || !ocrqueue.ShouldReocr(*doc.OCRConfidence, kind) {
		return
	}
	if p.ocrQueue == nil {
		return
	}
	if err := p.ocrQueue.Enqueue(doc.DocID, doc.Provenance.OriginalFilename, kind, *doc.OCRConfidence); err != nil {
		p.logEvent("error", "ocr_enqueue_failed", "doc_id", doc.DocID, "error", err.Error())
	}
}

func (p *Pipeline) counter(name string) {
	if p.monitor != nil {
		p.monitor.Counter(name, 1)
	}
}

func (p *Pipeline) logEvent(level, event string, fields ...any) {
	if p.monitor == nil {
		return
	}
	lvl := slog.LevelInfo
	if level == "error" {
		lvl = slog.LevelError
	}
	p.monitor.LogEvent(lvl, event, fields...)
}

func firstParentTitle(c model.Chunk) string {
	if len(c.ParentTitles) == 0 {
		return ""
	}
	return c.ParentTitles[len(c.ParentTitles)-1]
}

func gateKindFor(kind model.SourceKind) string {
	switch kind {
	case model.SourcePDF:
		return "pdf.report"
	case model.SourceEmail:
		return "email.thread"
	case model.SourceChat:
		return "chat.daily"
	case model.SourceHTML:
		return "web.article"
	case model.SourceText, model.SourceMarkdown:
		return "text"
	default:
		return "generic"
	}
}

// newDocID derives a stable opaque id from the raw content alone ("doc_"
// plus the first 16 hex characters of dedup.ContentHash) so repeated
// test runs and real ingests alike get deterministic ids; prov does not
// affect the id.
func newDocID(prov model.Provenance, data []byte) string {
	return fmt.Sprintf("doc_%s", dedup.ContentHash(string(data))[:16])
}
