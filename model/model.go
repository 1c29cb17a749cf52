// Package model holds the shared data types that flow between the
// ingestion and query pipelines: documents, chunks, scores and the
// corpus views that route them.
package model

import "time"

// SourceKind enumerates the document formats the core understands.
// DocumentSource implementations declare which kinds they produce.
type SourceKind string

const (
	SourceText     SourceKind = "text"
	SourceMarkdown SourceKind = "markdown"
	SourcePDF      SourceKind = "pdf"
	SourceOffice   SourceKind = "office"
	SourceEmail    SourceKind = "email"
	SourceChat     SourceKind = "chat"
	SourceImage    SourceKind = "image"
	SourceHTML     SourceKind = "html"
	SourceCode     SourceKind = "code"
	SourceOther    SourceKind = "other"
)

// Provenance captures a document's immutable origin metadata.
type Provenance struct {
	OriginalFilename string   `json:"original_filename"`
	MailboxKey       string   `json:"mailbox_key,omitempty"`
	ThreadKey        string   `json:"thread_key,omitempty"`
	ByteRangeStart   int64    `json:"byte_range_start,omitempty"`
	ByteRangeEnd     int64    `json:"byte_range_end,omitempty"`
	MessageID        string   `json:"message_id,omitempty"`
	InReplyTo        string   `json:"in_reply_to,omitempty"`
	References       []string `json:"references,omitempty"`
	Attachments      []string `json:"attachments,omitempty"`
}

// Entities holds the structured entity extraction attached to a document.
type Entities struct {
	Dates   []string `json:"dates,omitempty"`
	Numbers []string `json:"numbers,omitempty"`
}

// EnrichedMetadata is the structured metadata produced by the
// EnrichmentService (C8), constrained by the Vocabulary (C1).
type EnrichedMetadata struct {
	Topics          []string `json:"topics"`
	Projects        []string `json:"projects"`
	Places          []string `json:"places"`
	People          []string `json:"people"`
	Organizations   []string `json:"organizations"`
	Technologies    []string `json:"technologies"`
	Entities        Entities `json:"entities"`
	Summary         string   `json:"summary"`
	SuggestedTags   []string `json:"suggested_tags"`
	EnrichmentVersion string `json:"enrichment_version"`
	EnrichmentCostUSD float64 `json:"enrichment_cost_usd"`
}

// Scores is the set of index-worthiness scores attached to a document.
type Scores struct {
	Quality       float64 `json:"quality_score"`
	Novelty       float64 `json:"novelty_score"`
	Actionability float64 `json:"actionability_score"`
	Signalness    float64 `json:"signalness"`
	DoIndex       bool    `json:"do_index"`
	GateReason    string  `json:"gate_reason,omitempty"`
}

// Document is a logical unit created from a single ingested source.
// Immutable once indexed; a re-ingest creates a new DocID.
type Document struct {
	DocID         string     `json:"doc_id"`
	SourceKind    SourceKind `json:"source_kind"`
	Title         string     `json:"title"`
	IngestedAt    time.Time  `json:"ingested_at"`
	CreatedAt     time.Time  `json:"created_at"`
	ContentHash   string     `json:"content_hash"`
	ByteSize      int64      `json:"byte_size"`
	OCRConfidence *float64   `json:"ocr_confidence,omitempty"`
	Provenance    Provenance `json:"provenance"`
	Metadata      EnrichedMetadata `json:"metadata"`
	Scores        Scores     `json:"scores"`
	IsDuplicate   bool       `json:"is_duplicate"`
}

// ChunkKind enumerates the retrieval-unit structural types.
type ChunkKind string

const (
	ChunkParagraph ChunkKind = "paragraph"
	ChunkHeading   ChunkKind = "heading"
	ChunkList      ChunkKind = "list"
	ChunkTable     ChunkKind = "table"
	ChunkCode      ChunkKind = "code"
	ChunkOther     ChunkKind = "other"
)

// Chunk is a retrieval unit produced by the Chunker (C9).
type Chunk struct {
	ChunkID       string    `json:"chunk_id"`
	DocID         string    `json:"doc_id"`
	Text          string    `json:"text"`
	TokenEstimate int       `json:"token_estimate"`
	Kind          ChunkKind `json:"kind"`
	ParentTitles  []string  `json:"parent_titles"`
	Position      int       `json:"position"`

	// Copied document metadata, denormalized for filterable retrieval.
	Topics     []string   `json:"topics"`
	Title      string     `json:"title"`
	Scores     Scores     `json:"scores"`
	CreatedAt  time.Time  `json:"created_at"`
	SourceKind SourceKind `json:"source_kind"`
}

// CorpusView distinguishes the canonical (indexed, high-signal) view
// from the full (audit) view of the corpus.
type CorpusView string

const (
	ViewCanonical CorpusView = "CANONICAL"
	ViewFull      CorpusView = "FULL"
)

// CollectionName returns the deterministic backing-store name for a view.
func (v CorpusView) CollectionName() string {
	switch v {
	case ViewCanonical:
		return "documents_canonical"
	default:
		return "documents_full"
	}
}

// ProviderSpec describes one LLM provider/model combination available
// to the LLMDispatcher, in preference order (cheap to expensive).
type ProviderSpec struct {
	Provider              string  `json:"provider"`
	ModelID               string  `json:"model_id"`
	USDPer1kPrompt        float64 `json:"usd_per_1k_prompt"`
	USDPer1kCompletion    float64 `json:"usd_per_1k_completion"`
	ContextWindow         int     `json:"context_window"`
	SupportsStructured    bool    `json:"structured_output"`
	SupportsVision        bool    `json:"vision"`
	BaseURL               string  `json:"base_url"`
	APIKey                string  `json:"-"`
}

// CostRecord is one append-only entry in the CostLedger.
type CostRecord struct {
	Timestamp        time.Time `json:"ts"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	USD              float64   `json:"usd"`
	Op               string    `json:"op"`
	DocID            string    `json:"doc_id,omitempty"`
}

// GoldQuery is a single evaluation record used by retrieval-quality tests.
type GoldQuery struct {
	QueryText      string   `json:"query_text"`
	ExpectedDocIDs []string `json:"expected_doc_ids"`
	Notes          string   `json:"notes"`
}

// ScoredChunk pairs a Chunk with a retrieval or rerank score in [0,1].
type ScoredChunk struct {
	Chunk          Chunk   `json:"chunk"`
	FusedScore     float64 `json:"fused_score"`
	BM25Score      float64 `json:"bm25_score,omitempty"`
	DenseScore     float64 `json:"dense_score,omitempty"`
	RerankScore    float64 `json:"rerank_score,omitempty"`
	Embedding      []float32 `json:"-"`
}
