package ragcore

import (
	"os"
	"path/filepath"
)

// Config holds all configuration for the RAG core engine. Loading it from
// a file or environment variables is an external collaborator's concern
// (§6); this struct only declares the recognized options and their
// defaults.
type Config struct {
	// DBPath is the full path to the SQLite database file backing the
	// VectorIndex, KeywordIndex and document-store tables.
	// If empty, defaults to ~/.ragcore/<DBName>.db, or to <DBName>.db in
	// the working directory when StorageDir is "local" or "cwd".
	DBPath     string `json:"db_path" yaml:"db_path"`
	DBName     string `json:"db_name" yaml:"db_name"`
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// VocabularyDir points at the controlled-vocabulary YAML files
	// (topics.yaml, projects.yaml, places.yaml, people.yaml).
	VocabularyDir string `json:"vocabulary_dir" yaml:"vocabulary_dir"`

	// ModelCacheDir is where the reranker (and any local embedding model)
	// persists downloaded weights across restarts (§6, §9 known defect d).
	ModelCacheDir string `json:"model_cache_dir" yaml:"model_cache_dir"`

	// OCRQueuePath is the JSON file backing the persistent OCR re-queue.
	OCRQueuePath string `json:"ocr_queue_path" yaml:"ocr_queue_path"`

	// CostLedgerPath is the JSONL file the CostLedger snapshots to.
	CostLedgerPath string `json:"cost_ledger_path" yaml:"cost_ledger_path"`

	// LLM provider pools, in fallback preference order (cheap to expensive).
	ChatProviders      []LLMConfig `json:"chat_providers" yaml:"chat_providers"`
	EmbeddingProviders []LLMConfig `json:"embedding_providers" yaml:"embedding_providers"`

	// Retrieval fusion weights (§4.10).
	WeightBM25  float64 `json:"weight_bm25" yaml:"weight_bm25"`
	WeightDense float64 `json:"weight_dense" yaml:"weight_dense"`
	MMRLambda   float64 `json:"mmr_lambda" yaml:"mmr_lambda"`
	TopKDefault int     `json:"top_k_default" yaml:"top_k_default"`

	// Chunking (§4.6).
	ChunkTargetTokens int `json:"chunk_target_tokens" yaml:"chunk_target_tokens"`
	ChunkSoftCap      int `json:"chunk_soft_cap" yaml:"chunk_soft_cap"`
	ChunkOverlapPct   float64 `json:"chunk_overlap_pct" yaml:"chunk_overlap_pct"`

	// Reranker (§4.11).
	EnableRerank      bool   `json:"enable_rerank" yaml:"enable_rerank"`
	RerankCacheSize   int    `json:"rerank_cache_size" yaml:"rerank_cache_size"`
	RerankCacheTTLMin int    `json:"rerank_cache_ttl_minutes" yaml:"rerank_cache_ttl_minutes"`
	RerankStage1K     int    `json:"rerank_stage1_k" yaml:"rerank_stage1_k"`
	RerankStage2K     int    `json:"rerank_stage2_k" yaml:"rerank_stage2_k"`
	// RedisAddr, if set, backs the reranker's result cache with Redis
	// instead of the default in-process LRU+TTL cache, so repeated
	// queries hit a shared cache across restarts and instances.
	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`

	// HyDE (§4.12).
	EnableHyDE     bool `json:"enable_hyde" yaml:"enable_hyde"`
	HyDEVariants   int  `json:"hyde_variants" yaml:"hyde_variants"`

	// ConfidenceGate thresholds (§4.13).
	ConfidenceThetaOverall  float64 `json:"confidence_theta_overall" yaml:"confidence_theta_overall"`
	ConfidenceThetaRelevance float64 `json:"confidence_theta_relevance" yaml:"confidence_theta_relevance"`

	// Ingestion concurrency and cost control (§5, §6).
	IngestConcurrency int     `json:"ingest_concurrency" yaml:"ingest_concurrency"`
	DailyBudgetUSD    float64 `json:"daily_budget_usd" yaml:"daily_budget_usd"`

	// Embedding dimensionality; fixed for the lifetime of a corpus.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`
}

// LLMConfig configures a single LLM provider/model endpoint used to build
// a model.ProviderSpec for the dispatcher.
type LLMConfig struct {
	Provider           string  `json:"provider" yaml:"provider"` // ollama, lmstudio, openrouter, openai, groq, xai, gemini, custom
	Model              string  `json:"model" yaml:"model"`
	BaseURL            string  `json:"base_url" yaml:"base_url"`
	APIKey             string  `json:"api_key" yaml:"api_key"`
	USDPer1kPrompt     float64 `json:"usd_per_1k_prompt" yaml:"usd_per_1k_prompt"`
	USDPer1kCompletion float64 `json:"usd_per_1k_completion" yaml:"usd_per_1k_completion"`
	ContextWindow      int     `json:"context_window" yaml:"context_window"`
	StructuredOutput   bool    `json:"structured_output" yaml:"structured_output"`
	Vision             bool    `json:"vision" yaml:"vision"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
func DefaultConfig() Config {
	return Config{
		DBName:            "ragcore",
		StorageDir:        "home",
		VocabularyDir:     "vocabulary",
		ModelCacheDir:     "models_cache",
		OCRQueuePath:      "ocr_queue.json",
		CostLedgerPath:    "cost_ledger.jsonl",
		WeightBM25:        0.3,
		WeightDense:       0.7,
		MMRLambda:         0.7,
		TopKDefault:       20,
		ChunkTargetTokens: 512,
		ChunkSoftCap:      800,
		ChunkOverlapPct:   0.12,
		EnableRerank:      true,
		RerankCacheSize:   1000,
		RerankCacheTTLMin: 10,
		RerankStage1K:     50,
		RerankStage2K:     10,
		EnableHyDE:        false,
		HyDEVariants:      2,
		ConfidenceThetaOverall:   0.6,
		ConfidenceThetaRelevance: 0.5,
		IngestConcurrency:        5,
		DailyBudgetUSD:           0,
		EmbeddingDim:             768,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	name := c.DBName
	if name == "" {
		name = "ragcore"
	}
	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db"
		}
		return filepath.Join(home, ".ragcore", name+".db")
	}
}
