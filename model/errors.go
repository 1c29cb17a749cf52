package model

import "errors"

// Error taxonomy per the error-handling design: kinds, not types. Each
// sentinel is surfaced to callers as the "kind" named in parentheses.
// Defined here (rather than in the root package) so every component
// package can wrap a shared sentinel without importing the root package.
var (
	// ErrDocumentNotFound (validation) is returned when a doc_id is unknown.
	ErrDocumentNotFound = errors.New("ragcore: document not found")

	// ErrUnsupportedFormat (validation) is returned for unrecognized formats.
	ErrUnsupportedFormat = errors.New("ragcore: unsupported document format")

	// ErrParseFailed (parse) is returned when DocumentSource extraction fails.
	ErrParseFailed = errors.New("ragcore: parse_failed")

	// ErrEmbeddingFailed (provider) is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("ragcore: embedding generation failed")

	// ErrAllProvidersFailed (provider) is returned when every LLM provider in
	// the dispatcher's fallback chain has been exhausted.
	ErrAllProvidersFailed = errors.New("ragcore: all_providers_failed")

	// ErrBudgetExceeded (budget) is returned when the session/day budget is spent.
	ErrBudgetExceeded = errors.New("ragcore: budget_exceeded")

	// ErrSchemaValidation (schema) is returned when structured-output
	// validation fails after the single repair attempt.
	ErrSchemaValidation = errors.New("ragcore: schema validation failed")

	// ErrBusy (capacity) is returned when the ingest worker pool is saturated.
	ErrBusy = errors.New("ragcore: busy")

	// ErrEmptyCorpus (validation) is returned when a query runs with zero chunks indexed.
	ErrEmptyCorpus = errors.New("ragcore: empty_corpus")

	// ErrInsufficientEvidence is surfaced (not treated as a hard error by
	// callers) when the ConfidenceGate recommends a refusal.
	ErrInsufficientEvidence = errors.New("ragcore: insufficient_evidence")

	// ErrInvalidConfig (fatal) is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("ragcore: invalid configuration")

	// ErrVocabularyLoad (fatal) is returned when a controlled vocabulary
	// file fails to parse at startup.
	ErrVocabularyLoad = errors.New("ragcore: vocabulary load failed")

	// ErrDimensionMismatch (fatal) is returned when an embedding's
	// dimensionality does not match the index's fixed dimension.
	ErrDimensionMismatch = errors.New("ragcore: embedding dimension mismatch")
)
