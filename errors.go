package ragcore

import "github.com/kesslerio/ragcore/model"

// Error taxonomy per the error-handling design: kinds, not types. The
// sentinels themselves live in package model so every component package
// can wrap them without importing this root package; these are aliases
// so callers of the top-level engine can keep writing errors.Is(err,
// ragcore.ErrDocumentNotFound) etc.
var (
	ErrDocumentNotFound     = model.ErrDocumentNotFound
	ErrUnsupportedFormat    = model.ErrUnsupportedFormat
	ErrParseFailed          = model.ErrParseFailed
	ErrEmbeddingFailed      = model.ErrEmbeddingFailed
	ErrAllProvidersFailed   = model.ErrAllProvidersFailed
	ErrBudgetExceeded       = model.ErrBudgetExceeded
	ErrSchemaValidation     = model.ErrSchemaValidation
	ErrBusy                 = model.ErrBusy
	ErrEmptyCorpus          = model.ErrEmptyCorpus
	ErrInsufficientEvidence = model.ErrInsufficientEvidence
	ErrInvalidConfig        = model.ErrInvalidConfig
	ErrVocabularyLoad       = model.ErrVocabularyLoad
	ErrDimensionMismatch    = model.ErrDimensionMismatch
)
