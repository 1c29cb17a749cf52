package source

import (
	"context"
	"strings"

	"github.com/kesslerio/ragcore/model"
)

// TextExtractor handles plain text and Markdown payloads, the simplest
// case in parser/text.go generalized to operate on an in-memory buffer
// instead of a filesystem path.
type TextExtractor struct {
	kind model.SourceKind // SourceText or SourceMarkdown
}

// NewTextExtractor returns an extractor for plain text.
func NewTextExtractor() *TextExtractor { return &TextExtractor{kind: model.SourceText} }

// NewMarkdownExtractor returns an extractor for Markdown documents.
func NewMarkdownExtractor() *TextExtractor { return &TextExtractor{kind: model.SourceMarkdown} }

func (e *TextExtractor) Kind() model.SourceKind { return e.kind }

func (e *TextExtractor) Detect(hint Hint, data []byte) bool {
	name := strings.ToLower(hint.OriginalFilename)
	switch e.kind {
	case model.SourceMarkdown:
		return strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".markdown") ||
			hint.MIMEType == "text/markdown"
	default:
		return strings.HasSuffix(name, ".txt") || hint.MIMEType == "text/plain"
	}
}

func (e *TextExtractor) Extract(_ context.Context, data []byte, hint Hint) (Result, error) {
	return Result{
		Text: string(data),
		Provenance: model.Provenance{
			OriginalFilename: hint.OriginalFilename,
		},
	}, nil
}
