// Package source implements C2: the DocumentSource capability set that
// turns raw bytes into UTF-8 text plus source metadata. It generalizes
// the teacher's parser.Parser interface (parser/parser.go) — which reads
// a filesystem path per format and returns a Section tree — into a
// byte-buffer-oriented capability interface keyed by model.SourceKind,
// since the pipeline here receives raw bytes with hints rather than
// files already resolved to paths on disk. The registry-of-extractors
// pattern itself follows parser/registry.go directly.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/kesslerio/ragcore/model"
)

// Hint carries caller-supplied context that narrows kind detection (a
// declared MIME type, an original filename with extension, an explicit
// override).
type Hint struct {
	MIMEType         string
	OriginalFilename string
	ForceKind        model.SourceKind
}

// Result is what an Extractor produces from raw bytes.
type Result struct {
	Text          string
	Provenance    model.Provenance
	OCRConfidence *float64 // nil when not image/OCR-derived
}

// Extractor is the capability interface every document-source
// implementation satisfies (§4.2's {detect, extract} capability set,
// split into a predicate and an extraction method per Go idiom).
type Extractor interface {
	// Detect reports whether this extractor claims the given hint/bytes.
	Detect(hint Hint, data []byte) bool
	// Extract produces normalized text and source metadata, or an error
	// wrapping ErrParseFailed on failure.
	Extract(ctx context.Context, data []byte, hint Hint) (Result, error)
	Kind() model.SourceKind
}

// Registry dispatches extraction to the first registered Extractor that
// claims a given hint/payload, mirroring parser.Registry's format->Parser
// map but keyed by detection predicate instead of a fixed format string,
// since several kinds (chat vs. WhatsApp vs. plain text) share the same
// file extension space.
type Registry struct {
	extractors []Extractor
}

// NewRegistry returns a Registry with no extractors registered; callers
// register the kinds they support via Register.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an extractor to the registry. Extractors are tried in
// registration order, so register more specific detectors (e.g. chat
// export) before generic fallbacks (e.g. plain text).
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Detect returns the first registered extractor that claims the payload.
func (r *Registry) Detect(hint Hint, data []byte) (Extractor, bool) {
	if hint.ForceKind != "" {
		for _, e := range r.extractors {
			if e.Kind() == hint.ForceKind {
				return e, true
			}
		}
	}
	for _, e := range r.extractors {
		if e.Detect(hint, data) {
			return e, true
		}
	}
	return nil, false
}

// Extract detects and runs the matching extractor, then strips
// RAG:IGNORE regions from the result before returning it (§4.2: ignored
// regions are excluded from all downstream processing).
func (r *Registry) Extract(ctx context.Context, data []byte, hint Hint) (Result, model.SourceKind, error) {
	e, ok := r.Detect(hint, data)
	if !ok {
		return Result{}, "", fmt.Errorf("%w: no extractor claimed %q", model.ErrUnsupportedFormat, hint.OriginalFilename)
	}
	res, err := e.Extract(ctx, data, hint)
	if err != nil {
		return Result{}, e.Kind(), fmt.Errorf("%w: %v", model.ErrParseFailed, err)
	}
	res.Text = StripIgnoreRegions(res.Text)
	return res, e.Kind(), nil
}

const (
	ignoreStart = "<!-- RAG:IGNORE-START -->"
	ignoreEnd   = "<!-- RAG:IGNORE-END -->"
)

// StripIgnoreRegions removes every sentinel-delimited region from text,
// so ignored content never reaches indexing, enrichment, or chunking.
// Unterminated start markers drop everything to end of text, which is
// the conservative (over-exclude rather than leak) choice. Exported so
// the chunker (C9 step 1) can re-apply it as a defense-in-depth pass on
// text that bypassed extraction (e.g. test fixtures or future sources).
func StripIgnoreRegions(text string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, ignoreStart)
		if start < 0 {
			b.WriteString(text)
			break
		}
		b.WriteString(text[:start])
		rest := text[start+len(ignoreStart):]
		end := strings.Index(rest, ignoreEnd)
		if end < 0 {
			break
		}
		text = rest[end+len(ignoreEnd):]
	}
	return b.String()
}
