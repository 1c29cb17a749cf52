package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kesslerio/ragcore/model"
)

// PDFExtractor handles born-digital PDFs via github.com/ledongthuc/pdf,
// the same library parser/pdf.go uses. Where the teacher reconstructs a
// Section tree with per-page heading/running-header detection and
// extracts embedded images for a separate vision pipeline, this
// extractor only needs flat UTF-8 text with page boundaries preserved as
// blank-line-separated blocks (structural detail belongs to the
// Chunker, C9, downstream) plus a confidence signal so pages that yield
// no extractable text can be routed to the OCR queue.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

func (e *PDFExtractor) Kind() model.SourceKind { return model.SourcePDF }

func (e *PDFExtractor) Detect(hint Hint, data []byte) bool {
	if strings.HasSuffix(strings.ToLower(hint.OriginalFilename), ".pdf") {
		return true
	}
	if hint.MIMEType == "application/pdf" {
		return true
	}
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}

func (e *PDFExtractor) Extract(_ context.Context, data []byte, hint Hint) (Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("opening PDF: %w", err)
	}

	total := reader.NumPage()
	var b strings.Builder
	emptyPages := 0
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			emptyPages++
			continue
		}
		b.WriteString(strings.TrimSpace(text))
		b.WriteString("\n\n")
	}

	if total == 0 {
		return Result{}, fmt.Errorf("PDF has no pages")
	}

	// Confidence proxy: the fraction of pages that yielded extractable
	// text. Pages with no text are typically scanned images, so a PDF
	// with many empty pages is a strong OCR-queue candidate.
	confidence := 1 - float64(emptyPages)/float64(total)

	return Result{
		Text: b.String(),
		Provenance: model.Provenance{
			OriginalFilename: hint.OriginalFilename,
		},
		OCRConfidence: &confidence,
	}, nil
}
