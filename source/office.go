package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/richardlehane/mscfb"
	"github.com/xuri/excelize/v2"

	"github.com/kesslerio/ragcore/model"
)

// XLSXExtractor handles modern spreadsheet workbooks via excelize,
// following parser/xlsx.go: every sheet becomes a markdown-style pipe
// table so the structure survives as plain text for the Chunker.
type XLSXExtractor struct{}

func NewXLSXExtractor() *XLSXExtractor { return &XLSXExtractor{} }

func (e *XLSXExtractor) Kind() model.SourceKind { return model.SourceOffice }

func (e *XLSXExtractor) Detect(hint Hint, data []byte) bool {
	name := strings.ToLower(hint.OriginalFilename)
	return strings.HasSuffix(name, ".xlsx") ||
		hint.MIMEType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExtractor) Extract(_ context.Context, data []byte, hint Hint) (Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		b.WriteString(sheet)
		b.WriteString("\n")
		for _, row := range rows {
			b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		b.WriteString("\n")
	}

	if b.Len() == 0 {
		return Result{}, fmt.Errorf("no data found in XLSX")
	}

	return Result{
		Text:       b.String(),
		Provenance: model.Provenance{OriginalFilename: hint.OriginalFilename},
	}, nil
}

// LegacyOfficeExtractor handles the pre-OOXML binary formats (.doc,
// .xls, .ppt), which are OLE Compound File Binary containers. The
// teacher's own go.mod lists richardlehane/mscfb as a dependency but
// parser/legacy.go never actually opens a CFB reader — it just
// delegates to an external LlamaParse call. This extractor wires that
// dependency for real: mscfb walks the CFB directory tree and every
// non-directory stream is scanned for printable runs as a best-effort
// plain-text recovery (no full binary-format decoder is attempted).
type LegacyOfficeExtractor struct{}

func NewLegacyOfficeExtractor() *LegacyOfficeExtractor { return &LegacyOfficeExtractor{} }

func (e *LegacyOfficeExtractor) Kind() model.SourceKind { return model.SourceOffice }

func (e *LegacyOfficeExtractor) Detect(hint Hint, data []byte) bool {
	name := strings.ToLower(hint.OriginalFilename)
	if strings.HasSuffix(name, ".doc") || strings.HasSuffix(name, ".xls") || strings.HasSuffix(name, ".ppt") {
		return true
	}
	// OLE CFB magic number.
	return len(data) >= 8 && bytes.Equal(data[:8], []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
}

func (e *LegacyOfficeExtractor) Extract(_ context.Context, data []byte, hint Hint) (Result, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("opening legacy office container: %w", err)
	}

	var b strings.Builder
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.IsDir() {
			continue
		}
		buf := make([]byte, entry.Size)
		n, _ := doc.Read(buf)
		b.WriteString(printableRuns(buf[:n]))
		b.WriteString("\n")
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return Result{}, fmt.Errorf("%w: no recoverable text in legacy office container", model.ErrParseFailed)
	}

	return Result{
		Text:       text,
		Provenance: model.Provenance{OriginalFilename: hint.OriginalFilename},
	}, nil
}

// printableRuns extracts runs of printable ASCII bytes (0x20-0x7e) at
// least 4 characters long from a raw CFB stream, a conservative
// heuristic for binary .doc/.ppt streams that interleave formatting
// structures with plain text runs. UTF-16LE text, whose zero bytes break
// every run, is not recovered.
func printableRuns(b []byte) string {
	var out strings.Builder
	var run strings.Builder
	flush := func() {
		if run.Len() >= 4 {
			out.WriteString(run.String())
			out.WriteString(" ")
		}
		run.Reset()
	}
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c >= 0x20 && c < 0x7f {
			run.WriteByte(c)
			continue
		}
		flush()
	}
	flush()
	return out.String()
}
