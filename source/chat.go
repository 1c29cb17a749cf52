package source

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/kesslerio/ragcore/model"
)

// ChatExtractor handles two chat-shaped formats under one SourceKind:
// LLM conversation transcripts (turn-delimited "User:"/"Assistant:"
// blocks) and WhatsApp daily-bundle exports ("[DD/MM/YY, HH:MM:SS]
// Name: message" lines). Neither format appears in the teacher, which
// has no chat ingestion; this is new code grounded on the turn-detection
// idea in reasoning/reasoning.go's multi-round message handling
// (alternating role segments), generalized from in-memory Answer rounds
// to a text-parsing problem.
type ChatExtractor struct{}

func NewChatExtractor() *ChatExtractor { return &ChatExtractor{} }

func (e *ChatExtractor) Kind() model.SourceKind { return model.SourceChat }

var whatsappLine = regexp.MustCompile(`^\[?\d{1,2}/\d{1,2}/\d{2,4},?\s+\d{1,2}:\d{2}(:\d{2})?\]?\s*-?\s*[^:]+:`)

var turnLine = regexp.MustCompile(`(?i)^(user|assistant|system|human|ai)\s*:`)

func (e *ChatExtractor) Detect(hint Hint, data []byte) bool {
	name := strings.ToLower(hint.OriginalFilename)
	if strings.Contains(name, "whatsapp") || strings.HasSuffix(name, ".chat") {
		return true
	}
	lines := strings.SplitN(string(data), "\n", 20)
	hits := 0
	for _, l := range lines {
		if whatsappLine.MatchString(l) || turnLine.MatchString(strings.TrimSpace(l)) {
			hits++
		}
	}
	return hits >= 2
}

func (e *ChatExtractor) Extract(_ context.Context, data []byte, hint Hint) (Result, error) {
	lines := strings.Split(string(data), "\n")

	isWhatsApp := false
	for _, l := range lines {
		if whatsappLine.MatchString(l) {
			isWhatsApp = true
			break
		}
	}

	var b strings.Builder
	if isWhatsApp {
		normalizeWhatsApp(lines, &b)
	} else {
		normalizeTurns(lines, &b)
	}

	return Result{
		Text:       b.String(),
		Provenance: model.Provenance{OriginalFilename: hint.OriginalFilename},
	}, nil
}

// normalizeWhatsApp rewrites each "[DD/MM/YY, HH:MM] Name: text" line
// with a normalized ISO-8601 timestamp prefix, stitching multi-line
// messages back onto the line that started them.
func normalizeWhatsApp(lines []string, b *strings.Builder) {
	layouts := []string{"2/1/06, 15:04", "2/1/2006, 15:04", "1/2/06, 3:04 PM"}
	for _, l := range lines {
		if !whatsappLine.MatchString(l) {
			if strings.TrimSpace(l) != "" {
				b.WriteString("  " + l + "\n")
			}
			continue
		}
		end := strings.IndexByte(l, ']')
		if end < 0 {
			b.WriteString(l + "\n")
			continue
		}
		tsRaw := strings.Trim(l[:end], "[")
		rest := strings.TrimPrefix(l[end+1:], " -")
		rest = strings.TrimSpace(rest)

		ts := tsRaw
		for _, layout := range layouts {
			if t, err := time.Parse(layout, tsRaw); err == nil {
				ts = t.Format(time.RFC3339)
				break
			}
		}
		b.WriteString(ts + " " + rest + "\n")
	}
}

// normalizeTurns preserves role-labeled turns as-is, collapsing blank
// runs so turn boundaries remain visually distinct for the Chunker.
func normalizeTurns(lines []string, b *strings.Builder) {
	for _, l := range lines {
		if turnLine.MatchString(strings.TrimSpace(l)) {
			b.WriteString("\n" + strings.TrimSpace(l) + "\n")
			continue
		}
		if strings.TrimSpace(l) == "" {
			continue
		}
		b.WriteString(l + "\n")
	}
}
