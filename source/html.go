package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kesslerio/ragcore/model"
)

// HTMLExtractor strips an HTML document down to readable article text,
// dropping nav/script/style/aside noise. No repo under the teacher's own
// domain has HTML support, but other_examples' beeper/ai-bridge imports
// PuerkitoBio/goquery for DOM-walking HTML extraction, which this
// extractor adopts directly rather than hand-rolling an x/net/html
// tree-walk.
type HTMLExtractor struct{}

func NewHTMLExtractor() *HTMLExtractor { return &HTMLExtractor{} }

func (e *HTMLExtractor) Kind() model.SourceKind { return model.SourceHTML }

func (e *HTMLExtractor) Detect(hint Hint, data []byte) bool {
	name := strings.ToLower(hint.OriginalFilename)
	if strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm") {
		return true
	}
	if hint.MIMEType == "text/html" {
		return true
	}
	trimmed := bytes.TrimSpace(data)
	return bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<!doctype html")) ||
		bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<html"))
}

var noiseSelectors = []string{"script", "style", "nav", "header", "footer", "aside", "noscript", "form"}

func (e *HTMLExtractor) Extract(_ context.Context, data []byte, hint Hint) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("parsing HTML: %w", err)
	}

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	article := doc.Find("article")
	if article.Length() == 0 {
		article = doc.Find("main")
	}
	if article.Length() == 0 {
		article = doc.Find("body")
	}

	var b strings.Builder
	if title != "" {
		b.WriteString(title + "\n\n")
	}
	article.Find("p, h1, h2, h3, h4, li").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			b.WriteString(text + "\n\n")
		}
	})

	text := strings.TrimSpace(b.String())
	if text == "" {
		return Result{}, fmt.Errorf("no readable text found in HTML document")
	}

	return Result{
		Text:       text,
		Provenance: model.Provenance{OriginalFilename: hint.OriginalFilename},
	}, nil
}
