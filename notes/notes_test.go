package notes

import (
	"reflect"
	"testing"
	"time"

	"github.com/kesslerio/ragcore/model"
)

func sampleDocument() model.Document {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ingested := created.Add(2 * time.Minute)
	return model.Document{
		DocID:       "doc_abc123",
		SourceKind:  model.SourcePDF,
		Title:       "Q1 Maintenance Report",
		IngestedAt:  ingested,
		CreatedAt:   created,
		ContentHash: "deadbeefcafebabe",
		Provenance: model.Provenance{
			OriginalFilename: "q1-maintenance.pdf",
		},
		Metadata: model.EnrichedMetadata{
			Topics:            []string{"engineering/maintenance", "operations/safety"},
			Organizations:     []string{"Acme Corp"},
			Entities:          model.Entities{Dates: []string{"2026-01-15"}, Numbers: []string{"5 years"}},
			EnrichmentVersion: "v1",
			EnrichmentCostUSD: 0.0042,
		},
		Scores: model.Scores{
			Quality:       0.82,
			Novelty:       0.61,
			Actionability: 0.73,
			Signalness:    0.9,
			DoIndex:       true,
		},
	}
}

func TestRenderParseRoundTripsFrontMatter(t *testing.T) {
	doc := sampleDocument()
	note := FromDocument(doc, "## Summary\n\nInspect quarterly.\n")

	rendered, err := Render(note)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	parsed, err := Parse(rendered)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !reflect.DeepEqual(parsed.FrontMatter, note.FrontMatter) {
		t.Errorf("front matter did not round-trip:\n got  %+v\n want %+v", parsed.FrontMatter, note.FrontMatter)
	}
	if parsed.Body != note.Body {
		t.Errorf("Body = %q, want %q", parsed.Body, note.Body)
	}
}

func TestFromDocumentMapsScoresAndEntities(t *testing.T) {
	doc := sampleDocument()
	note := FromDocument(doc, "body")

	fm := note.FrontMatter
	if fm.ID != doc.DocID {
		t.Errorf("ID = %q, want %q", fm.ID, doc.DocID)
	}
	if fm.QualityScore != doc.Scores.Quality {
		t.Errorf("QualityScore = %v, want %v", fm.QualityScore, doc.Scores.Quality)
	}
	if fm.DoIndex != doc.Scores.DoIndex {
		t.Errorf("DoIndex = %v, want %v", fm.DoIndex, doc.Scores.DoIndex)
	}
	if len(fm.Entities.Orgs) != 1 || fm.Entities.Orgs[0] != "Acme Corp" {
		t.Errorf("Entities.Orgs = %v, want [Acme Corp]", fm.Entities.Orgs)
	}
	if fm.Provenance.OriginalFilename != doc.Provenance.OriginalFilename {
		t.Errorf("Provenance.OriginalFilename = %q, want %q", fm.Provenance.OriginalFilename, doc.Provenance.OriginalFilename)
	}
}

func TestParseMissingDelimitersErrors(t *testing.T) {
	if _, err := Parse([]byte("no front matter here")); err == nil {
		t.Error("Parse() error = nil, want error for missing opening delimiter")
	}
	if _, err := Parse([]byte("---\nid: x\n")); err == nil {
		t.Error("Parse() error = nil, want error for missing closing delimiter")
	}
}

func TestStripIgnoreRegionsRemovesMarkedBlocks(t *testing.T) {
	body := "keep this\n<!-- RAG:IGNORE-START -->\nscratch notes, don't index\n<!-- RAG:IGNORE-END -->\nkeep this too"
	got := StripIgnoreRegions(body)
	if got != "keep this\n\nkeep this too" {
		t.Errorf("StripIgnoreRegions() = %q", got)
	}
}

func TestStripIgnoreRegionsNoMarkersIsNoop(t *testing.T) {
	body := "plain body with no ignore markers"
	if got := StripIgnoreRegions(body); got != body {
		t.Errorf("StripIgnoreRegions() = %q, want unchanged", got)
	}
}
