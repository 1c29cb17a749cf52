// Package notes implements the knowledge-note document format (§6):
// YAML front-matter followed by a Markdown body, normative for
// interop with external note-taking tools. Rendering the body from a
// document's chunks is an external collaborator's concern; this
// package only codecs the front-matter <-> model.Document mapping and
// strips <!-- RAG:IGNORE-* --> regions from re-indexing, following
// vocabulary.go's use of gopkg.in/yaml.v3 for every other controlled
// YAML surface in this system.
package notes

import (
	"bytes"
	"fmt"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kesslerio/ragcore/model"
)

const delimiter = "---"

// Entities is the front-matter's flattened view of a document's
// attested entities: organizations alongside the dates/numbers
// model.Entities already carries.
type Entities struct {
	Orgs    []string `yaml:"orgs"`
	Dates   []string `yaml:"dates"`
	Numbers []string `yaml:"numbers"`
}

// Provenance is the front-matter's required provenance block.
type Provenance struct {
	SHA256           string `yaml:"sha256"`
	SHA256Full       string `yaml:"sha256_full"`
	OriginalFilename string `yaml:"original_filename"`
}

// FrontMatter is the required top-level metadata for a knowledge note,
// per §6's normative field list.
type FrontMatter struct {
	ID                 string     `yaml:"id"`
	Source             string     `yaml:"source"`
	CreatedAt          time.Time  `yaml:"created_at"`
	IngestedAt         time.Time  `yaml:"ingested_at"`
	DocType            string     `yaml:"doc_type"`
	Title              string     `yaml:"title"`
	Topics             []string   `yaml:"topics"`
	Entities           Entities   `yaml:"entities"`
	QualityScore       float64    `yaml:"quality_score"`
	NoveltyScore       float64    `yaml:"novelty_score"`
	ActionabilityScore float64    `yaml:"actionability_score"`
	Signalness         float64    `yaml:"signalness"`
	DoIndex            bool       `yaml:"do_index"`
	Provenance         Provenance `yaml:"provenance"`
	EnrichmentVersion  string     `yaml:"enrichment_version"`
	EnrichmentCostUSD  float64    `yaml:"enrichment_cost_usd"`
}

// Note is a full knowledge note: front-matter plus Markdown body.
type Note struct {
	FrontMatter FrontMatter
	Body        string
}

// FromDocument maps a model.Document onto a note's front-matter. body
// is the caller-rendered Markdown content (out of scope for this
// package, per §6); Entities.Orgs is populated from the document's
// enriched Organizations list, since model.Entities itself only
// carries dates/numbers.
func FromDocument(d model.Document, body string) Note {
	return Note{
		FrontMatter: FrontMatter{
			ID:         d.DocID,
			Source:     string(d.SourceKind),
			CreatedAt:  d.CreatedAt,
			IngestedAt: d.IngestedAt,
			DocType:    string(d.SourceKind),
			Title:      d.Title,
			Topics:     d.Metadata.Topics,
			Entities: Entities{
				Orgs:    d.Metadata.Organizations,
				Dates:   d.Metadata.Entities.Dates,
				Numbers: d.Metadata.Entities.Numbers,
			},
			QualityScore:       d.Scores.Quality,
			NoveltyScore:       d.Scores.Novelty,
			ActionabilityScore: d.Scores.Actionability,
			Signalness:         d.Scores.Signalness,
			DoIndex:            d.Scores.DoIndex,
			Provenance: Provenance{
				SHA256:           d.ContentHash,
				SHA256Full:       d.ContentHash,
				OriginalFilename: d.Provenance.OriginalFilename,
			},
			EnrichmentVersion: d.Metadata.EnrichmentVersion,
			EnrichmentCostUSD: d.Metadata.EnrichmentCostUSD,
		},
		Body: body,
	}
}

// Render serializes n as `---\n<yaml>---\n\n<body>`.
func Render(n Note) ([]byte, error) {
	fm, err := yaml.Marshal(n.FrontMatter)
	if err != nil {
		return nil, fmt.Errorf("notes: marshal front matter: %w", err)
	}
	var b bytes.Buffer
	b.WriteString(delimiter + "\n")
	b.Write(fm)
	b.WriteString(delimiter + "\n\n")
	b.WriteString(n.Body)
	return b.Bytes(), nil
}

// Parse splits raw note bytes into front-matter and body and
// unmarshals the front-matter block.
func Parse(data []byte) (Note, error) {
	text := string(data)
	if !bytesHasPrefix(text, delimiter) {
		return Note{}, fmt.Errorf("notes: missing opening %q delimiter", delimiter)
	}
	rest := text[len(delimiter):]
	end := indexDelimiter(rest)
	if end < 0 {
		return Note{}, fmt.Errorf("notes: missing closing %q delimiter", delimiter)
	}
	fmBlock := rest[:end]
	body := rest[end+len(delimiter):]
	body = trimLeadingNewlines(body)

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(fmBlock), &fm); err != nil {
		return Note{}, fmt.Errorf("notes: unmarshal front matter: %w", err)
	}
	return Note{FrontMatter: fm, Body: body}, nil
}

func bytesHasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func indexDelimiter(s string) int {
	for i := 0; i+len(delimiter) <= len(s); i++ {
		if s[i:i+len(delimiter)] == delimiter {
			return i
		}
	}
	return -1
}

func trimLeadingNewlines(s string) string {
	i := 0
	for i < len(s) && (s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return s[i:]
}

var ignoreRegionPattern = regexp.MustCompile(`(?s)<!--\s*RAG:IGNORE-START\s*-->.*?<!--\s*RAG:IGNORE-END\s*-->`)

// StripIgnoreRegions removes every <!-- RAG:IGNORE-START --> ...
// <!-- RAG:IGNORE-END --> region from body, per §6's note format:
// these regions are excluded from re-indexing.
func StripIgnoreRegions(body string) string {
	return ignoreRegionPattern.ReplaceAllString(body, "")
}
