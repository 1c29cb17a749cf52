package chunker

import (
	"regexp"
	"strings"
)

// This file detects the structural and normative-language cues that
// feed quality.Input.HasStructure (§4.7) through HasStructuralSignal:
// a heading anywhere in the text, RFC-2119-style requirement keywords,
// or hierarchical legal/engineering clause numbering. Trimmed from the
// original teacher surface down to the three detectors Chunker and
// QualityScorer actually call; the rest (standards-body references,
// cross-reference extraction, glossary-style definition mining,
// free-standing table classification) had no caller anywhere in this
// module and is dropped rather than carried as unexercised API.

// headingPatterns recognizes heading styles outside of Markdown's
// "#".."######" prefix for HasStructuralSignal. They do not start
// sections: detectHeading (chunker.go) finds section boundaries itself
// and uses IsHeading only to reject an underlined line as a heading.
var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*(\d+\.)+(\d+)?\s+\S`),             // "1.2.3 Title"
	regexp.MustCompile(`^[A-Z][A-Z\s]{4,}$`),                  // "INTRODUCTION"
	regexp.MustCompile(`(?i)^(appendix|annex|schedule|exhibit)\s+[A-Z0-9]`),
	regexp.MustCompile(`(?i)^article\s+[IVXLCDM\d]+`),
}

// IsHeading reports whether line reads as a section heading under any
// of the numbered, all-caps, or appendix/article conventions above.
func IsHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	for _, re := range headingPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// requirementPattern matches RFC 2119 / ISO directive keywords. Longer
// alternatives are listed first so FindAllString prefers "SHALL NOT"
// over the "SHALL" prefix match.
var requirementPattern = regexp.MustCompile(
	`(?i)\b(SHALL\s+NOT|MUST\s+NOT|SHALL|MUST|SHOULD\s+NOT|SHOULD|REQUIRED|RECOMMENDED|MAY|OPTIONAL)\b`,
)

// Requirement is a single normative statement found in a document, with
// its keyword classified into a mandatory/recommended/optional level.
type Requirement struct {
	Text       string
	Keyword    string
	Level      string
	LineNumber int
}

// DetectRequirements scans text line by line for normative keywords,
// keeping the first keyword found on each line.
func DetectRequirements(text string) []Requirement {
	var reqs []Requirement
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		matches := requirementPattern.FindAllString(trimmed, -1)
		if len(matches) == 0 {
			continue
		}
		kw := strings.ToUpper(matches[0])
		reqs = append(reqs, Requirement{
			Text:       trimmed,
			Keyword:    kw,
			Level:      requirementLevel(kw),
			LineNumber: i,
		})
	}
	return reqs
}

func requirementLevel(keyword string) string {
	switch strings.ToUpper(strings.TrimSpace(keyword)) {
	case "SHALL", "SHALL NOT", "MUST", "MUST NOT", "REQUIRED":
		return "mandatory"
	case "SHOULD", "SHOULD NOT", "RECOMMENDED":
		return "recommended"
	case "MAY", "OPTIONAL":
		return "optional"
	default:
		return "mandatory"
	}
}

// clausePattern matches hierarchical numbered clauses ("1.1", "1.1.1",
// "12.3.4") at the start of a line, the contract/standard numbering
// style HasStructuralSignal treats as a structural cue distinct from
// Markdown/all-caps headings.
var clausePattern = regexp.MustCompile(`^(\d+(?:\.\d+)+)\s`)

// DetectClauseBoundaries returns the byte offset of every line in text
// that opens a new numbered clause.
func DetectClauseBoundaries(text string) []int {
	var boundaries []int
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		if clausePattern.MatchString(strings.TrimSpace(line)) {
			boundaries = append(boundaries, offset)
		}
		offset += len(line) + 1
	}
	return boundaries
}
