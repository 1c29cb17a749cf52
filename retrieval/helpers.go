package retrieval

import "strings"

// sanitizeFTSQuery escapes FTS5 special syntax characters and builds an
// OR query from the cleaned terms, preferring an exact phrase match
// when the query has more than one word. translated carries extra terms
// from an optional query-expansion pass (HyDE's expand, or nil).
func sanitizeFTSQuery(query string, translated []string) string {
	replacer := strings.NewReplacer(
		"\"", "", "*", "", "(", "", ")", "",
		"+", "", "-", "", "^", "", ":", "",
		"?", "", "[", "", "]", "", "{", "",
		"}", "", "!", "", ".", "", ",", "",
		";", "",
	)
	cleaned := replacer.Replace(query)
	words := strings.Fields(cleaned)
	if len(words) == 0 {
		return query
	}

	var parts []string
	if len(words) > 1 {
		parts = append(parts, "\""+strings.Join(words, " ")+"\"")
	}
	for _, w := range words {
		if len(w) > 2 && !IsStopWord(w) {
			parts = append(parts, w)
		}
	}
	parts = append(parts, translated...)

	if len(parts) == 0 {
		return strings.Join(words, " OR ")
	}
	return strings.Join(parts, " OR ")
}

// ExtractSignificantTerms returns the meaningful words from text,
// lower-cased and deduplicated. Exported for C16 ConfidenceGate's
// coverage computation (content-word overlap between a query and its
// retrieved chunks), which needs the same stop-word-filtered term set
// this package already builds for FTS queries.
func ExtractSignificantTerms(text string) []string {
	replacer := strings.NewReplacer(
		"\"", "", "*", "", "(", "", ")", "",
		"+", "", "-", "", "^", "", ":", "",
		"?", "", "[", "", "]", "", "{", "",
		"}", "", "!", "", ".", "", ",", "",
		";", "",
	)
	cleaned := replacer.Replace(text)
	words := strings.Fields(cleaned)

	seen := make(map[string]bool)
	var terms []string
	for _, w := range words {
		lower := strings.ToLower(w)
		if len(lower) > 2 && !IsStopWord(lower) && !seen[lower] {
			seen[lower] = true
			terms = append(terms, lower)
		}
	}
	return terms
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "must": true,
	"shall": true, "can": true, "this": true, "that": true, "these": true,
	"those": true, "what": true, "which": true, "who": true, "whom": true,
	"where": true, "when": true, "how": true, "why": true, "not": true,
	"no": true, "nor": true, "if": true, "then": true, "than": true,
	"so": true, "as": true, "about": true, "into": true, "between": true,
}

// IsStopWord reports whether w (case-insensitive) is a stop word.
func IsStopWord(w string) bool {
	return stopWords[strings.ToLower(w)]
}
