// Package vocabulary implements C1: the controlled topic/project/place/
// people vocabularies, free-tag classification against them, and
// project-watchlist matching. Loading follows the teacher's YAML-backed
// config conventions (config.go uses yaml tags throughout); classification
// generalizes the cross-document canonicalization pattern the teacher uses
// for entities in graph/entity.go and graph/builder.go (append-only
// registry keyed by normalized name) into a read-mostly, copy-on-write
// tree instead of a relational table, since vocabularies reload far more
// often than they mutate.
package vocabulary

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Kind identifies which controlled list a path belongs to.
type Kind string

const (
	KindTopic   Kind = "topic"
	KindProject Kind = "project"
	KindPlace   Kind = "place"
	KindPerson  Kind = "person"
)

// similarityThreshold is the minimum normalized-Levenshtein similarity for
// a free tag to be folded into a controlled path rather than left as a
// suggestion (§4.1).
const similarityThreshold = 0.78

// node is one entry in a kind's path forest, keyed by the full slash path.
type node struct {
	path     string
	children map[string]*node
}

// tree is one kind's forest of slash-paths, held behind an atomic pointer
// swap so readers never block on a reload (§5 "read-mostly, copy-on-write").
type tree struct {
	paths map[string]bool // exact valid paths, e.g. "technology/ai/embeddings"
}

// WatchlistEntry is one project-watchlist record used by MatchProjects.
type WatchlistEntry struct {
	ProjectID string
	Aliases   []string
	// WindowStart/WindowEnd bound the optional date window a hit must fall
	// within; zero values mean unbounded.
	WindowStart time.Time
	WindowEnd   time.Time
}

// suggestionCount tracks how often a free tag was suggested and when.
type suggestionCount struct {
	Occurrences int
	LastSeen    time.Time
}

// Vocabulary loads and enforces the controlled vocabularies.
type Vocabulary struct {
	trees atomic.Pointer[map[Kind]*tree]

	mu          sync.Mutex
	suggestions map[string]*suggestionCount // key: kind+"|"+tag
	watchlist   []WatchlistEntry
}

// New returns an empty Vocabulary; call Load to populate trees from disk.
func New() *Vocabulary {
	v := &Vocabulary{suggestions: make(map[string]*suggestionCount)}
	empty := map[Kind]*tree{
		KindTopic:   {paths: map[string]bool{}},
		KindProject: {paths: map[string]bool{}},
		KindPlace:   {paths: map[string]bool{}},
		KindPerson:  {paths: map[string]bool{}},
	}
	v.trees.Store(&empty)
	return v
}

// Load reads the four YAML list files from dir (topics.yaml, projects.yaml,
// places.yaml, people.yaml) and atomically swaps them in. Loading fails
// fast on malformed YAML (§4.1 error semantics); a missing file is treated
// as an empty list rather than an error, since not every deployment
// populates every kind.
func (v *Vocabulary) Load(dir string) error {
	next := map[Kind]*tree{}
	for kind, filename := range map[Kind]string{
		KindTopic:   "topics.yaml",
		KindProject: "projects.yaml",
		KindPlace:   "places.yaml",
		KindPerson:  "people.yaml",
	} {
		t, err := loadTree(dir + "/" + filename)
		if err != nil {
			return err
		}
		next[kind] = t
	}
	v.trees.Store(&next)
	return nil
}

func loadTree(path string) (*tree, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &tree{paths: map[string]bool{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var paths []string
	if err := yaml.Unmarshal(data, &paths); err != nil {
		return nil, err
	}
	t := &tree{paths: map[string]bool{}}
	for _, p := range paths {
		t.paths[normalizePath(p)] = true
	}
	return t, nil
}

func normalizePath(p string) string {
	return strings.Trim(strings.TrimSpace(p), "/")
}

// IsValid reports whether path is a prefix-valid path in the relevant
// tree: an exact entry, a prefix of one, or a descendant of one (§3 invariant: every
// topics[] entry is a prefix-valid path in the loaded tree).
func (v *Vocabulary) IsValid(kind Kind, path string) bool {
	path = normalizePath(path)
	if path == "" {
		return false
	}
	trees := *v.trees.Load()
	t, ok := trees[kind]
	if !ok {
		return false
	}
	if t.paths[path] {
		return true
	}
	prefix := path + "/"
	for p := range t.paths {
		if strings.HasPrefix(p, prefix) || strings.HasPrefix(prefix, p+"/") {
			return true
		}
	}
	return false
}

// Classify maps each free tag to the best-matching controlled path when
// similarity exceeds similarityThreshold; otherwise it is returned as a
// suggestion and a suggestion counter is bumped for periodic review.
func (v *Vocabulary) Classify(freeTags []string, kind Kind) (controlled, suggested []string) {
	trees := *v.trees.Load()
	t, ok := trees[kind]
	if !ok || len(t.paths) == 0 {
		suggested = lo.Uniq(freeTags)
		for _, tag := range suggested {
			v.recordSuggestion(kind, tag)
		}
		return nil, suggested
	}

	candidates := make([]string, 0, len(t.paths))
	for p := range t.paths {
		candidates = append(candidates, p)
	}

	for _, tag := range lo.Uniq(freeTags) {
		best, score := bestMatch(tag, candidates)
		if score >= similarityThreshold {
			controlled = append(controlled, best)
		} else {
			suggested = append(suggested, tag)
			v.recordSuggestion(kind, tag)
		}
	}
	return lo.Uniq(controlled), lo.Uniq(suggested)
}

func (v *Vocabulary) recordSuggestion(kind Kind, tag string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := string(kind) + "|" + strings.ToLower(tag)
	sc, ok := v.suggestions[key]
	if !ok {
		sc = &suggestionCount{}
		v.suggestions[key] = sc
	}
	sc.Occurrences++
	sc.LastSeen = time.Now()
}

// Suggestions returns the (tag, occurrences, last_seen) counters for
// periodic promotion review (§4.1).
type Suggestion struct {
	Kind        Kind
	Tag         string
	Occurrences int
	LastSeen    time.Time
}

func (v *Vocabulary) Suggestions() []Suggestion {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Suggestion, 0, len(v.suggestions))
	for key, sc := range v.suggestions {
		parts := strings.SplitN(key, "|", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, Suggestion{
			Kind:        Kind(parts[0]),
			Tag:         parts[1],
			Occurrences: sc.Occurrences,
			LastSeen:    sc.LastSeen,
		})
	}
	return out
}

// SetWatchlist replaces the project watchlist used by MatchProjects.
func (v *Vocabulary) SetWatchlist(entries []WatchlistEntry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.watchlist = entries
}

// MatchProjects scans the watchlist for name/alias hits in text within an
// optional date window, returning controlled project identifiers.
func (v *Vocabulary) MatchProjects(text string, date time.Time) []string {
	v.mu.Lock()
	watchlist := append([]WatchlistEntry(nil), v.watchlist...)
	v.mu.Unlock()

	lower := strings.ToLower(text)
	var hits []string
	for _, entry := range watchlist {
		if !entry.WindowStart.IsZero() && date.Before(entry.WindowStart) {
			continue
		}
		if !entry.WindowEnd.IsZero() && date.After(entry.WindowEnd) {
			continue
		}
		for _, alias := range entry.Aliases {
			if alias == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(alias)) {
				hits = append(hits, entry.ProjectID)
				break
			}
		}
	}
	return lo.Uniq(hits)
}

// bestMatch returns the candidate with the highest normalized-Levenshtein
// similarity to tag, and that similarity score.
func bestMatch(tag string, candidates []string) (string, float64) {
	normTag := normalizeForMatch(tag)
	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		// Compare against the leaf segment of the path, which carries the
		// free-text-like label (e.g. "embeddings" in "technology/ai/embeddings").
		leaf := c
		if idx := strings.LastIndex(c, "/"); idx >= 0 {
			leaf = c[idx+1:]
		}
		score := similarity(normTag, normalizeForMatch(leaf))
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best, bestScore
}

func normalizeForMatch(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		if r == ' ' || r == '-' || r == '_' {
			b.WriteRune(' ')
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), "")
}

// similarity returns a normalized similarity in [0,1] derived from the
// Levenshtein edit distance between a and b.
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	dist := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(maxLen)
}

// levenshtein computes the classic edit distance between two strings.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}
