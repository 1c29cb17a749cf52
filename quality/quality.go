// Package quality implements C10: the quality/novelty/actionability/
// signalness scoring and the per-source-kind gating table that decides
// do_index. The weighted-heuristic-combination style follows the
// teacher's eval/metrics.go scoring functions (computeFaithfulness and
// siblings each combine a handful of signals with fixed weights and clamp
// to [0,1]).
package quality

import (
	"math"
	"strconv"
	"time"

	"github.com/kesslerio/ragcore/model"
)

// Thresholds holds the per-source-kind min_quality/min_signal gate (§4.7
// gating table).
type Thresholds struct {
	MinQuality float64
	MinSignal  float64
}

// DefaultGatingTable returns the gating table from §4.7, keyed by
// source_kind string (matching the spec's kind column, which is finer
// grained than model.SourceKind for some rows, e.g. "email.thread").
func DefaultGatingTable() map[string]Thresholds {
	return map[string]Thresholds{
		"email.thread": {MinQuality: 0.70, MinSignal: 0.60},
		"chat.daily":   {MinQuality: 0.65, MinSignal: 0.60},
		"pdf.report":   {MinQuality: 0.75, MinSignal: 0.65},
		"web.article":  {MinQuality: 0.70, MinSignal: 0.60},
		"note":         {MinQuality: 0.60, MinSignal: 0.50},
		"text":         {MinQuality: 0.65, MinSignal: 0.55},
		"legal":        {MinQuality: 0.80, MinSignal: 0.70},
		"generic":      {MinQuality: 0.65, MinSignal: 0.55},
	}
}

// Scorer computes scores for a document and applies the gating table.
type Scorer struct {
	gates map[string]Thresholds
	// saturationK is the novelty saturation constant K (default 10, §4.7).
	saturationK int
}

// New returns a Scorer using the default gating table and K=10.
func New() *Scorer {
	return &Scorer{gates: DefaultGatingTable(), saturationK: 10}
}

// WithGatingTable overrides the per-kind thresholds (e.g. from config).
func (s *Scorer) WithGatingTable(t map[string]Thresholds) *Scorer {
	s.gates = t
	return s
}

// Input bundles everything the scorer needs about one document.
type Input struct {
	GateKind          string // e.g. "pdf.report"; falls back to "generic"
	OCRConfidence     *float64
	ParseSucceeded    bool
	HasStructure      bool // paragraphs/headings/lists detected
	TextLength        int
	SimilarDocsInWindow int // docs sharing >=3 controlled topics within 90 days
	IsExactDuplicate  bool
	WatchlistHit      bool
	NearestEntityDate time.Time // zero if none
	Now               time.Time
}

// Compute returns the full score set and applies the do_index gate.
func (s *Scorer) Compute(in Input) model.Scores {
	q := quality(in)
	n := novelty(in, s.saturationK)
	a := actionability(in)
	signal := round4(0.4*q + 0.3*n + 0.3*a)

	scores := model.Scores{
		Quality:       round4(q),
		Novelty:       round4(n),
		Actionability: round4(a),
		Signalness:    signal,
	}

	th := s.thresholdsFor(in.GateKind)
	scores.DoIndex = scores.Quality >= th.MinQuality && scores.Signalness >= th.MinSignal
	if !scores.DoIndex {
		switch {
		case scores.Quality < th.MinQuality:
			scores.GateReason = gateReason("quality", th.MinQuality)
		default:
			scores.GateReason = gateReason("signalness", th.MinSignal)
		}
	}
	return scores
}

func (s *Scorer) thresholdsFor(kind string) Thresholds {
	if th, ok := s.gates[kind]; ok {
		return th
	}
	return s.gates["generic"]
}

func gateReason(dimension string, threshold float64) string {
	return dimension + " below " + strconv.FormatFloat(threshold, 'f', -1, 64)
}

// quality combines OCR confidence, parse success, structural signal, and
// length adequacy (sigmoid centered at 200 chars) per §4.7.
func quality(in Input) float64 {
	ocr := 1.0
	if in.OCRConfidence != nil {
		ocr = *in.OCRConfidence
	}
	parseSignal := 0.0
	if in.ParseSucceeded {
		parseSignal = 1.0
	}
	structureSignal := 0.0
	if in.HasStructure {
		structureSignal = 1.0
	}
	lengthSignal := sigmoid(float64(in.TextLength), 200, 0.02)

	q := 0.35*ocr + 0.25*parseSignal + 0.2*structureSignal + 0.2*lengthSignal
	return clamp01(q)
}

// novelty is corpus-relative: 1 - min(1, N_similar/K). Exact duplicates
// receive novelty 0 regardless of N_similar.
func novelty(in Input, k int) float64 {
	if in.IsExactDuplicate {
		return 0
	}
	if k <= 0 {
		k = 10
	}
	ratio := float64(in.SimilarDocsInWindow) / float64(k)
	if ratio > 1 {
		ratio = 1
	}
	return clamp01(1 - ratio)
}

// actionability is 0.7 for a watchlist hit, combined with a date-proximity
// boost of up to 0.3 for entity dates within +/-30 days of now: the boost
// replaces the base when larger, otherwise 30% of it is added on top.
func actionability(in Input) float64 {
	base := 0.0
	if in.WatchlistHit {
		base = 0.7
	}
	if !in.NearestEntityDate.IsZero() {
		now := in.Now
		if now.IsZero() {
			now = time.Now()
		}
		days := math.Abs(now.Sub(in.NearestEntityDate).Hours() / 24)
		if days <= 30 {
			boost := 0.3 * (1 - days/30)
			if boost > base {
				base = boost
			} else {
				base += boost * 0.3 // partial additive credit when already actionable
			}
		}
	}
	return clamp01(base)
}

func sigmoid(x, center, steepness float64) float64 {
	return 1 / (1 + math.Exp(-steepness*(x-center)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
