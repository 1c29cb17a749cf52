// Package confidence implements C16: an assessment of whether reranked
// retrieval results support a grounded answer, blending relevance,
// content-word coverage, and source quality into a recommendation the
// Synthesizer must obey rather than second-guess. The stopword-filtered
// term extraction is retrieval.ExtractSignificantTerms/IsStopWord reused
// directly, since coverage needs exactly the same content-word notion
// the keyword index already builds FTS queries from.
package confidence

import (
	"strings"

	"github.com/kesslerio/ragcore/model"
	"github.com/kesslerio/ragcore/retrieval"
)

const (
	weightRelevance = 0.5
	weightCoverage  = 0.3
	weightQuality   = 0.2

	thresholdOverall   = 0.6
	thresholdRelevance = 0.5
	thresholdCoverage  = 0.5
)

// Recommendation is the action taxonomy §4.13 requires the Synthesizer
// to obey rather than fabricate around.
type Recommendation string

const (
	RecommendAnswer           Recommendation = "answer"
	RecommendPartialAnswer    Recommendation = "partial_answer"
	RecommendClarifyQuestion  Recommendation = "clarify_question"
	RecommendRefuseIrrelevant Recommendation = "refuse_irrelevant"
	RecommendRefuseNoResults  Recommendation = "refuse_no_results"
)

// Assessment is the full breakdown of one confidence evaluation.
type Assessment struct {
	Relevance      float64
	Coverage       float64
	Quality        float64
	Overall        float64
	IsSufficient   bool
	Recommendation Recommendation
}

// Assess computes relevance/coverage/quality/overall over the top-k
// reranked chunks, per §4.13. chunks should already be truncated to the
// caller's desired k; Assess uses every chunk passed in.
func Assess(query string, chunks []model.ScoredChunk) Assessment {
	if len(chunks) == 0 {
		return Assessment{Recommendation: RecommendRefuseNoResults}
	}

	relevance := meanMinMaxNormalized(rerankScores(chunks))
	coverage := contentWordCoverage(query, chunks)
	quality := meanQuality(chunks)
	overall := weightRelevance*relevance + weightCoverage*coverage + weightQuality*quality

	a := Assessment{Relevance: relevance, Coverage: coverage, Quality: quality, Overall: overall}
	a.IsSufficient = overall >= thresholdOverall && relevance >= thresholdRelevance
	a.Recommendation = recommend(a)
	return a
}

func recommend(a Assessment) Recommendation {
	switch {
	case a.Relevance < thresholdRelevance:
		return RecommendRefuseIrrelevant
	case a.Coverage < thresholdCoverage:
		return RecommendClarifyQuestion
	case !a.IsSufficient:
		return RecommendPartialAnswer
	default:
		return RecommendAnswer
	}
}

func rerankScores(chunks []model.ScoredChunk) []float64 {
	out := make([]float64, len(chunks))
	for i, c := range chunks {
		out[i] = c.RerankScore
	}
	return out
}

// meanMinMaxNormalized min-max normalizes scores to [0,1] across the
// batch, then returns their mean. A single-element or zero-spread batch
// normalizes to 1.0 for every element, matching keywordindex/vectorindex's
// own single-result convention.
func meanMinMaxNormalized(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	minV, maxV := scores[0], scores[0]
	for _, s := range scores {
		if s < minV {
			minV = s
		}
		if s > maxV {
			maxV = s
		}
	}
	spread := maxV - minV
	var sum float64
	for _, s := range scores {
		if spread == 0 {
			sum += 1
			continue
		}
		sum += (s - minV) / spread
	}
	return sum / float64(len(scores))
}

func meanQuality(chunks []model.ScoredChunk) float64 {
	var sum float64
	for _, c := range chunks {
		sum += c.Chunk.Scores.Quality
	}
	return sum / float64(len(chunks))
}

// contentWordCoverage is the fraction of the query's stopword-filtered
// content words that appear (case-insensitively) somewhere across the
// retrieved chunk texts.
func contentWordCoverage(query string, chunks []model.ScoredChunk) float64 {
	terms := retrieval.ExtractSignificantTerms(query)
	if len(terms) == 0 {
		return 1 // nothing substantive to cover counts as fully covered
	}

	var corpus strings.Builder
	for _, c := range chunks {
		corpus.WriteString(strings.ToLower(c.Chunk.Text))
		corpus.WriteByte(' ')
	}
	haystack := corpus.String()

	var covered int
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			covered++
		}
	}
	return float64(covered) / float64(len(terms))
}

// ResponseForLowConfidence returns a canned refusal/clarification
// string tailored to assessment.Recommendation. The Synthesizer MUST
// use this rather than attempt to answer when IsSufficient is false,
// per §4.13.
func ResponseForLowConfidence(a Assessment, query string) string {
	switch a.Recommendation {
	case RecommendRefuseNoResults:
		return "I couldn't find any relevant information in the corpus to answer that question."
	case RecommendRefuseIrrelevant:
		return "The documents I have access to don't appear to cover this topic, so I can't answer it reliably."
	case RecommendClarifyQuestion:
		return "I found some related material, but not enough to answer confidently. Could you clarify or narrow the question: \"" + query + "\"?"
	case RecommendPartialAnswer:
		return "I can offer a partial answer based on limited supporting material; treat it as incomplete."
	default:
		return ""
	}
}
