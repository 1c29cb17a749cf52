package confidence

import (
	"testing"

	"github.com/kesslerio/ragcore/model"
)

func TestAssessNoChunksRefusesNoResults(t *testing.T) {
	a := Assess("anything", nil)
	if a.Recommendation != RecommendRefuseNoResults {
		t.Errorf("Recommendation = %v, want refuse_no_results", a.Recommendation)
	}
	if a.IsSufficient {
		t.Error("IsSufficient = true, want false for zero candidates")
	}
}

func TestAssessHighRelevanceHighCoverageAnswers(t *testing.T) {
	// Three scores, skewed toward the high end, keep the min-max
	// normalized mean comfortably above the 0.5 relevance threshold
	// without sitting on the exact boundary a two-score batch would.
	chunks := []model.ScoredChunk{
		{
			Chunk:       model.Chunk{Text: "the quarterly maintenance schedule requires rotating equipment inspection", Scores: model.Scores{Quality: 0.9}},
			RerankScore: 0.95,
		},
		{
			Chunk:       model.Chunk{Text: "inspection records must be retained for five years", Scores: model.Scores{Quality: 0.85}},
			RerankScore: 0.9,
		},
		{
			Chunk:       model.Chunk{Text: "rotating equipment inventory by site and asset tag", Scores: model.Scores{Quality: 0.8}},
			RerankScore: 0.3,
		},
	}
	a := Assess("what is the quarterly maintenance inspection schedule for rotating equipment?", chunks)
	if a.Recommendation != RecommendAnswer {
		t.Errorf("Recommendation = %v, want answer; assessment = %+v", a.Recommendation, a)
	}
	if !a.IsSufficient {
		t.Errorf("IsSufficient = false, want true; assessment = %+v", a)
	}
}

func TestAssessLowRelevanceRefusesIrrelevant(t *testing.T) {
	// meanMinMaxNormalized of a two-score batch always averages to 0.5
	// regardless of magnitude, so driving relevance below the 0.5
	// threshold needs a skewed three-score batch: two low outliers pull
	// the mean down even though the top score normalizes to 1.0.
	chunks := []model.ScoredChunk{
		{Chunk: model.Chunk{Text: "unrelated text about cooking recipes", Scores: model.Scores{Quality: 0.9}}, RerankScore: 0.01},
		{Chunk: model.Chunk{Text: "more unrelated text about gardening", Scores: model.Scores{Quality: 0.9}}, RerankScore: 0.01},
		{Chunk: model.Chunk{Text: "a tangential mention of maintenance", Scores: model.Scores{Quality: 0.9}}, RerankScore: 0.9},
	}
	a := Assess("what is the maintenance inspection schedule?", chunks)
	if a.Recommendation != RecommendRefuseIrrelevant {
		t.Errorf("Recommendation = %v, want refuse_irrelevant; assessment = %+v", a.Recommendation, a)
	}
}

func TestContentWordCoverageCountsMatchingTerms(t *testing.T) {
	chunks := []model.ScoredChunk{
		{Chunk: model.Chunk{Text: "the rotating equipment maintenance schedule is quarterly"}},
	}
	coverage := contentWordCoverage("rotating equipment maintenance schedule", chunks)
	if coverage != 1.0 {
		t.Errorf("contentWordCoverage() = %f, want 1.0 (full coverage)", coverage)
	}
}

func TestContentWordCoverageZeroWhenNoOverlap(t *testing.T) {
	chunks := []model.ScoredChunk{
		{Chunk: model.Chunk{Text: "completely different topic entirely"}},
	}
	coverage := contentWordCoverage("rotating equipment maintenance schedule", chunks)
	if coverage != 0 {
		t.Errorf("contentWordCoverage() = %f, want 0", coverage)
	}
}

func TestResponseForLowConfidenceVariesByRecommendation(t *testing.T) {
	cases := []Recommendation{RecommendRefuseNoResults, RecommendRefuseIrrelevant, RecommendClarifyQuestion, RecommendPartialAnswer}
	seen := map[string]bool{}
	for _, rec := range cases {
		resp := ResponseForLowConfidence(Assessment{Recommendation: rec}, "a question")
		if resp == "" {
			t.Errorf("ResponseForLowConfidence(%v) returned empty string", rec)
		}
		if seen[resp] {
			t.Errorf("ResponseForLowConfidence(%v) duplicated another recommendation's text", rec)
		}
		seen[resp] = true
	}
}

func TestMeanMinMaxNormalizedSingleElementIsOne(t *testing.T) {
	if got := meanMinMaxNormalized([]float64{0.3}); got != 1.0 {
		t.Errorf("meanMinMaxNormalized([0.3]) = %f, want 1.0", got)
	}
}
