package quality

import (
	"testing"
	"time"
)

func TestGatingTableGeneric(t *testing.T) {
	s := New()
	scores := s.Compute(Input{
		GateKind:       "generic",
		ParseSucceeded: true,
		HasStructure:   true,
		TextLength:     400,
	})
	if !scores.DoIndex {
		t.Fatalf("expected do_index=true for high-quality generic doc, got gate_reason=%q scores=%+v", scores.GateReason, scores)
	}
}

func TestGatingTableRejectsLowQuality(t *testing.T) {
	s := New()
	conf := 0.2
	scores := s.Compute(Input{
		GateKind:       "legal",
		OCRConfidence:  &conf,
		ParseSucceeded: false,
		HasStructure:   false,
		TextLength:     10,
	})
	if scores.DoIndex {
		t.Fatal("expected do_index=false for low-quality legal doc")
	}
	if scores.GateReason == "" {
		t.Error("expected a gate_reason to be set when rejected")
	}
}

func TestExactDuplicateForcesNoveltyZero(t *testing.T) {
	s := New()
	scores := s.Compute(Input{
		GateKind:         "generic",
		ParseSucceeded:   true,
		HasStructure:     true,
		TextLength:       500,
		IsExactDuplicate: true,
	})
	if scores.Novelty != 0 {
		t.Errorf("Novelty = %v, want 0 for exact duplicate", scores.Novelty)
	}
}

func TestNoveltySaturatesAtK(t *testing.T) {
	s := New()
	scores := s.Compute(Input{
		GateKind:            "generic",
		ParseSucceeded:      true,
		SimilarDocsInWindow: 50, // far beyond K=10
	})
	if scores.Novelty != 0 {
		t.Errorf("Novelty = %v, want 0 when similar-doc count saturates K", scores.Novelty)
	}
}

func TestSignalnessFormulaRounded(t *testing.T) {
	s := New()
	scores := s.Compute(Input{
		GateKind:       "generic",
		ParseSucceeded: true,
		HasStructure:   true,
		TextLength:     200,
		WatchlistHit:   true,
	})
	want := round4(0.4*scores.Quality + 0.3*scores.Novelty + 0.3*scores.Actionability)
	if scores.Signalness != want {
		t.Errorf("Signalness = %v, want %v (0.4*quality + 0.3*novelty + 0.3*actionability)", scores.Signalness, want)
	}
}

func TestActionabilityDateProximityBoost(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	a := actionability(Input{
		NearestEntityDate: now.AddDate(0, 0, -5),
		Now:               now,
	})
	if a <= 0 {
		t.Errorf("actionability = %v, want > 0 for a date within 30 days", a)
	}

	farAway := actionability(Input{
		NearestEntityDate: now.AddDate(0, -6, 0),
		Now:               now,
	})
	if farAway != 0 {
		t.Errorf("actionability = %v, want 0 for a date far outside the 30-day window", farAway)
	}
}

func TestUnknownGateKindFallsBackToGeneric(t *testing.T) {
	s := New()
	got := s.thresholdsFor("totally-unknown-kind")
	want := s.gates["generic"]
	if got != want {
		t.Errorf("thresholdsFor(unknown) = %+v, want generic fallback %+v", got, want)
	}
}
