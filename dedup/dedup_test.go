package dedup

import "testing"

func TestExactDuplicateDetection(t *testing.T) {
	d := New()

	r1 := d.Check("doc-1", "Hello")
	if r1.IsDuplicate {
		t.Fatal("first document should not be a duplicate")
	}

	r2 := d.Check("doc-2", "Hello")
	if !r2.IsDuplicate {
		t.Fatal("identical content should be flagged as duplicate")
	}
	if r2.ExistingDocID != "doc-1" {
		t.Errorf("ExistingDocID = %q, want doc-1 (first writer wins)", r2.ExistingDocID)
	}
}

func TestCosmeticDifferencesStillMatch(t *testing.T) {
	d := New()
	d.Check("doc-1", "Hello\r\nWorld  ")
	r := d.Check("doc-2", "Hello\nWorld")
	if !r.IsDuplicate {
		t.Error("CRLF/trailing-whitespace-only differences should still hash identically")
	}
}

func TestNewlinesPreservedNotCollapsed(t *testing.T) {
	// Two texts differing only by newline-vs-space between lines must be
	// treated as distinct content (newline collapse is a forbidden defect).
	d := New()
	d.Check("doc-1", "line one\nline two")
	r := d.Check("doc-2", "line one line two")
	if r.IsDuplicate {
		t.Error("newline-vs-space difference must not be collapsed away")
	}
}

func TestRemoveAllowsReingest(t *testing.T) {
	d := New()
	d.Check("doc-1", "content")
	d.Remove("doc-1")
	r := d.Check("doc-2", "content")
	if r.IsDuplicate {
		t.Error("after removal, identical content should be accepted as new")
	}
}

func TestNearDuplicateAdvisory(t *testing.T) {
	d := New()
	d.Check("doc-1", "the quick brown fox jumps over the lazy dog today")
	r := d.Check("doc-2", "the quick brown fox jumps over the lazy dog tomorrow")
	// Near-dup is advisory: it must never block ingest (IsDuplicate stays false).
	if r.IsDuplicate {
		t.Error("near-duplicate must not be reported as an exact duplicate")
	}
}
