package detector

import "testing"

func TestClassifyThresholdZero(t *testing.T) {
	clf := NewClassifier(0.0)
	got := clf.Classify([]float64{-0.1, 0.2, -0.3})
	want := []int{1, 0, 1}
	if len(got) != len(want) {
		t.Fatalf("expected %d predictions, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("prediction %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestClassifyBoundaryIsNormal(t *testing.T) {
	clf := NewClassifier(0.5)
	// Scores strictly below the threshold are outliers; equal is normal.
	got := clf.Classify([]float64{0.5, 0.49999})
	if got[0] != 0 || got[1] != 1 {
		t.Fatalf("unexpected predictions %v", got)
	}
}

func TestClassifyEmptyBatch(t *testing.T) {
	clf := NewClassifier(0.0)
	if got := clf.Classify(nil); len(got) != 0 {
		t.Fatalf("expected empty predictions, got %v", got)
	}
}
