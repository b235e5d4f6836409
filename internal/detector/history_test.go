package detector

import "testing"

func TestHistoryTails(t *testing.T) {
	h := &History{}
	h.AppendScores([]float64{-0.9, -0.5, 0.1, 0.4})
	h.AppendPredictions([]int{1, 1, 0, 0})
	h.AppendLabels([]int{1, 0})

	preds := h.LastPredictions(3)
	if len(preds) != 3 || preds[0] != 1 || preds[1] != 0 || preds[2] != 0 {
		t.Fatalf("expected trailing predictions [1 0 0], got %v", preds)
	}
	labels := h.LastLabels(1)
	if len(labels) != 1 || labels[0] != 0 {
		t.Fatalf("expected trailing label [0], got %v", labels)
	}
	scores := h.LastScores(2)
	if len(scores) != 2 || scores[0] != 0.1 || scores[1] != 0.4 {
		t.Fatalf("expected trailing scores [0.1 0.4], got %v", scores)
	}
}

func TestHistoryTailsClampToLength(t *testing.T) {
	h := &History{}
	h.AppendPredictions([]int{0, 1})
	h.AppendLabels([]int{1})

	if got := h.LastPredictions(10); len(got) != 2 {
		t.Fatalf("expected full prediction log, got %v", got)
	}
	if got := h.LastLabels(10); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected full label log, got %v", got)
	}
	if got := h.LastScores(10); len(got) != 0 {
		t.Fatalf("expected empty score tail, got %v", got)
	}
}
