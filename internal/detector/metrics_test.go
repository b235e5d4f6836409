package detector

import (
	"math"
	"testing"
)

func TestComputeEmptyHistorySentinels(t *testing.T) {
	m := Compute(nil, nil, 100)

	for name, v := range map[string]float64{
		"accuracy_tot":   m.AccuracyTot,
		"precision_tot":  m.PrecisionTot,
		"recall_tot":     m.RecallTot,
		"f1_tot":         m.F1Tot,
		"f2_tot":         m.F2Tot,
		"accuracy_roll":  m.AccuracyRoll,
		"precision_roll": m.PrecisionRoll,
		"recall_roll":    m.RecallRoll,
		"f1_roll":        m.F1Roll,
		"f2_roll":        m.F2Roll,
	} {
		if !math.IsNaN(v) {
			t.Fatalf("expected NaN for %s, got %v", name, v)
		}
	}
	for name, v := range map[string]float64{
		"tn":               m.TrueNegative,
		"fp":               m.FalsePositive,
		"fn":               m.FalseNegative,
		"tp":               m.TruePositive,
		"nb_outliers_roll": m.OutliersRoll,
		"nb_labels_roll":   m.LabelsRoll,
		"nb_outliers_tot":  m.OutliersTot,
		"nb_labels_tot":    m.LabelsTot,
	} {
		if v != 0 {
			t.Fatalf("expected 0 for %s, got %v", name, v)
		}
	}
}

func TestComputePerfectAgreement(t *testing.T) {
	labels := []int{1, 0, 1}
	preds := []int{1, 0, 1}
	m := Compute(labels, preds, 100)

	if m.TruePositive != 2 || m.TrueNegative != 1 || m.FalsePositive != 0 || m.FalseNegative != 0 {
		t.Fatalf("unexpected confusion matrix: tn=%v fp=%v fn=%v tp=%v",
			m.TrueNegative, m.FalsePositive, m.FalseNegative, m.TruePositive)
	}
	if m.AccuracyTot != 1.0 {
		t.Fatalf("expected accuracy 1.0, got %v", m.AccuracyTot)
	}
	if m.F1Tot != 1.0 || m.F2Tot != 1.0 {
		t.Fatalf("expected f1/f2 1.0, got %v/%v", m.F1Tot, m.F2Tot)
	}
	if m.OutliersTot != 2 || m.LabelsTot != 2 {
		t.Fatalf("unexpected counts: outliers=%v labels=%v", m.OutliersTot, m.LabelsTot)
	}
}

func TestComputeRollingWindowRestriction(t *testing.T) {
	// Last 2 pairs are (label=0,pred=0) and (label=1,pred=0): one true
	// negative, one false negative, no predicted positives.
	labels := []int{1, 0, 1, 0, 1}
	preds := []int{1, 0, 1, 0, 0}
	m := Compute(labels, preds, 2)

	if m.RecallRoll != 0.0 {
		t.Fatalf("expected rolling recall 0.0, got %v", m.RecallRoll)
	}
	if !math.IsNaN(m.PrecisionRoll) {
		t.Fatalf("expected rolling precision NaN, got %v", m.PrecisionRoll)
	}
	if m.OutliersRoll != 0 || m.LabelsRoll != 1 {
		t.Fatalf("unexpected rolling counts: outliers=%v labels=%v", m.OutliersRoll, m.LabelsRoll)
	}

	// Cumulative block still covers all five pairs.
	if m.TruePositive != 2 || m.TrueNegative != 2 || m.FalseNegative != 1 || m.FalsePositive != 0 {
		t.Fatalf("unexpected cumulative matrix: tn=%v fp=%v fn=%v tp=%v",
			m.TrueNegative, m.FalsePositive, m.FalseNegative, m.TruePositive)
	}
	if m.OutliersTot != 2 || m.LabelsTot != 3 {
		t.Fatalf("unexpected cumulative counts: outliers=%v labels=%v", m.OutliersTot, m.LabelsTot)
	}
}

func TestComputeWindowLargerThanHistory(t *testing.T) {
	labels := []int{1, 0}
	preds := []int{0, 0}
	m := Compute(labels, preds, 100)

	// Rolling block must equal the cumulative block when w > L.
	if m.AccuracyRoll != m.AccuracyTot {
		t.Fatalf("rolling accuracy %v != cumulative %v", m.AccuracyRoll, m.AccuracyTot)
	}
	if m.LabelsRoll != m.LabelsTot || m.OutliersRoll != m.OutliersTot {
		t.Fatalf("rolling counts diverge from cumulative on short history")
	}
}

func TestFBetaUndefined(t *testing.T) {
	if v := fbeta(math.NaN(), 1, 1); !math.IsNaN(v) {
		t.Fatalf("expected NaN for NaN precision, got %v", v)
	}
	if v := fbeta(0, 0, 2); !math.IsNaN(v) {
		t.Fatalf("expected NaN for zero denominator, got %v", v)
	}
	if v := fbeta(0.5, 0.5, 1); v != 0.5 {
		t.Fatalf("expected 0.5, got %v", v)
	}
}
