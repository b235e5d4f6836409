package detector

import "math"

// Snapshot is the fixed 18-field metrics tuple produced by Compute. Rates
// with a zero denominator carry NaN rather than a made-up value; downstream
// serialization maps NaN to null. Confusion counts are cumulative over the
// entire aligned history.
type Snapshot struct {
	TrueNegative  float64 `json:"true_negative"`
	FalsePositive float64 `json:"false_positive"`
	FalseNegative float64 `json:"false_negative"`
	TruePositive  float64 `json:"true_positive"`

	AccuracyTot  float64 `json:"accuracy_tot"`
	PrecisionTot float64 `json:"precision_tot"`
	RecallTot    float64 `json:"recall_tot"`
	F1Tot        float64 `json:"f1_tot"`
	F2Tot        float64 `json:"f2_tot"`

	AccuracyRoll  float64 `json:"accuracy_roll"`
	PrecisionRoll float64 `json:"precision_roll"`
	RecallRoll    float64 `json:"recall_roll"`
	F1Roll        float64 `json:"f1_roll"`
	F2Roll        float64 `json:"f2_roll"`

	OutliersRoll float64 `json:"nb_outliers_roll"`
	LabelsRoll   float64 `json:"nb_labels_roll"`
	OutliersTot  float64 `json:"nb_outliers_tot"`
	LabelsTot    float64 `json:"nb_labels_tot"`
}

type confusion struct {
	tn, fp, fn, tp float64
}

// Compute derives cumulative and rolling classification metrics from two
// equal-length, positionally aligned {0,1} sequences. rollWindow bounds the
// trailing pair count used for the rolling block; cumulative metrics always
// cover the full history. Zero aligned history yields NaN rates and zero
// counts.
func Compute(labels, predictions []int, rollWindow int) Snapshot {
	total := confusionMatrix(labels, predictions)

	w := rollWindow
	if w > len(labels) {
		w = len(labels)
	}
	roll := confusionMatrix(labels[len(labels)-w:], predictions[len(predictions)-w:])

	accT, precT, recT, f1T, f2T := rates(total)
	accR, precR, recR, f1R, f2R := rates(roll)

	return Snapshot{
		TrueNegative:  total.tn,
		FalsePositive: total.fp,
		FalseNegative: total.fn,
		TruePositive:  total.tp,

		AccuracyTot:  accT,
		PrecisionTot: precT,
		RecallTot:    recT,
		F1Tot:        f1T,
		F2Tot:        f2T,

		AccuracyRoll:  accR,
		PrecisionRoll: precR,
		RecallRoll:    recR,
		F1Roll:        f1R,
		F2Roll:        f2R,

		OutliersRoll: countOnes(predictions[len(predictions)-w:]),
		LabelsRoll:   countOnes(labels[len(labels)-w:]),
		OutliersTot:  countOnes(predictions),
		LabelsTot:    countOnes(labels),
	}
}

func confusionMatrix(labels, predictions []int) confusion {
	var m confusion
	for i, y := range labels {
		p := predictions[i]
		switch {
		case y == 0 && p == 0:
			m.tn++
		case y == 0 && p == 1:
			m.fp++
		case y == 1 && p == 0:
			m.fn++
		default:
			m.tp++
		}
	}
	return m
}

func rates(m confusion) (accuracy, precision, recall, f1, f2 float64) {
	accuracy = safeDiv(m.tp+m.tn, m.tn+m.fp+m.fn+m.tp)
	precision = safeDiv(m.tp, m.tp+m.fp)
	recall = safeDiv(m.tp, m.tp+m.fn)
	f1 = fbeta(precision, recall, 1)
	f2 = fbeta(precision, recall, 2)
	return
}

// fbeta is the weighted harmonic mean of precision and recall. NaN inputs and
// a zero denominator both resolve to NaN.
func fbeta(precision, recall, beta float64) float64 {
	if math.IsNaN(precision) || math.IsNaN(recall) {
		return math.NaN()
	}
	b2 := beta * beta
	return safeDiv((1+b2)*precision*recall, b2*precision+recall)
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

func countOnes(xs []int) float64 {
	var n float64
	for _, x := range xs {
		if x == 1 {
			n++
		}
	}
	return n
}
