package detector

// Classifier converts continuous anomaly scores into binary outlier labels
// using a fixed threshold. Lower scores indicate higher anomaly likelihood,
// so scores strictly below the threshold classify as outliers.
type Classifier struct {
	threshold float64
}

// NewClassifier creates a classifier with an immutable threshold.
func NewClassifier(threshold float64) Classifier {
	return Classifier{threshold: threshold}
}

// Classify maps each score to 1 (outlier) or 0 (normal).
func (c Classifier) Classify(scores []float64) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		if s < c.threshold {
			out[i] = 1
		}
	}
	return out
}

// Threshold returns the configured threshold.
func (c Classifier) Threshold() float64 {
	return c.threshold
}
