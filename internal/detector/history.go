package detector

// History holds the append-only logs of one evaluation session: predictions,
// anomaly scores, and ground-truth labels, aligned positionally. The k-th
// label received always refers to the k-th prediction made. Growth is
// unbounded; rolling statistics slice the tail instead of evicting.
type History struct {
	predictions []int
	labels      []int
	scores      []float64
}

// AppendPredictions appends a prediction batch in arrival order.
func (h *History) AppendPredictions(batch []int) {
	h.predictions = append(h.predictions, batch...)
}

// AppendLabels appends a label batch in arrival order.
func (h *History) AppendLabels(batch []int) {
	h.labels = append(h.labels, batch...)
}

// AppendScores appends a score batch in arrival order.
func (h *History) AppendScores(batch []float64) {
	h.scores = append(h.scores, batch...)
}

// Predictions returns the full prediction log.
func (h *History) Predictions() []int { return h.predictions }

// Labels returns the full label log.
func (h *History) Labels() []int { return h.labels }

// Scores returns the full score log.
func (h *History) Scores() []float64 { return h.scores }

// PredictionLen returns the number of predictions made so far.
func (h *History) PredictionLen() int { return len(h.predictions) }

// LabelLen returns the number of labels received so far.
func (h *History) LabelLen() int { return len(h.labels) }

// PredictionAt returns the prediction at absolute index i.
func (h *History) PredictionAt(i int) (int, bool) {
	if i < 0 || i >= len(h.predictions) {
		return 0, false
	}
	return h.predictions[i], true
}

// LabelAt returns the label at absolute index i.
func (h *History) LabelAt(i int) (int, bool) {
	if i < 0 || i >= len(h.labels) {
		return 0, false
	}
	return h.labels[i], true
}

// ScoreAt returns the anomaly score at absolute index i.
func (h *History) ScoreAt(i int) (float64, bool) {
	if i < 0 || i >= len(h.scores) {
		return 0, false
	}
	return h.scores[i], true
}

// LastPredictions returns the trailing k predictions (fewer if history is
// shorter).
func (h *History) LastPredictions(k int) []int {
	if k > len(h.predictions) {
		k = len(h.predictions)
	}
	return h.predictions[len(h.predictions)-k:]
}

// LastScores returns the trailing k scores (fewer if history is shorter).
func (h *History) LastScores(k int) []float64 {
	if k > len(h.scores) {
		k = len(h.scores)
	}
	return h.scores[len(h.scores)-k:]
}

// LastLabels returns the trailing k labels (fewer if history is shorter).
func (h *History) LastLabels(k int) []int {
	if k > len(h.labels) {
		k = len(h.labels)
	}
	return h.labels[len(h.labels)-k:]
}
