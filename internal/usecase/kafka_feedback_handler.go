package usecase

import (
	"context"
	"encoding/json"
	"time"

	drepo "OutSift/internal/domain/repository"
	pkgkafka "OutSift/pkg/kafka"
)

// KafkaFeedbackHandler consumes delayed ground-truth labels from the feedback
// topic and applies them to the evaluation session. Messages must arrive in
// prediction order per detector; the producer side hashes by detector key to
// keep partitions ordered.
type KafkaFeedbackHandler struct {
	topic   string
	eval    *Evaluator
	metrics drepo.Metrics
}

func NewKafkaFeedbackHandler(topic string, eval *Evaluator, metrics drepo.Metrics) *KafkaFeedbackHandler {
	return &KafkaFeedbackHandler{topic: topic, eval: eval, metrics: metrics}
}

func (h *KafkaFeedbackHandler) Topic() string { return h.topic }

// incoming message schema: {detector, truth, reward, x}
func (h *KafkaFeedbackHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Detector string      `json:"detector"`
		Truth    []int       `json:"truth"`
		Reward   float64     `json:"reward"`
		X        [][]float64 `json:"x"`
		T        int64       `json:"t"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("feedback_unmarshal")
		return err
	}
	if m.Detector != "" && m.Detector != h.eval.Name() {
		// Another detector's feedback on a shared topic; not ours.
		return nil
	}
	if m.T > 0 {
		if m.T > 1e11 { // ms
			m.T = m.T / 1000
		}
		h.metrics.RecordLatency("feedback_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())
	}

	if err := h.eval.Feedback(ctx, m.X, nil, m.Reward, m.Truth); err != nil {
		h.metrics.RecordError("feedback_apply")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaFeedbackHandler)(nil)
