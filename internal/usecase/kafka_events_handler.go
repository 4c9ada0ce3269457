package usecase

import (
	"context"
	"encoding/json"
	"time"

	"hermes/internal/domain/models"
	domrepo "hermes/internal/domain/repository"
	pkgkafka "hermes/pkg/kafka"
)

// KafkaEventsHandler consumes classified events from Kafka and scores them.
type KafkaEventsHandler struct {
	topic   string
	proc    *EventProcessor
	metrics domrepo.Metrics
}

func NewKafkaEventsHandler(topic string, proc *EventProcessor, metrics domrepo.Metrics) *KafkaEventsHandler {
	return &KafkaEventsHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaEventsHandler) Topic() string { return h.topic }

func (h *KafkaEventsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		ID                string   `json:"id"`
		Scope             string   `json:"scope"`
		Symbol            string   `json:"symbol"`
		ArticleID         string   `json:"articleId"`
		Headline          string   `json:"headline"`
		EventType         string   `json:"eventType"`
		Polarity          string   `json:"polarity"`
		Severity          float64  `json:"severity"`
		Confidence        float64  `json:"confidence"`
		HorizonHint       string   `json:"horizonHint"`
		RiskFlags         []string `json:"riskFlags"`
		SourceName        string   `json:"sourceName"`
		SourceReliability float64  `json:"sourceReliability"`
		PublishedAt       int64    `json:"publishedAt"` // unix seconds or ms
		ArticleURL        string   `json:"articleUrl"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.PublishedAt > 1e11 { // ms
		m.PublishedAt = m.PublishedAt / 1000
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.PublishedAt, 0)).Seconds())

	flags := make([]models.RiskFlag, 0, len(m.RiskFlags))
	for _, f := range m.RiskFlags {
		flags = append(flags, models.RiskFlag(f))
	}
	err := h.proc.Process(ctx, &models.Event{
		ID:                m.ID,
		Scope:             models.EventScope(m.Scope),
		Symbol:            m.Symbol,
		ArticleID:         m.ArticleID,
		Headline:          m.Headline,
		EventType:         models.EventType(m.EventType),
		Polarity:          models.Polarity(m.Polarity),
		Severity:          m.Severity,
		Confidence:        m.Confidence,
		HorizonHint:       models.Horizon(m.HorizonHint),
		RiskFlags:         flags,
		SourceName:        m.SourceName,
		SourceReliability: m.SourceReliability,
		PublishedAt:       time.Unix(m.PublishedAt, 0),
		CreatedAt:         time.Now(),
		ArticleURL:        m.ArticleURL,
	})
	if err != nil {
		h.metrics.RecordError("consumer_process")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaEventsHandler)(nil)
