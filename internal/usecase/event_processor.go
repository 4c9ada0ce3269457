package usecase

import (
	"context"
	"fmt"
	"time"

	"hermes/internal/domain/models"
	drepo "hermes/internal/domain/repository"
	"hermes/internal/services/calibration"
	"hermes/internal/services/delaystats"
	"hermes/internal/services/scoring"
	xlogger "hermes/pkg/logger"
)

// EventProcessor runs one event through the full loop: raw impact score,
// calibration adjustment, delay bookkeeping, and pending-outcome enqueue.
type EventProcessor struct {
	calib   *calibration.Service
	delays  *delaystats.Service
	metrics drepo.Metrics
	logger  *xlogger.Logger
}

// NewEventProcessor creates a new EventProcessor instance.
func NewEventProcessor(
	calib *calibration.Service,
	delays *delaystats.Service,
	metrics drepo.Metrics,
	logger *xlogger.Logger,
) *EventProcessor {
	return &EventProcessor{
		calib:   calib,
		delays:  delays,
		metrics: metrics,
		logger:  logger,
	}
}

// Process scores the event in place and feeds the feedback loop. The input
// event is mutated: RawScore, FinalScore and IngestDelayMinutes are set.
func (p *EventProcessor) Process(ctx context.Context, e *models.Event) error {
	if e == nil {
		return fmt.Errorf("event is nil")
	}
	if err := validateEvent(e); err != nil {
		p.metrics.RecordError("process_validate")
		return err
	}

	start := time.Now()
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.IngestDelayMinutes <= 0 {
		e.IngestDelayMinutes = e.CreatedAt.Sub(e.PublishedAt).Minutes()
		if e.IngestDelayMinutes < 0 {
			e.IngestDelayMinutes = 0
		}
	}

	e.RawScore = scoring.ScoreEvent(e, now)
	e.FinalScore = p.calib.AdjustedScore(e.RawScore, e.Scope, e.EventType, e.RiskFlags)

	if e.SourceName != "" {
		p.delays.Record(ctx, e.SourceName, e.IngestDelayMinutes, e.Scope)
	}
	p.calib.Enqueue(ctx, e)

	p.metrics.RecordEventScored(string(e.Scope), string(e.EventType))
	p.metrics.RecordCalibratedScore(string(e.Scope), string(e.EventType), e.FinalScore)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	p.logger.Info("event scored",
		xlogger.String("id", e.ID),
		xlogger.String("symbol", e.Symbol),
		xlogger.String("type", string(e.EventType)),
		xlogger.Any("raw", e.RawScore),
		xlogger.Any("final", e.FinalScore))
	return nil
}

func validateEvent(e *models.Event) error {
	if e.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if e.Scope != models.ScopeBIST && e.Scope != models.ScopeGlobal {
		return fmt.Errorf("unknown scope: %s", e.Scope)
	}
	if e.EventType == "" {
		return fmt.Errorf("event type empty")
	}
	if e.PublishedAt.IsZero() {
		return fmt.Errorf("publishedAt missing")
	}
	return nil
}
