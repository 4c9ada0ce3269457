package calibration

import (
	"context"
	"time"

	"hermes/internal/domain/models"
	xlogger "hermes/pkg/logger"
)

// Profile update steps. One resolved outcome nudges the multiplier and bias
// proportionally to the normalized prediction error.
const (
	multiplierStep = 0.18
	biasStep       = 8.0
	minEvalAge     = 24 * time.Hour
)

// Enqueue stores a pending item for the event and immediately attempts a
// sweep; fresh items simply stay pending until enough time has passed.
func (s *Service) Enqueue(ctx context.Context, event *models.Event) {
	item := models.PendingCalibrationItem{
		EventID:        event.ID,
		Scope:          event.Scope,
		EventType:      event.EventType,
		Symbol:         event.Symbol,
		PublishedAt:    event.PublishedAt,
		PredictedScore: event.FinalScore,
		Polarity:       event.Polarity,
		HorizonHint:    event.HorizonHint,
		Group:          Group(event.Scope, event.RiskFlags),
	}

	s.mu.Lock()
	s.pending = append(s.pending, item)
	depth := len(s.pending)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordPendingDepth(depth)
	}
	s.persistPending(ctx)
	s.ProcessPendingEvents(ctx)
}

// ProcessPendingEvents retries every pending item once. Items that resolve
// update their profile and leave the queue; everything else stays for the
// next sweep. Safe to call at any time and safe to abandon mid-sweep.
func (s *Service) ProcessPendingEvents(ctx context.Context) (resolved int) {
	s.mu.Lock()
	items := make([]models.PendingCalibrationItem, len(s.pending))
	copy(items, s.pending)
	s.mu.Unlock()

	if len(items) == 0 {
		return 0
	}

	start := time.Now()
	resolvedIDs := make(map[string]struct{}, len(items))
	for _, item := range items {
		outcome, ok := s.evaluate(ctx, item)
		if !ok {
			continue
		}
		s.applyCalibration(ctx, item, outcome)
		resolvedIDs[item.EventID] = struct{}{}
		resolved++
	}

	// Remove only what this sweep resolved. The live queue may have grown
	// since the snapshot; overwriting it would drop those items.
	s.mu.Lock()
	if len(resolvedIDs) > 0 {
		kept := s.pending[:0]
		for _, item := range s.pending {
			if _, done := resolvedIDs[item.EventID]; !done {
				kept = append(kept, item)
			}
		}
		s.pending = kept
	}
	depth := len(s.pending)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordPendingDepth(depth)
		s.metrics.RecordLatency("calibration_sweep", time.Since(start).Seconds())
	}
	s.persistPending(ctx)
	if resolved > 0 {
		s.persistProfiles(ctx)
	}
	s.logger.Debug("calibration: sweep finished",
		xlogger.Int("resolved", resolved),
		xlogger.Int("pending", depth))
	return resolved
}

// evaluate resolves one pending item against historical prices. Missing data
// and insufficient elapsed time are both "not yet": the item stays queued.
func (s *Service) evaluate(ctx context.Context, item models.PendingCalibrationItem) (models.CalibrationOutcome, bool) {
	var none models.CalibrationOutcome

	if time.Since(item.PublishedAt) < minEvalAge {
		return none, false
	}

	symbol := NormalizeSymbol(item.Symbol, item.Scope)
	horizons := EvaluationDays(item.Scope, item.HorizonHint)

	entry, ok, err := s.prices.ClosePrice(ctx, symbol, item.PublishedAt)
	if err != nil || !ok || entry == 0 {
		return none, false
	}

	// First benchmark candidate with an entry price wins.
	var benchmark string
	var benchmarkEntry float64
	for _, candidate := range BenchmarkCandidates(item.Scope) {
		v, found, lerr := s.prices.ClosePrice(ctx, candidate, item.PublishedAt)
		if lerr == nil && found && v != 0 {
			benchmark = candidate
			benchmarkEntry = v
			break
		}
	}
	if benchmark == "" {
		return none, false
	}

	primaryDate := item.PublishedAt.AddDate(0, 0, horizons.Primary)
	secondaryDate := item.PublishedAt.AddDate(0, 0, horizons.Secondary)

	exitPrimary, okExit, err := s.prices.ClosePrice(ctx, symbol, primaryDate)
	if err != nil || !okExit {
		return none, false
	}
	benchPrimary, okBench, err := s.prices.ClosePrice(ctx, benchmark, primaryDate)
	if err != nil || !okBench {
		return none, false
	}

	retPrimary := (exitPrimary - entry) / entry * 100.0
	benchRetPrimary := (benchPrimary - benchmarkEntry) / benchmarkEntry * 100.0
	outcome := models.CalibrationOutcome{
		ARPrimary: retPrimary - benchRetPrimary,
		Benchmark: benchmark,
	}

	// The secondary window is optional; when both legs resolve it takes
	// precedence over the primary.
	exitSecondary, okExit, err := s.prices.ClosePrice(ctx, symbol, secondaryDate)
	if err == nil && okExit {
		benchSecondary, okBench, berr := s.prices.ClosePrice(ctx, benchmark, secondaryDate)
		if berr == nil && okBench {
			retSecondary := (exitSecondary - entry) / entry * 100.0
			benchRetSecondary := (benchSecondary - benchmarkEntry) / benchmarkEntry * 100.0
			ar := retSecondary - benchRetSecondary
			outcome.ARSecondary = &ar
		}
	}

	return outcome, true
}

// applyCalibration folds the realized outcome into the owning profile.
func (s *Service) applyCalibration(ctx context.Context, item models.PendingCalibrationItem, outcome models.CalibrationOutcome) {
	key := ProfileKey(item.Scope, item.EventType, item.Group)
	now := time.Now()

	// AR of 0% maps to a neutral 50; +-10% hits the 0/100 extremes.
	realizedScore := clamp((outcome.Realized()+10.0)*5.0, 0, 100)
	predicted := item.PredictedScore
	errNorm := (predicted - realizedScore) / 100.0 // positive = overestimate

	hit := models.ScoreSign(predicted) == models.ScoreSign(realizedScore)

	s.mu.Lock()
	profile, ok := s.profiles[key]
	if !ok {
		profile = models.NewCalibrationProfile()
		s.profiles[key] = profile
	}
	profile.Multiplier = clamp(profile.Multiplier-errNorm*multiplierStep, models.MultiplierMin, models.MultiplierMax)
	profile.Bias = clamp(profile.Bias+errNorm*biasStep, models.BiasMin, models.BiasMax)
	profile.RecordOutcome(predicted, realizedScore, hit, now)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordOutcomeResolved(string(item.Scope), item.Group, hit)
	}

	record := &models.ResolvedOutcome{
		EventID:        item.EventID,
		Scope:          item.Scope,
		EventType:      item.EventType,
		Symbol:         item.Symbol,
		Group:          item.Group,
		Benchmark:      outcome.Benchmark,
		PublishedAt:    item.PublishedAt,
		EvaluatedAt:    now,
		PredictedScore: predicted,
		RealizedScore:  realizedScore,
		AbnormalReturn: outcome.Realized(),
		Hit:            hit,
	}
	if s.sink != nil {
		if err := s.sink.Store(ctx, record); err != nil {
			s.logger.Warn("calibration: outcome sink write failed", xlogger.Error(err))
		}
	}
	if s.pub != nil {
		if err := s.pub.Publish(ctx, record); err != nil {
			s.logger.Warn("calibration: outcome publish failed", xlogger.Error(err))
		}
	}
	s.logger.Info("calibration: outcome resolved",
		xlogger.String("key", key),
		xlogger.String("symbol", item.Symbol),
		xlogger.Any("predicted", predicted),
		xlogger.Any("realized", realizedScore),
		xlogger.Bool("hit", hit))
}
