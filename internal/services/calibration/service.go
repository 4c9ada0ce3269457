package calibration

import (
	"context"
	"sort"
	"strings"
	"sync"

	"hermes/internal/domain/models"
	domrepo "hermes/internal/domain/repository"
	xlogger "hermes/pkg/logger"
)

// Snapshot storage keys. Blobs are whole-map/whole-list JSON; absence or a
// decode failure falls back to an empty store.
const (
	profilesKey = "hermes_event_calibration_profiles_v2"
	pendingKey  = "hermes_event_calibration_pending_v1"
)

// Service owns the calibration-profile map and the pending-evaluation queue.
// All access is serialized behind one mutex; running averages and bounded
// accumulators must never see interleaved writers.
type Service struct {
	mu       sync.Mutex
	profiles map[string]*models.CalibrationProfile
	pending  []models.PendingCalibrationItem

	store   domrepo.SnapshotStore
	prices  domrepo.PriceSource
	sink    domrepo.OutcomeSink
	pub     domrepo.OutcomePublisher
	metrics domrepo.Metrics
	logger  *xlogger.Logger
}

// Option configures optional collaborators.
type Option func(*Service)

// WithOutcomeSink attaches an append-only outcome history sink.
func WithOutcomeSink(s domrepo.OutcomeSink) Option {
	return func(c *Service) { c.sink = s }
}

// WithOutcomePublisher attaches an outcome topic publisher.
func WithOutcomePublisher(p domrepo.OutcomePublisher) Option {
	return func(c *Service) { c.pub = p }
}

// NewService builds the service and restores persisted state. Malformed or
// absent snapshots start empty; load never fails the constructor.
func NewService(store domrepo.SnapshotStore, prices domrepo.PriceSource, metrics domrepo.Metrics, logger *xlogger.Logger, opts ...Option) *Service {
	s := &Service{
		profiles: make(map[string]*models.CalibrationProfile),
		store:    store,
		prices:   prices,
		metrics:  metrics,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()
	if store != nil {
		var profiles map[string]*models.CalibrationProfile
		if found, err := store.Load(ctx, profilesKey, &profiles); err != nil {
			logger.Warn("calibration: profiles snapshot unreadable, starting empty", xlogger.Error(err))
		} else if found {
			s.profiles = profiles
		}
		var pending []models.PendingCalibrationItem
		if found, err := store.Load(ctx, pendingKey, &pending); err != nil {
			logger.Warn("calibration: pending snapshot unreadable, starting empty", xlogger.Error(err))
		} else if found {
			s.pending = pending
		}
	}
	if s.metrics != nil {
		s.metrics.RecordPendingDepth(len(s.pending))
	}
	logger.Info("calibration: state restored",
		xlogger.Int("profiles", len(s.profiles)),
		xlogger.Int("pending", len(s.pending)))
	return s
}

// AdjustedScore transforms a raw score through the matching profile: bias and
// multiplier first, then bucket blending, then the reliability dampener.
// Always returns a value in [0,100]; a never-seen group is identity.
func (s *Service) AdjustedScore(baseScore float64, scope models.EventScope, eventType models.EventType, flags []models.RiskFlag) float64 {
	key := ProfileKey(scope, eventType, Group(scope, flags))

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[key]
	if !ok {
		profile = models.NewCalibrationProfile()
	}

	clampedBase := clamp(baseScore, 0, 100)
	adjusted := clamp((clampedBase-profile.Bias)*profile.Multiplier, 0, 100)

	// Bucket blending corrects magnitude-dependent miscalibration. The blend
	// weight grows with sample size and caps at 0.4.
	if b := profile.Bucket(clampedBase); b != nil && b.Count >= 5 && b.PredictedAvg > 0.1 {
		ratio := b.RealizedAvg / b.PredictedAvg
		blend := min(0.4, float64(b.Count)/25.0*0.4)
		adjusted = adjusted*(1.0-blend) + (adjusted*ratio)*blend
	}

	// Circuit breaker: chronically wrong groups get pulled toward neutral.
	if profile.TotalCount >= 20 && profile.HitRate < 0.45 {
		adjusted = adjusted*0.85 + 50.0*0.15
	}

	return clamp(adjusted, 0, 100)
}

// Summary reports the profile and evaluation parameters for one
// (scope, eventType, horizon, flags) combination.
func (s *Service) Summary(scope models.EventScope, eventType models.EventType, horizon models.Horizon, flags []models.RiskFlag) models.CalibrationSummary {
	group := Group(scope, flags)
	key := ProfileKey(scope, eventType, group)

	s.mu.Lock()
	profile, ok := s.profiles[key]
	if !ok {
		profile = models.NewCalibrationProfile()
	}
	summary := models.CalibrationSummary{
		Multiplier:   profile.Multiplier,
		Bias:         profile.Bias,
		TotalCount:   profile.TotalCount,
		HitRate:      profile.HitRate,
		MeanAbsError: profile.MeanAbsError(),
		LastUpdated:  profile.LastUpdated,
		Group:        group,
	}
	s.mu.Unlock()

	horizons := EvaluationDays(scope, horizon)
	summary.BenchmarkCandidates = BenchmarkCandidates(scope)
	summary.PrimaryDays = horizons.Primary
	summary.SecondaryDays = horizons.Secondary
	return summary
}

// GroupStats aggregates BIST profiles per group tag, count-weighted, keeping
// only groups with at least minCount resolved outcomes. Sorted by group name.
func (s *Service) GroupStats(minCount int) []models.GroupCalibrationStat {
	s.mu.Lock()
	aggregates := make(map[string]*models.GroupCalibrationStat)
	for key, profile := range s.profiles {
		parts := strings.Split(key, "|")
		if len(parts) < 3 || parts[0] != string(models.ScopeBIST) {
			continue
		}
		if profile.TotalCount <= 0 {
			continue
		}
		group := parts[2]
		cur, ok := aggregates[group]
		if !ok {
			cur = &models.GroupCalibrationStat{Group: group}
			aggregates[group] = cur
		}
		n := float64(profile.TotalCount)
		cur.TotalCount += profile.TotalCount
		cur.HitRate += profile.HitRate * n
		cur.MeanAbsError += profile.MeanAbsError() * n
		if profile.LastUpdated != nil {
			if cur.LastUpdated == nil || profile.LastUpdated.After(*cur.LastUpdated) {
				cur.LastUpdated = profile.LastUpdated
			}
		}
	}
	s.mu.Unlock()

	stats := make([]models.GroupCalibrationStat, 0, len(aggregates))
	for _, a := range aggregates {
		if a.TotalCount < minCount {
			continue
		}
		a.HitRate /= float64(a.TotalCount)
		a.MeanAbsError /= float64(a.TotalCount)
		stats = append(stats, *a)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Group < stats[j].Group })
	return stats
}

// PendingCount returns the current pending-queue depth.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Service) persistProfiles(ctx context.Context) {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	snapshot := make(map[string]*models.CalibrationProfile, len(s.profiles))
	for k, v := range s.profiles {
		cp := *v
		snapshot[k] = &cp
	}
	s.mu.Unlock()
	if err := s.store.Save(ctx, profilesKey, snapshot); err != nil {
		s.logger.Warn("calibration: profiles snapshot write failed", xlogger.Error(err))
	}
}

func (s *Service) persistPending(ctx context.Context) {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	snapshot := make([]models.PendingCalibrationItem, len(s.pending))
	copy(snapshot, s.pending)
	s.mu.Unlock()
	if err := s.store.Save(ctx, pendingKey, snapshot); err != nil {
		s.logger.Warn("calibration: pending snapshot write failed", xlogger.Error(err))
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
