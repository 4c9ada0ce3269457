package delaystats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"hermes/internal/domain/models"
	domrepo "hermes/internal/domain/repository"
	xlogger "hermes/pkg/logger"
)

const (
	storeKey            = "hermes_delay_stats_v1"
	maxSamplesPerSource = 120
	recentSampleLimit   = 12
)

// Service tracks per scope|source ingestion-delay windows, used as a source
// trust signal. Single-writer serialized behind one mutex.
type Service struct {
	mu    sync.Mutex
	stats map[string]*models.DelayWindow

	store  domrepo.SnapshotStore
	logger *xlogger.Logger
}

// NewService restores the persisted windows; malformed or missing snapshots
// start empty.
func NewService(store domrepo.SnapshotStore, logger *xlogger.Logger) *Service {
	s := &Service{
		stats:  make(map[string]*models.DelayWindow),
		store:  store,
		logger: logger,
	}
	if store != nil {
		var loaded map[string]*models.DelayWindow
		if found, err := store.Load(context.Background(), storeKey, &loaded); err != nil {
			logger.Warn("delaystats: snapshot unreadable, starting empty", xlogger.Error(err))
		} else if found {
			s.stats = loaded
		}
	}
	return s
}

// Record appends one delay sample. Negative or non-finite values are ignored.
func (s *Service) Record(ctx context.Context, source string, delayMinutes float64, scope models.EventScope) {
	if math.IsNaN(delayMinutes) || math.IsInf(delayMinutes, 0) || delayMinutes < 0 {
		return
	}
	key := makeKey(source, scope)

	s.mu.Lock()
	w, ok := s.stats[key]
	if !ok {
		w = &models.DelayWindow{}
		s.stats[key] = w
	}
	w.Add(delayMinutes, maxSamplesPerSource)
	s.mu.Unlock()

	s.persist(ctx)
}

// Summary returns count/mean/p50/p90 for one scope|source window.
func (s *Service) Summary(source string, scope models.EventScope) models.DelaySummary {
	key := makeKey(source, scope)
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.stats[key]
	if !ok {
		return models.DelaySummary{}
	}
	return summarize(w.Samples)
}

// Describe blends both scopes for one source: count-weighted mean, max p90.
func (s *Service) Describe(source string) string {
	global := s.Summary(source, models.ScopeGlobal)
	bist := s.Summary(source, models.ScopeBIST)

	total := global.Count + bist.Count
	if total == 0 {
		return "Yeni kaynak, veri birikiyor."
	}
	avg := weightedAverage(global.AverageMinutes, global.Count, bist.AverageMinutes, bist.Count)
	p90 := max(global.P90Minutes, bist.P90Minutes)
	return fmt.Sprintf("Ort. %d dk (P90 %d dk, %d örnek).", int(math.Round(avg)), int(math.Round(p90)), total)
}

// DescribeScope formats one scope's summary for diagnostics display.
func (s *Service) DescribeScope(source string, scope models.EventScope) string {
	summary := s.Summary(source, scope)
	if summary.Count == 0 {
		return "Yeni kaynak, veri birikiyor."
	}
	return fmt.Sprintf("Ort. %d dk (P90 %d dk, %d örnek).",
		int(math.Round(summary.AverageMinutes)), int(math.Round(summary.P90Minutes)), summary.Count)
}

// TopSources ranks a scope's sources by ascending mean delay.
func (s *Service) TopSources(scope models.EventScope, limit int) []models.SourceDelayStat {
	s.mu.Lock()
	out := make([]models.SourceDelayStat, 0, len(s.stats))
	for key, w := range s.stats {
		parts := strings.SplitN(key, "|", 2)
		if len(parts) != 2 || parts[0] != string(scope) {
			continue
		}
		recent := w.Samples
		if len(recent) > recentSampleLimit {
			recent = recent[len(recent)-recentSampleLimit:]
		}
		out = append(out, models.SourceDelayStat{
			Source:        parts[1],
			Summary:       summarize(w.Samples),
			RecentSamples: append([]float64(nil), recent...),
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Summary.AverageMinutes < out[j].Summary.AverageMinutes
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Service) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	snapshot := make(map[string]*models.DelayWindow, len(s.stats))
	for k, w := range s.stats {
		cp := models.DelayWindow{Samples: append([]float64(nil), w.Samples...)}
		snapshot[k] = &cp
	}
	s.mu.Unlock()
	if err := s.store.Save(ctx, storeKey, snapshot); err != nil {
		s.logger.Warn("delaystats: snapshot write failed", xlogger.Error(err))
	}
}

func summarize(samples []float64) models.DelaySummary {
	n := len(samples)
	if n == 0 {
		return models.DelaySummary{}
	}
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	return models.DelaySummary{
		Count:          n,
		AverageMinutes: sum / float64(n),
		P50Minutes:     percentile(samples, 50),
		P90Minutes:     percentile(samples, 90),
	}
}

// percentile sorts a copy of the window on each query; acceptable at the
// 120-sample cap.
func percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	rank := int(math.Round(p / 100.0 * float64(len(sorted)-1)))
	if rank < 0 {
		rank = 0
	}
	if rank > len(sorted)-1 {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func weightedAverage(a float64, ac int, b float64, bc int) float64 {
	total := ac + bc
	if total < 1 {
		total = 1
	}
	return (a*float64(ac) + b*float64(bc)) / float64(total)
}

func makeKey(source string, scope models.EventScope) string {
	return string(scope) + "|" + strings.ToLower(strings.TrimSpace(source))
}
