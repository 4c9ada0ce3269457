package calibration

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"hermes/internal/domain/models"
)

func bistEvent(id string, publishedAt time.Time, score float64) *models.Event {
	return &models.Event{
		ID:          id,
		Scope:       models.ScopeBIST,
		Symbol:      "THYAO",
		EventType:   models.TypeKarUyarisi,
		HorizonHint: models.HorizonShortTerm,
		PublishedAt: publishedAt,
		FinalScore:  score,
	}
}

// gatedPrices blocks the first lookup until released so a test can overlap
// an enqueue with a sweep already in flight. Every lookup reports no data.
type gatedPrices struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedPrices) ClosePrice(_ context.Context, _ string, _ time.Time) (float64, bool, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return 0, false, nil
}

// flatPrices resolves every date for the given symbols at a constant close,
// which makes every abnormal return exactly zero.
func flatPrices(symbols ...string) *fakePrices {
	f := &fakePrices{prices: make(map[string]map[string]float64)}
	for _, s := range symbols {
		f.prices[s] = map[string]float64{"": 100}
	}
	return f
}

func TestEnqueueKeepsFreshItemsPending(t *testing.T) {
	prices := flatPrices("THYAO.IS", "XU100.IS")
	s := newTestService(t, nil, prices)

	s.Enqueue(context.Background(), bistEvent("ev-fresh", time.Now().Add(-2*time.Hour), 70))
	if got := s.PendingCount(); got != 1 {
		t.Fatalf("fresh item should stay pending, depth = %d", got)
	}
}

func TestEnqueueDuringSweepIsNotLost(t *testing.T) {
	prices := &gatedPrices{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewService(newFakeStore(), prices, nopMetrics{}, testLogger(t))

	s.mu.Lock()
	s.pending = append(s.pending, models.PendingCalibrationItem{
		EventID:     "ev-old",
		Scope:       models.ScopeBIST,
		EventType:   models.TypeKarUyarisi,
		Symbol:      "THYAO",
		HorizonHint: models.HorizonShortTerm,
		PublishedAt: time.Now().AddDate(0, 0, -10),
	})
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.ProcessPendingEvents(context.Background())
		close(done)
	}()
	<-prices.entered

	// Lands while the first sweep is mid-evaluation; its nested sweep
	// finishes before the first one writes back.
	s.Enqueue(context.Background(), bistEvent("ev-new", time.Now(), 70))

	close(prices.release)
	<-done

	if got := s.PendingCount(); got != 2 {
		t.Fatalf("pending depth = %d, want 2 (ev-old and ev-new unresolved)", got)
	}
}

func TestSweepSkipsItemsWithoutPrices(t *testing.T) {
	s := newTestService(t, nil, flatPrices("XU100.IS")) // benchmark only, no symbol data
	s.Enqueue(context.Background(), bistEvent("ev-noprice", time.Now().AddDate(0, 0, -10), 70))

	if resolved := s.ProcessPendingEvents(context.Background()); resolved != 0 {
		t.Fatalf("resolved %d without symbol prices", resolved)
	}
	if got := s.PendingCount(); got != 1 {
		t.Fatalf("item should survive the sweep, depth = %d", got)
	}
}

func TestSweepSkipsWithoutBenchmark(t *testing.T) {
	s := newTestService(t, nil, flatPrices("THYAO.IS"))
	s.Enqueue(context.Background(), bistEvent("ev-nobench", time.Now().AddDate(0, 0, -10), 70))

	if got := s.PendingCount(); got != 1 {
		t.Fatalf("no benchmark candidate resolved, depth = %d", got)
	}
}

func TestNeutralOutcomeUpdatesProfile(t *testing.T) {
	// Predicted 80 against a flat market: realized 50, error 0.3.
	s := newTestService(t, nil, flatPrices("THYAO.IS", "XU100.IS"))
	s.Enqueue(context.Background(), bistEvent("ev-1", time.Now().AddDate(0, 0, -20), 80))

	if got := s.PendingCount(); got != 0 {
		t.Fatalf("item should have resolved, depth = %d", got)
	}
	sum := s.Summary(models.ScopeBIST, models.TypeKarUyarisi, models.HorizonShortTerm, nil)
	if math.Abs(sum.Multiplier-(1.0-0.3*0.18)) > 1e-9 {
		t.Fatalf("multiplier = %v, want 0.946", sum.Multiplier)
	}
	if math.Abs(sum.Bias-0.3*8.0) > 1e-9 {
		t.Fatalf("bias = %v, want 2.4", sum.Bias)
	}
	if sum.TotalCount != 1 {
		t.Fatalf("totalCount = %d", sum.TotalCount)
	}
	if sum.HitRate != 0 { // first real outcome replaces the neutral seed
		t.Fatalf("hitRate = %v", sum.HitRate)
	}
}

func TestResolvedItemEvaluatedAtMostOnce(t *testing.T) {
	s := newTestService(t, nil, flatPrices("THYAO.IS", "XU100.IS"))
	s.Enqueue(context.Background(), bistEvent("ev-once", time.Now().AddDate(0, 0, -20), 80))

	s.ProcessPendingEvents(context.Background())
	s.ProcessPendingEvents(context.Background())

	sum := s.Summary(models.ScopeBIST, models.TypeKarUyarisi, models.HorizonShortTerm, nil)
	if sum.TotalCount != 1 {
		t.Fatalf("item re-evaluated: totalCount = %d", sum.TotalCount)
	}
}

func TestSecondaryHorizonTakesPrecedence(t *testing.T) {
	published := time.Now().AddDate(0, 0, -30)
	day := func(offset int) string { return published.AddDate(0, 0, offset).Format("2006-01-02") }

	// Benchmark flat; symbol flat at the primary window, +4% at the secondary.
	// AR settles at +4%, realized = (4+10)*5 = 70.
	prices := &fakePrices{prices: map[string]map[string]float64{
		"XU100.IS": {"": 100},
		"THYAO.IS": {"": 100, day(4): 104},
	}}
	s := newTestService(t, nil, prices)
	s.Enqueue(context.Background(), bistEvent("ev-sec", published, 70))

	sum := s.Summary(models.ScopeBIST, models.TypeKarUyarisi, models.HorizonShortTerm, nil)
	if sum.TotalCount != 1 {
		t.Fatalf("item did not resolve")
	}
	// error = (70 - 70) / 100 = 0: parameters stay neutral, and the hit counts.
	if sum.Multiplier != 1.0 || sum.Bias != 0.0 {
		t.Fatalf("expected neutral update, got mult=%v bias=%v", sum.Multiplier, sum.Bias)
	}
	if sum.HitRate != 1 {
		t.Fatalf("hitRate = %v", sum.HitRate)
	}
}

func TestBenchmarkFallback(t *testing.T) {
	// XU100.IS has no data, XU030.IS does.
	prices := &fakePrices{prices: map[string]map[string]float64{
		"THYAO.IS": {"": 100},
		"XU030.IS": {"": 200},
	}}
	s := newTestService(t, nil, prices)
	s.Enqueue(context.Background(), bistEvent("ev-fb", time.Now().AddDate(0, 0, -20), 60))

	if got := s.PendingCount(); got != 0 {
		t.Fatalf("second benchmark candidate should resolve, depth = %d", got)
	}
}

func TestParametersStayBounded(t *testing.T) {
	// Repeated maximal overestimates: predicted 100, realized 0.
	published := time.Now().AddDate(0, 0, -30)
	day := func(offset int) string { return published.AddDate(0, 0, offset).Format("2006-01-02") }
	prices := &fakePrices{prices: map[string]map[string]float64{
		"XU100.IS": {"": 100},
		"THYAO.IS": {"": 100, day(2): 80, day(4): 80}, // -20% AR, clamps to 0
	}}
	s := newTestService(t, nil, prices)

	for i := 0; i < 30; i++ {
		s.Enqueue(context.Background(), bistEvent("ev-b", published, 100))
	}
	sum := s.Summary(models.ScopeBIST, models.TypeKarUyarisi, models.HorizonShortTerm, nil)
	if sum.Multiplier < models.MultiplierMin || sum.Multiplier > models.MultiplierMax {
		t.Fatalf("multiplier out of bounds: %v", sum.Multiplier)
	}
	if sum.Bias < models.BiasMin || sum.Bias > models.BiasMax {
		t.Fatalf("bias out of bounds: %v", sum.Bias)
	}
	if sum.Multiplier != models.MultiplierMin {
		t.Fatalf("multiplier should saturate at the floor, got %v", sum.Multiplier)
	}
	if sum.Bias != models.BiasMax {
		t.Fatalf("bias should saturate at the cap, got %v", sum.Bias)
	}
}

func TestGlobalHorizonDays(t *testing.T) {
	cases := []struct {
		scope              models.EventScope
		horizon            models.Horizon
		primary, secondary int
	}{
		{models.ScopeBIST, models.HorizonIntraday, 1, 2},
		{models.ScopeBIST, models.HorizonShortTerm, 2, 4},
		{models.ScopeBIST, models.HorizonMultiweek, 7, 14},
		{models.ScopeGlobal, models.HorizonIntraday, 1, 2},
		{models.ScopeGlobal, models.HorizonShortTerm, 1, 3},
		{models.ScopeGlobal, models.HorizonMultiweek, 5, 10},
	}
	for _, c := range cases {
		h := EvaluationDays(c.scope, c.horizon)
		if h.Primary != c.primary || h.Secondary != c.secondary {
			t.Fatalf("%s/%s: got %d/%d, want %d/%d", c.scope, c.horizon, h.Primary, h.Secondary, c.primary, c.secondary)
		}
	}
}

func TestOutcomeRecordsFanOut(t *testing.T) {
	var stored, published []*models.ResolvedOutcome
	sink := outcomeSinkFunc(func(o *models.ResolvedOutcome) { stored = append(stored, o) })
	pub := outcomePubFunc(func(o *models.ResolvedOutcome) { published = append(published, o) })

	s := NewService(newFakeStore(), flatPrices("THYAO.IS", "XU100.IS"), nopMetrics{}, testLogger(t),
		WithOutcomeSink(sink), WithOutcomePublisher(pub))
	s.Enqueue(context.Background(), bistEvent("ev-fan", time.Now().AddDate(0, 0, -20), 80))

	if len(stored) != 1 || len(published) != 1 {
		t.Fatalf("fan-out: stored=%d published=%d", len(stored), len(published))
	}
	rec := stored[0]
	if rec.EventID != "ev-fan" || rec.Benchmark != "XU100.IS" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.RealizedScore != 50 || rec.AbnormalReturn != 0 {
		t.Fatalf("flat market should realize 50/0, got %v/%v", rec.RealizedScore, rec.AbnormalReturn)
	}
}

type outcomeSinkFunc func(*models.ResolvedOutcome)

func (f outcomeSinkFunc) Init(context.Context) error { return nil }
func (f outcomeSinkFunc) Store(_ context.Context, o *models.ResolvedOutcome) error {
	f(o)
	return nil
}
func (f outcomeSinkFunc) Health(context.Context) error { return nil }
func (f outcomeSinkFunc) Close() error                 { return nil }

type outcomePubFunc func(*models.ResolvedOutcome)

func (f outcomePubFunc) Publish(_ context.Context, o *models.ResolvedOutcome) error {
	f(o)
	return nil
}
func (f outcomePubFunc) Close() error { return nil }
