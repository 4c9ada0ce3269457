package calibration

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"hermes/internal/domain/models"
	xlogger "hermes/pkg/logger"
)

// fakeStore is an in-memory SnapshotStore.
type fakeStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{blobs: make(map[string][]byte)} }

func (f *fakeStore) Save(_ context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.blobs[key] = b
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) Load(_ context.Context, key string, dest interface{}) (bool, error) {
	f.mu.Lock()
	b, ok := f.blobs[key]
	f.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

// fakePrices maps symbol -> date("2006-01-02") -> close. An empty date key
// is the default for any date.
type fakePrices struct {
	prices map[string]map[string]float64
}

func (f *fakePrices) ClosePrice(_ context.Context, symbol string, onOrBefore time.Time) (float64, bool, error) {
	days, ok := f.prices[symbol]
	if !ok {
		return 0, false, nil
	}
	if v, ok := days[onOrBefore.Format("2006-01-02")]; ok {
		return v, true, nil
	}
	if v, ok := days[""]; ok {
		return v, true, nil
	}
	return 0, false, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordEventScored(string, string)                {}
func (nopMetrics) RecordOutcomeResolved(string, string, bool)      {}
func (nopMetrics) RecordPendingDepth(int)                          {}
func (nopMetrics) RecordCalibratedScore(string, string, float64)   {}
func (nopMetrics) RecordError(string)                              {}
func (nopMetrics) RecordLatency(string, float64)                   {}

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func newTestService(t *testing.T, store *fakeStore, prices *fakePrices) *Service {
	t.Helper()
	if store == nil {
		store = newFakeStore()
	}
	if prices == nil {
		prices = &fakePrices{prices: map[string]map[string]float64{}}
	}
	return NewService(store, prices, nopMetrics{}, testLogger(t))
}

func seedProfile(t *testing.T, store *fakeStore, key string, p *models.CalibrationProfile) {
	t.Helper()
	if err := store.Save(context.Background(), profilesKey, map[string]*models.CalibrationProfile{key: p}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func TestAdjustedScoreColdStartIsIdentity(t *testing.T) {
	s := newTestService(t, nil, nil)
	for _, score := range []float64{0, 12.5, 50, 70, 100} {
		got := s.AdjustedScore(score, models.ScopeBIST, models.TypeKarUyarisi, nil)
		if got != score {
			t.Fatalf("cold start AdjustedScore(%v) = %v", score, got)
		}
	}
}

func TestAdjustedScoreBiasAndMultiplier(t *testing.T) {
	store := newFakeStore()
	p := models.NewCalibrationProfile()
	p.Bias = 10
	p.Multiplier = 0.8
	seedProfile(t, store, ProfileKey(models.ScopeBIST, models.TypeKarUyarisi, "core"), p)

	s := newTestService(t, store, nil)
	got := s.AdjustedScore(70, models.ScopeBIST, models.TypeKarUyarisi, nil)
	if math.Abs(got-48) > 1e-9 {
		t.Fatalf("AdjustedScore(70) = %v, want 48", got)
	}
}

func TestAdjustedScoreBucketBlending(t *testing.T) {
	store := newFakeStore()
	p := models.NewCalibrationProfile()
	// Bucket [60,80): 10 samples where realized ran at half the prediction.
	b := p.Bucket(70)
	b.Count = 10
	b.PredictedAvg = 70
	b.RealizedAvg = 35
	seedProfile(t, store, ProfileKey(models.ScopeGlobal, models.TypeEarningsSurprise, ""), p)

	s := newTestService(t, store, nil)
	got := s.AdjustedScore(70, models.ScopeGlobal, models.TypeEarningsSurprise, nil)
	// blend = min(0.4, 10/25*0.4) = 0.16; 70*(1-0.16) + 70*0.5*0.16 = 64.4
	if math.Abs(got-64.4) > 1e-9 {
		t.Fatalf("blended score = %v, want 64.4", got)
	}
}

func TestAdjustedScoreSparseBucketIgnored(t *testing.T) {
	store := newFakeStore()
	p := models.NewCalibrationProfile()
	b := p.Bucket(70)
	b.Count = 4 // below the 5-sample threshold
	b.PredictedAvg = 70
	b.RealizedAvg = 10
	seedProfile(t, store, ProfileKey(models.ScopeGlobal, models.TypeEarningsSurprise, ""), p)

	s := newTestService(t, store, nil)
	if got := s.AdjustedScore(70, models.ScopeGlobal, models.TypeEarningsSurprise, nil); got != 70 {
		t.Fatalf("sparse bucket should not blend: got %v", got)
	}
}

func TestAdjustedScoreReliabilityDampening(t *testing.T) {
	store := newFakeStore()
	p := models.NewCalibrationProfile()
	p.TotalCount = 25
	p.HitRate = 0.3
	seedProfile(t, store, ProfileKey(models.ScopeBIST, models.TypeKurRiski, "core"), p)

	s := newTestService(t, store, nil)
	got := s.AdjustedScore(80, models.ScopeBIST, models.TypeKurRiski, nil)
	want := 80*0.85 + 50*0.15
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("dampened score = %v, want %v", got, want)
	}
}

func TestAdjustedScoreBounded(t *testing.T) {
	store := newFakeStore()
	p := models.NewCalibrationProfile()
	p.Bias = -15
	p.Multiplier = 1.25
	seedProfile(t, store, ProfileKey(models.ScopeBIST, models.TypeSPKAction, "core"), p)

	s := newTestService(t, store, nil)
	for _, score := range []float64{-20, 0, 55, 100, 250} {
		got := s.AdjustedScore(score, models.ScopeBIST, models.TypeSPKAction, nil)
		if got < 0 || got > 100 {
			t.Fatalf("AdjustedScore(%v) = %v out of [0,100]", score, got)
		}
	}
}

func TestGroupResolution(t *testing.T) {
	if g := Group(models.ScopeBIST, nil); g != "core" {
		t.Fatalf("bist no flags: %q", g)
	}
	if g := Group(models.ScopeBIST, []models.RiskFlag{models.FlagRumor, models.FlagLowReliability}); g != "rumor" {
		t.Fatalf("rumor should win: %q", g)
	}
	if g := Group(models.ScopeBIST, []models.RiskFlag{models.FlagLowReliability}); g != "lowrel" {
		t.Fatalf("lowrel: %q", g)
	}
	if g := Group(models.ScopeGlobal, []models.RiskFlag{models.FlagRumor}); g != "" {
		t.Fatalf("global has no groups: %q", g)
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if got := NormalizeSymbol("thyao", models.ScopeBIST); got != "THYAO.IS" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeSymbol("GARAN.IS", models.ScopeBIST); got != "GARAN.IS" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeSymbol("AAPL", models.ScopeGlobal); got != "AAPL" {
		t.Fatalf("got %q", got)
	}
}

func TestProfileKey(t *testing.T) {
	if k := ProfileKey(models.ScopeBIST, models.TypeKarUyarisi, "rumor"); k != "bist|kar_uyarisi|rumor" {
		t.Fatalf("got %q", k)
	}
	if k := ProfileKey(models.ScopeGlobal, models.TypeMacroShock, ""); k != "global|macro_shock" {
		t.Fatalf("got %q", k)
	}
}

func TestGroupStats(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	mk := func(count int, hitRate, mae float64) *models.CalibrationProfile {
		p := models.NewCalibrationProfile()
		p.TotalCount = count
		p.HitRate = hitRate
		b := p.Bucket(50)
		b.Count = count
		b.MeanAbsError = mae
		p.LastUpdated = &now
		return p
	}
	profiles := map[string]*models.CalibrationProfile{
		"bist|kar_uyarisi|core":   mk(10, 0.6, 20),
		"bist|kap_disclosure|core": mk(30, 0.5, 10),
		"bist|kar_uyarisi|rumor":  mk(2, 0.9, 5),
		"global|macro_shock":      mk(50, 0.7, 8), // no group tag: excluded
	}
	if err := store.Save(context.Background(), profilesKey, profiles); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := newTestService(t, store, nil)
	stats := s.GroupStats(5)
	if len(stats) != 1 {
		t.Fatalf("expected 1 group, got %d: %+v", len(stats), stats)
	}
	core := stats[0]
	if core.Group != "core" || core.TotalCount != 40 {
		t.Fatalf("unexpected group stat: %+v", core)
	}
	wantHit := (0.6*10 + 0.5*30) / 40
	if math.Abs(core.HitRate-wantHit) > 1e-9 {
		t.Fatalf("weighted hit rate = %v, want %v", core.HitRate, wantHit)
	}
	wantMAE := (20.0*10 + 10.0*30) / 40
	if math.Abs(core.MeanAbsError-wantMAE) > 1e-9 {
		t.Fatalf("weighted MAE = %v, want %v", core.MeanAbsError, wantMAE)
	}
}

func TestStateRestoredFromSnapshots(t *testing.T) {
	store := newFakeStore()
	prices := &fakePrices{prices: map[string]map[string]float64{}}

	first := NewService(store, prices, nopMetrics{}, testLogger(t))
	first.Enqueue(context.Background(), &models.Event{
		ID:          "ev-1",
		Scope:       models.ScopeBIST,
		Symbol:      "THYAO",
		EventType:   models.TypeKarUyarisi,
		HorizonHint: models.HorizonShortTerm,
		PublishedAt: time.Now(),
		FinalScore:  60,
	})

	second := NewService(store, prices, nopMetrics{}, testLogger(t))
	if got := second.PendingCount(); got != 1 {
		t.Fatalf("pending not restored: %d", got)
	}
}

func TestMalformedSnapshotStartsEmpty(t *testing.T) {
	store := newFakeStore()
	store.blobs[profilesKey] = []byte("{not json")
	store.blobs[pendingKey] = []byte("also not json")

	s := NewService(store, &fakePrices{prices: map[string]map[string]float64{}}, nopMetrics{}, testLogger(t))
	if got := s.AdjustedScore(70, models.ScopeBIST, models.TypeKarUyarisi, nil); got != 70 {
		t.Fatalf("expected neutral fallback, got %v", got)
	}
	if s.PendingCount() != 0 {
		t.Fatalf("expected empty pending")
	}
}
