package delaystats

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"

	"hermes/internal/domain/models"
	xlogger "hermes/pkg/logger"
)

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

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(newFakeStore(), testLogger(t))
}

func TestRecordAndSummary(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	for _, d := range []float64{10, 20, 30} {
		s.Record(ctx, "Reuters", d, models.ScopeGlobal)
	}

	sum := s.Summary("reuters", models.ScopeGlobal)
	if sum.Count != 3 {
		t.Fatalf("count = %d", sum.Count)
	}
	if sum.AverageMinutes != 20 {
		t.Fatalf("mean = %v", sum.AverageMinutes)
	}
	if sum.P50Minutes != 20 {
		t.Fatalf("p50 = %v", sum.P50Minutes)
	}
}

func TestSourceKeyNormalized(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	s.Record(ctx, "  KAP  ", 5, models.ScopeBIST)
	s.Record(ctx, "kap", 15, models.ScopeBIST)

	if sum := s.Summary("Kap", models.ScopeBIST); sum.Count != 2 {
		t.Fatalf("case/space variants should share a window, count = %d", sum.Count)
	}
}

func TestScopesAreSeparateWindows(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	s.Record(ctx, "bloomberg", 10, models.ScopeGlobal)
	s.Record(ctx, "bloomberg", 90, models.ScopeBIST)

	if sum := s.Summary("bloomberg", models.ScopeGlobal); sum.Count != 1 || sum.AverageMinutes != 10 {
		t.Fatalf("global window polluted: %+v", sum)
	}
	if sum := s.Summary("bloomberg", models.ScopeBIST); sum.Count != 1 || sum.AverageMinutes != 90 {
		t.Fatalf("bist window polluted: %+v", sum)
	}
}

func TestInvalidSamplesIgnored(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	s.Record(ctx, "x", -1, models.ScopeGlobal)
	s.Record(ctx, "x", math.NaN(), models.ScopeGlobal)
	s.Record(ctx, "x", math.Inf(1), models.ScopeGlobal)

	if sum := s.Summary("x", models.ScopeGlobal); sum.Count != 0 {
		t.Fatalf("invalid samples kept: %d", sum.Count)
	}
}

func TestWindowCapsAtMostRecent(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	for i := 0; i < maxSamplesPerSource+1; i++ {
		s.Record(ctx, "wire", float64(i), models.ScopeGlobal)
	}

	sum := s.Summary("wire", models.ScopeGlobal)
	if sum.Count != maxSamplesPerSource {
		t.Fatalf("count = %d, want %d", sum.Count, maxSamplesPerSource)
	}
	// Sample 0 was evicted: the window holds 1..120, mean 60.5.
	if sum.AverageMinutes != 60.5 {
		t.Fatalf("mean = %v, oldest sample not evicted", sum.AverageMinutes)
	}
}

func TestPercentileRanks(t *testing.T) {
	samples := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if got := percentile(samples, 50); got != 50 { // rank round(0.5*9)=5
		t.Fatalf("p50 = %v", got)
	}
	if got := percentile(samples, 90); got != 90 { // rank round(0.9*9)=8
		t.Fatalf("p90 = %v", got)
	}
	if got := percentile([]float64{42}, 90); got != 42 {
		t.Fatalf("single sample p90 = %v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty p50 = %v", got)
	}
}

func TestDescribeUnknownSource(t *testing.T) {
	s := newTestService(t)
	if got := s.Describe("nobody"); got != "Yeni kaynak, veri birikiyor." {
		t.Fatalf("got %q", got)
	}
}

func TestDescribeBlendsScopes(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	// global: one sample of 10; bist: three samples of 50.
	s.Record(ctx, "aa", 10, models.ScopeGlobal)
	for i := 0; i < 3; i++ {
		s.Record(ctx, "aa", 50, models.ScopeBIST)
	}

	// weighted mean = (10*1 + 50*3) / 4 = 40; p90 = max(10, 50) = 50.
	if got := s.Describe("aa"); got != "Ort. 40 dk (P90 50 dk, 4 örnek)." {
		t.Fatalf("got %q", got)
	}
}

func TestDescribeScope(t *testing.T) {
	s := newTestService(t)
	s.Record(context.Background(), "kap", 12, models.ScopeBIST)
	if got := s.DescribeScope("kap", models.ScopeBIST); got != "Ort. 12 dk (P90 12 dk, 1 örnek)." {
		t.Fatalf("got %q", got)
	}
	if got := s.DescribeScope("kap", models.ScopeGlobal); got != "Yeni kaynak, veri birikiyor." {
		t.Fatalf("got %q", got)
	}
}

func TestTopSourcesOrderingAndLimit(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	s.Record(ctx, "slow", 100, models.ScopeGlobal)
	s.Record(ctx, "fast", 5, models.ScopeGlobal)
	s.Record(ctx, "mid", 40, models.ScopeGlobal)
	s.Record(ctx, "other-scope", 1, models.ScopeBIST)

	top := s.TopSources(models.ScopeGlobal, 2)
	if len(top) != 2 {
		t.Fatalf("limit not applied: %d", len(top))
	}
	if top[0].Source != "fast" || top[1].Source != "mid" {
		t.Fatalf("order: %q, %q", top[0].Source, top[1].Source)
	}
}

func TestTopSourcesRecentTail(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		s.Record(ctx, "wire", float64(i), models.ScopeGlobal)
	}

	top := s.TopSources(models.ScopeGlobal, 0)
	if len(top) != 1 {
		t.Fatalf("sources = %d", len(top))
	}
	recent := top[0].RecentSamples
	if len(recent) != recentSampleLimit {
		t.Fatalf("recent tail = %d samples", len(recent))
	}
	if recent[0] != 18 || recent[len(recent)-1] != 29 {
		t.Fatalf("tail should hold the newest samples: first=%v last=%v", recent[0], recent[len(recent)-1])
	}
}

func TestStateSurvivesRestart(t *testing.T) {
	store := newFakeStore()
	first := NewService(store, testLogger(t))
	first.Record(context.Background(), "kap", 7, models.ScopeBIST)

	second := NewService(store, testLogger(t))
	if sum := second.Summary("kap", models.ScopeBIST); sum.Count != 1 || sum.AverageMinutes != 7 {
		t.Fatalf("state not restored: %+v", sum)
	}
}
