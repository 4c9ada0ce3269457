package scoring

import (
	"math"
	"testing"
	"time"

	"hermes/internal/domain/models"
)

func TestScoreFreshProfitWarning(t *testing.T) {
	now := time.Now()
	got := Score(Input{
		Scope:             models.ScopeBIST,
		EventType:         models.TypeKarUyarisi,
		Severity:          80,
		Confidence:        0.8,
		SourceReliability: 90,
		Horizon:           models.HorizonShortTerm,
		PublishedAt:       now,
		AnalysisAt:        now,
	})
	// 80 * 0.8 * 0.8 = 51.2, * 0.9 reliability, delay 1.0, decay 1.0, risk 1.0
	want := 80 * 0.8 * 0.8 * 0.9
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestScoreRumorFlagLowersScore(t *testing.T) {
	now := time.Now()
	in := Input{
		Scope:             models.ScopeBIST,
		EventType:         models.TypeKarUyarisi,
		Severity:          80,
		Confidence:        0.8,
		SourceReliability: 90,
		Horizon:           models.HorizonShortTerm,
		PublishedAt:       now,
		AnalysisAt:        now,
	}
	clean := Score(in)
	in.Flags = []models.RiskFlag{models.FlagRumor}
	flagged := Score(in)
	if math.Abs(flagged-clean*0.85) > 1e-9 {
		t.Fatalf("rumor flag: got %v want %v", flagged, clean*0.85)
	}
}

func TestScoreRiskFlagsCompound(t *testing.T) {
	now := time.Now()
	in := Input{
		Scope:             models.ScopeGlobal,
		EventType:         models.TypeEarningsSurprise,
		Severity:          90,
		Confidence:        0.9,
		SourceReliability: 80,
		Horizon:           models.HorizonShortTerm,
		PublishedAt:       now,
		AnalysisAt:        now,
	}
	in.Flags = []models.RiskFlag{models.FlagRumor}
	one := Score(in)
	in.Flags = []models.RiskFlag{models.FlagRumor, models.FlagPricedIn}
	two := Score(in)
	if two >= one {
		t.Fatalf("expected compounding penalty: one=%v two=%v", one, two)
	}
}

func TestScoreBounded(t *testing.T) {
	now := time.Now()
	cases := []Input{
		{Scope: models.ScopeGlobal, EventType: models.TypeEarningsSurprise, Severity: 1000, Confidence: 5, SourceReliability: 500, Horizon: models.HorizonIntraday, PublishedAt: now, AnalysisAt: now, ExtraMultiplier: 10},
		{Scope: models.ScopeBIST, EventType: models.TypeKurRiski, Severity: -50, Confidence: -1, SourceReliability: -10, Horizon: models.HorizonMultiweek, PublishedAt: now.Add(-30 * 24 * time.Hour), AnalysisAt: now},
		{Scope: models.ScopeGlobal, EventType: "unknown_type", Severity: 50, Confidence: 0.5, SourceReliability: 50, Horizon: models.HorizonShortTerm, PublishedAt: now, AnalysisAt: now},
	}
	for i, in := range cases {
		got := Score(in)
		if got < 0 || got > 100 {
			t.Fatalf("case %d: score %v out of [0,100]", i, got)
		}
	}
}

func TestScoreIdempotent(t *testing.T) {
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	in := Input{
		Scope:             models.ScopeBIST,
		EventType:         models.TypeIhaleKazandi,
		Severity:          70,
		Confidence:        0.7,
		SourceReliability: 85,
		Horizon:           models.HorizonMultiweek,
		PublishedAt:       at.Add(-2 * time.Hour),
		AnalysisAt:        at,
	}
	if a, b := Score(in), Score(in); a != b {
		t.Fatalf("score not deterministic: %v vs %v", a, b)
	}
}

func TestUnknownTypeDefaultsTo50(t *testing.T) {
	if w := BaseWeight(models.ScopeGlobal, "no_such_type"); w != 50 {
		t.Fatalf("unknown type weight: got %v", w)
	}
	if w := BaseWeight(models.ScopeBIST, models.TypeEarningsSurprise); w != 50 {
		t.Fatalf("cross-scope lookup should default: got %v", w)
	}
}

func TestDelayFactorSteps(t *testing.T) {
	cases := []struct {
		age  float64
		want float64
	}{
		{0, 1.0}, {14.9, 1.0}, {15, 0.9}, {59, 0.9}, {60, 0.8},
		{179, 0.8}, {180, 0.7}, {1439, 0.7}, {1440, 0.6}, {100000, 0.6},
	}
	for _, c := range cases {
		if got := DelayFactor(c.age); got != c.want {
			t.Fatalf("DelayFactor(%v) = %v, want %v", c.age, got, c.want)
		}
	}
}

func TestTimeDecayMonotonic(t *testing.T) {
	horizons := []models.Horizon{models.HorizonIntraday, models.HorizonShortTerm, models.HorizonMultiweek}
	for _, h := range horizons {
		prev := 1.1
		for age := 0.0; age <= 14*24*60; age += 60 {
			d := TimeDecay(h, age)
			if d > prev {
				t.Fatalf("decay increased for %s at age %v: %v > %v", h, age, d, prev)
			}
			prev = d
		}
	}
}

func TestTimeDecayHorizonOrdering(t *testing.T) {
	for age := 0.0; age <= 14*24*60; age += 30 {
		intraday := TimeDecay(models.HorizonIntraday, age)
		short := TimeDecay(models.HorizonShortTerm, age)
		multi := TimeDecay(models.HorizonMultiweek, age)
		if multi < short || short < intraday {
			t.Fatalf("horizon ordering broken at age %v: %v %v %v", age, intraday, short, multi)
		}
	}
}

func TestTimeDecayFloors(t *testing.T) {
	const week = 7 * 24 * 60.0
	if d := TimeDecay(models.HorizonIntraday, 10*week); d != 0.5 {
		t.Fatalf("intraday floor: got %v", d)
	}
	if d := TimeDecay(models.HorizonShortTerm, 10*week); d != 0.6 {
		t.Fatalf("short-term floor: got %v", d)
	}
	if d := TimeDecay(models.HorizonMultiweek, 10*week); d != 0.7 {
		t.Fatalf("multiweek floor: got %v", d)
	}
}
