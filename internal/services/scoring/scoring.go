package scoring

import (
	"time"

	"hermes/internal/domain/models"
)

// Pure event-impact scoring. No state, no side effects: out-of-range inputs
// are clamped rather than rejected, and the result is always in [0,100].

// Input carries everything the score depends on. AnalysisAt defaults to now;
// ExtraMultiplier defaults to 1.0.
type Input struct {
	Scope             models.EventScope
	EventType         models.EventType
	Severity          float64 // 0-100
	Confidence        float64 // 0-1
	SourceReliability float64 // 0-100
	Horizon           models.Horizon
	PublishedAt       time.Time
	Flags             []models.RiskFlag
	AnalysisAt        time.Time
	ExtraMultiplier   float64
}

// DelayFactor models information-value loss from ingestion latency as a step
// function of event age.
func DelayFactor(ageMinutes float64) float64 {
	switch {
	case ageMinutes < 15:
		return 1.0
	case ageMinutes < 60:
		return 0.9
	case ageMinutes < 180:
		return 0.8
	case ageMinutes < 1440:
		return 0.7
	default:
		return 0.6
	}
}

// TimeDecay is the horizon-dependent linear decay of market relevance.
// Longer horizons decay more slowly and never fall below their floor.
func TimeDecay(horizon models.Horizon, ageMinutes float64) float64 {
	hours := ageMinutes / 60.0
	switch horizon {
	case models.HorizonIntraday:
		return max(0.5, 1.0-hours/12.0)
	case models.HorizonMultiweek:
		return max(0.7, 1.0-hours/168.0)
	default: // short-term
		return max(0.6, 1.0-hours/72.0)
	}
}

// RiskPenalty compounds the multiplicative penalty of all present flags.
func RiskPenalty(flags []models.RiskFlag) float64 {
	penalty := 1.0
	for _, f := range flags {
		switch f {
		case models.FlagRumor:
			penalty *= 0.85
		case models.FlagLowReliability:
			penalty *= 0.8
		case models.FlagPricedIn:
			penalty *= 0.75
		case models.FlagRegulatoryUncertainty:
			penalty *= 0.9
		}
	}
	return penalty
}

// Score computes the 0-100 impact score for in.
func Score(in Input) float64 {
	base := BaseWeight(in.Scope, in.EventType)
	severity := clamp(in.Severity, 0, 100) / 100.0
	confidence := clamp(in.Confidence, 0, 1)
	sourceAdj := clamp(in.SourceReliability, 0, 100) / 100.0

	analysisAt := in.AnalysisAt
	if analysisAt.IsZero() {
		analysisAt = time.Now()
	}
	extra := in.ExtraMultiplier
	if extra == 0 {
		extra = 1.0
	}

	ageMinutes := max(0, analysisAt.Sub(in.PublishedAt).Minutes())
	delay := DelayFactor(ageMinutes)
	decay := TimeDecay(in.Horizon, ageMinutes)
	risk := RiskPenalty(in.Flags)

	raw := base * severity * confidence * extra
	final := raw * sourceAdj * delay * decay * risk
	return clamp(final, 0, 100)
}

// ScoreEvent scores an event at the given analysis time.
func ScoreEvent(e *models.Event, analysisAt time.Time) float64 {
	return Score(Input{
		Scope:             e.Scope,
		EventType:         e.EventType,
		Severity:          e.Severity,
		Confidence:        e.Confidence,
		SourceReliability: e.SourceReliability,
		Horizon:           e.HorizonHint,
		PublishedAt:       e.PublishedAt,
		Flags:             e.RiskFlags,
		AnalysisAt:        analysisAt,
	})
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
