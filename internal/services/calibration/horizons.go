package calibration

import (
	"strings"

	"hermes/internal/domain/models"
)

// EvaluationHorizon is the pair of trading-day offsets an outcome is measured
// at. The secondary (longer) window takes precedence when it resolves.
type EvaluationHorizon struct {
	Primary   int
	Secondary int
}

// EvaluationDays returns the outcome windows for (scope, horizon). BIST
// events get longer windows for non-intraday horizons; global markets price
// news in faster.
func EvaluationDays(scope models.EventScope, horizon models.Horizon) EvaluationHorizon {
	if scope == models.ScopeBIST {
		switch horizon {
		case models.HorizonIntraday:
			return EvaluationHorizon{Primary: 1, Secondary: 2}
		case models.HorizonMultiweek:
			return EvaluationHorizon{Primary: 7, Secondary: 14}
		default:
			return EvaluationHorizon{Primary: 2, Secondary: 4}
		}
	}
	switch horizon {
	case models.HorizonIntraday:
		return EvaluationHorizon{Primary: 1, Secondary: 2}
	case models.HorizonMultiweek:
		return EvaluationHorizon{Primary: 5, Secondary: 10}
	default:
		return EvaluationHorizon{Primary: 1, Secondary: 3}
	}
}

// BenchmarkCandidates is the fixed, ordered benchmark list per scope. The
// evaluator uses the first symbol that resolves an entry price.
func BenchmarkCandidates(scope models.EventScope) []string {
	if scope == models.ScopeBIST {
		return []string{"XU100.IS", "XU030.IS", "XU050.IS"}
	}
	return []string{"SPY", "QQQ"}
}

// NormalizeSymbol appends the BIST exchange suffix when absent; global
// symbols pass through unchanged.
func NormalizeSymbol(symbol string, scope models.EventScope) string {
	if scope != models.ScopeBIST {
		return symbol
	}
	upper := strings.ToUpper(symbol)
	if strings.HasSuffix(upper, ".IS") {
		return upper
	}
	return upper + ".IS"
}

// Group resolves the calibration sub-bucket for an event. Only BIST events
// are partitioned, by reliability tier.
func Group(scope models.EventScope, flags []models.RiskFlag) string {
	if scope != models.ScopeBIST {
		return ""
	}
	for _, f := range flags {
		if f == models.FlagRumor {
			return "rumor"
		}
	}
	for _, f := range flags {
		if f == models.FlagLowReliability {
			return "lowrel"
		}
	}
	return "core"
}

// ProfileKey builds the composite store key scope|eventType[|group].
func ProfileKey(scope models.EventScope, eventType models.EventType, group string) string {
	if group == "" {
		return string(scope) + "|" + string(eventType)
	}
	return string(scope) + "|" + string(eventType) + "|" + group
}
