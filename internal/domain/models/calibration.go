package models

import "time"

// ScoreBucket tracks prediction accuracy for one fixed score range [Min,Max].
// All fields are running means updated incrementally.
type ScoreBucket struct {
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Count        int     `json:"count"`
	PredictedAvg float64 `json:"predictedAvg"`
	RealizedAvg  float64 `json:"realizedAvg"`
	MeanAbsError float64 `json:"meanAbsError"`
	HitRate      float64 `json:"hitRate"`
}

// Contains reports whether score falls inside the bucket range. Ranges are
// half-open [min,max) except the top bucket, which includes 100.
func (b *ScoreBucket) Contains(score float64) bool {
	if score < b.Min {
		return false
	}
	if b.Max >= 100 {
		return score <= b.Max
	}
	return score < b.Max
}

// Update folds one resolved outcome into the bucket's running means.
func (b *ScoreBucket) Update(predicted, realized float64, hit bool) {
	n := float64(b.Count)
	b.PredictedAvg = (b.PredictedAvg*n + predicted) / (n + 1)
	b.RealizedAvg = (b.RealizedAvg*n + realized) / (n + 1)
	diff := predicted - realized
	if diff < 0 {
		diff = -diff
	}
	b.MeanAbsError = (b.MeanAbsError*n + diff) / (n + 1)
	hv := 0.0
	if hit {
		hv = 1.0
	}
	b.HitRate = (b.HitRate*n + hv) / (n + 1)
	b.Count++
}

// DefaultBuckets seeds the five fixed ranges with midpoint averages and a
// neutral hit rate so sparse data cannot destabilize blending.
func DefaultBuckets() []ScoreBucket {
	return []ScoreBucket{
		{Min: 0, Max: 20, PredictedAvg: 10, RealizedAvg: 10, HitRate: 0.5},
		{Min: 20, Max: 40, PredictedAvg: 30, RealizedAvg: 30, HitRate: 0.5},
		{Min: 40, Max: 60, PredictedAvg: 50, RealizedAvg: 50, HitRate: 0.5},
		{Min: 60, Max: 80, PredictedAvg: 70, RealizedAvg: 70, HitRate: 0.5},
		{Min: 80, Max: 100, PredictedAvg: 90, RealizedAvg: 90, HitRate: 0.5},
	}
}

// Bounds on the learned correction parameters. The update step clamps into
// these ranges, not just validates.
const (
	MultiplierMin = 0.6
	MultiplierMax = 1.25
	BiasMin       = -15.0
	BiasMax       = 15.0
)

// CalibrationProfile is the learned correction for one scope|eventType[|group]
// key. Created lazily with neutral defaults; mutated only by the evaluator.
type CalibrationProfile struct {
	Multiplier  float64       `json:"multiplier"`
	Bias        float64       `json:"bias"`
	Buckets     []ScoreBucket `json:"buckets"`
	TotalCount  int           `json:"totalCount"`
	HitRate     float64       `json:"hitRate"`
	LastUpdated *time.Time    `json:"lastUpdated,omitempty"`
}

// NewCalibrationProfile returns a neutral profile: adjustment is identity
// until outcomes accumulate.
func NewCalibrationProfile() *CalibrationProfile {
	return &CalibrationProfile{
		Multiplier: 1.0,
		Bias:       0.0,
		Buckets:    DefaultBuckets(),
		HitRate:    0.5,
	}
}

// Bucket returns the bucket containing score, or nil.
func (p *CalibrationProfile) Bucket(score float64) *ScoreBucket {
	for i := range p.Buckets {
		if p.Buckets[i].Contains(score) {
			return &p.Buckets[i]
		}
	}
	return nil
}

// RecordOutcome bumps the profile-level counters and the bucket selected by
// the predicted score.
func (p *CalibrationProfile) RecordOutcome(predicted, realized float64, hit bool, at time.Time) {
	p.TotalCount++
	hv := 0.0
	if hit {
		hv = 1.0
	}
	p.HitRate = (p.HitRate*float64(p.TotalCount-1) + hv) / float64(p.TotalCount)
	p.LastUpdated = &at

	if b := p.Bucket(predicted); b != nil {
		b.Update(predicted, realized, hit)
	}
}

// MeanAbsError is the bucket-count-weighted mean absolute error.
func (p *CalibrationProfile) MeanAbsError() float64 {
	total := 0
	for i := range p.Buckets {
		total += p.Buckets[i].Count
	}
	if total == 0 {
		return 0
	}
	weighted := 0.0
	for i := range p.Buckets {
		weighted += p.Buckets[i].MeanAbsError * float64(p.Buckets[i].Count)
	}
	return weighted / float64(total)
}

// ScoreSign maps a 0-100 score to a directional sign: +1 at >=55, -1 at <=45,
// 0 in the neutral band.
func ScoreSign(score float64) int {
	if score >= 55 {
		return 1
	}
	if score <= 45 {
		return -1
	}
	return 0
}

// PendingCalibrationItem is a scored-but-unverified event waiting for enough
// market history to resolve its realized outcome.
type PendingCalibrationItem struct {
	EventID        string     `json:"eventId"`
	Scope          EventScope `json:"scope"`
	EventType      EventType  `json:"eventType"`
	Symbol         string     `json:"symbol"`
	PublishedAt    time.Time  `json:"publishedAt"`
	PredictedScore float64    `json:"predictedScore"`
	Polarity       Polarity   `json:"polarity,omitempty"`
	HorizonHint    Horizon    `json:"horizonHint"`
	Group          string     `json:"calibrationGroup,omitempty"`
}

// CalibrationOutcome holds the realized abnormal returns for one pending item.
// The secondary horizon, when it resolved, takes precedence over the primary.
type CalibrationOutcome struct {
	ARPrimary   float64
	ARSecondary *float64
	Benchmark   string
}

// Realized returns the abnormal return to calibrate against.
func (o CalibrationOutcome) Realized() float64 {
	if o.ARSecondary != nil {
		return *o.ARSecondary
	}
	return o.ARPrimary
}

// ResolvedOutcome is the full record of a single successful evaluation, kept
// for the outcome history sink and the outcomes topic.
type ResolvedOutcome struct {
	EventID        string     `json:"eventId"`
	Scope          EventScope `json:"scope"`
	EventType      EventType  `json:"eventType"`
	Symbol         string     `json:"symbol"`
	Group          string     `json:"calibrationGroup,omitempty"`
	Benchmark      string     `json:"benchmark"`
	PublishedAt    time.Time  `json:"publishedAt"`
	EvaluatedAt    time.Time  `json:"evaluatedAt"`
	PredictedScore float64    `json:"predictedScore"`
	RealizedScore  float64    `json:"realizedScore"`
	AbnormalReturn float64    `json:"abnormalReturn"`
	Hit            bool       `json:"hit"`
}

// CalibrationSummary is the read-only view of one profile plus its evaluation
// parameters, for diagnostics display.
type CalibrationSummary struct {
	Multiplier          float64    `json:"multiplier"`
	Bias                float64    `json:"bias"`
	TotalCount          int        `json:"totalCount"`
	HitRate             float64    `json:"hitRate"`
	MeanAbsError        float64    `json:"meanAbsError"`
	LastUpdated         *time.Time `json:"lastUpdated,omitempty"`
	BenchmarkCandidates []string   `json:"benchmarkCandidates"`
	PrimaryDays         int        `json:"primaryDays"`
	SecondaryDays       int        `json:"secondaryDays"`
	Group               string     `json:"calibrationGroup,omitempty"`
}

// GroupCalibrationStat aggregates calibration health across all profiles
// sharing one group tag, count-weighted.
type GroupCalibrationStat struct {
	Group        string     `json:"group"`
	TotalCount   int        `json:"totalCount"`
	HitRate      float64    `json:"hitRate"`
	MeanAbsError float64    `json:"meanAbsError"`
	LastUpdated  *time.Time `json:"lastUpdated,omitempty"`
}
