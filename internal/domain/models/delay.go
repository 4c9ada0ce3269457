package models

// DelayWindow is a capped ring of recent ingestion-delay samples (minutes)
// for one scope|source key. Oldest samples are evicted beyond the cap.
type DelayWindow struct {
	Samples []float64 `json:"samples"`
}

// Add appends a sample, evicting from the front beyond maxSamples.
func (w *DelayWindow) Add(v float64, maxSamples int) {
	w.Samples = append(w.Samples, v)
	if n := len(w.Samples) - maxSamples; n > 0 {
		w.Samples = w.Samples[n:]
	}
}

// DelaySummary summarizes one source's ingestion-delay window.
type DelaySummary struct {
	Count          int     `json:"count"`
	AverageMinutes float64 `json:"averageMinutes"`
	P50Minutes     float64 `json:"p50Minutes"`
	P90Minutes     float64 `json:"p90Minutes"`
}

// SourceDelayStat is one row of the per-scope source ranking.
type SourceDelayStat struct {
	Source        string       `json:"source"`
	Summary       DelaySummary `json:"summary"`
	RecentSamples []float64    `json:"recentSamples"`
}
