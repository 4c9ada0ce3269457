package models

// Requests/responses for the event scoring and calibration HTTP endpoints.
// Defined in domain for consistency and reuse.

// EventRequest is the wire form of an externally produced Event. Numeric
// ranges are validated loosely; the scoring path clamps anyway.
type EventRequest struct {
	ID                string   `json:"id"`
	Scope             string   `json:"scope" validate:"required,oneof=bist global"`
	Symbol            string   `json:"symbol" validate:"required"`
	ArticleID         string   `json:"articleId"`
	Headline          string   `json:"headline"`
	EventType         string   `json:"eventType" validate:"required"`
	Polarity          string   `json:"polarity" default:"mixed" validate:"oneof=positive negative mixed"`
	Severity          float64  `json:"severity" validate:"gte=0,lte=100"`
	Confidence        float64  `json:"confidence" validate:"gte=0,lte=1"`
	HorizonHint       string   `json:"horizonHint" default:"1-3d" validate:"oneof=intraday 1-3d multiweek"`
	RiskFlags         []string `json:"riskFlags"`
	SourceName        string   `json:"sourceName" validate:"required"`
	SourceReliability float64  `json:"sourceReliability" default:"50" validate:"gte=0,lte=100"`
	PublishedAt       string   `json:"publishedAt" validate:"required"`
	ArticleURL        string   `json:"articleUrl"`
}

// AdjustRequest asks for the calibrated form of a raw score.
type AdjustRequest struct {
	Score     float64  `json:"score" validate:"gte=0,lte=100"`
	Scope     string   `json:"scope" validate:"required,oneof=bist global"`
	EventType string   `json:"eventType" validate:"required"`
	RiskFlags []string `json:"riskFlags"`
}

// ScoredEventResponse carries both the raw and calibrated score for an event.
type ScoredEventResponse struct {
	EventID         string  `json:"eventId"`
	RawScore        float64 `json:"rawScore"`
	CalibratedScore float64 `json:"calibratedScore"`
	Group           string  `json:"calibrationGroup,omitempty"`
	Enqueued        bool    `json:"enqueued"`
}

// SummaryRequest selects the calibration profile to summarize.
type SummaryRequest struct {
	Scope       string   `query:"scope" json:"scope" validate:"required,oneof=bist global"`
	EventType   string   `query:"eventType" json:"eventType" validate:"required"`
	HorizonHint string   `query:"horizonHint" json:"horizonHint" default:"1-3d" validate:"oneof=intraday 1-3d multiweek"`
	RiskFlags   []string `query:"riskFlags" json:"riskFlags"`
}

// GroupStatsRequest filters the group-level aggregate report.
type GroupStatsRequest struct {
	MinCount int `query:"min" json:"min" default:"5" validate:"gte=1"`
}

// DelaySummaryRequest selects one source's delay statistics.
type DelaySummaryRequest struct {
	Source string `query:"source" json:"source" validate:"required"`
	Scope  string `query:"scope" json:"scope" validate:"omitempty,oneof=bist global"`
}

// TopSourcesRequest ranks sources by ascending mean ingestion delay.
type TopSourcesRequest struct {
	Scope string `query:"scope" json:"scope" validate:"required,oneof=bist global"`
	Limit int    `query:"limit" json:"limit" default:"5" validate:"gte=1,lte=50"`
}

// SweepResponse reports the result of one pending-queue sweep.
type SweepResponse struct {
	Resolved int `json:"resolved"`
	Pending  int `json:"pending"`
}
