package api

import (
	"time"

	models "hermes/internal/domain/models"
	"hermes/internal/service/ratelimit"
	"hermes/internal/services/calibration"
	"hermes/internal/services/delaystats"
	"hermes/internal/services/scoring"
	"hermes/internal/usecase"
	xhttp "hermes/pkg/http"
	xlogger "hermes/pkg/logger"

	"github.com/labstack/echo/v4"
)

// EventsEchoHandler exposes the scoring and calibration engine over HTTP.
type EventsEchoHandler struct {
	logger *xlogger.Logger
	proc   *usecase.EventProcessor
	calib  *calibration.Service
	delays *delaystats.Service
	rl     *ratelimit.Limiter
}

func NewEventsEchoHandler(
	logger *xlogger.Logger,
	proc *usecase.EventProcessor,
	calib *calibration.Service,
	delays *delaystats.Service,
) *EventsEchoHandler {
	return &EventsEchoHandler{logger: logger, proc: proc, calib: calib, delays: delays, rl: ratelimit.New()}
}

func (h *EventsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/events", h.IngestEvent, h.rateLimit("events", 20, 10))
	g.POST("/score", h.Score, h.rateLimit("score", 20, 10))
	g.POST("/adjust", h.Adjust, h.rateLimit("adjust", 20, 10))
	g.POST("/calibration/sweep", h.Sweep, h.rateLimit("sweep", 2, 0.2))
	g.GET("/calibration/summary", h.CalibrationSummary)
	g.GET("/calibration/groups", h.GroupStats)
	g.GET("/delay/summary", h.DelaySummary)
	g.GET("/delay/top", h.TopSources)
	g.GET("/diagnostics/logs", h.DiagnosticsLogs)
}

// rateLimit applies a per-client token bucket to one endpoint.
func (h *EventsEchoHandler) rateLimit(endpoint string, capacity, refillPerSec float64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !h.rl.Allow(c.RealIP()+":"+endpoint, capacity, refillPerSec) {
				h.logger.Warn("rate limited", xlogger.String("endpoint", endpoint), xlogger.String("remote", c.RealIP()))
				return echo.NewHTTPError(429, "rate limited")
			}
			return next(c)
		}
	}
}

// Health reports liveness and the calibration queue depth.
func (h *EventsEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":  "ok",
		"pending": h.calib.PendingCount(),
	})
}

// IngestEvent runs the full loop: score, calibrate, record delay, enqueue.
func (h *EventsEchoHandler) IngestEvent(c echo.Context) error {
	req := &models.EventRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	event, err := toDomainEvent(req)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	if err := h.proc.Process(c.Request().Context(), event); err != nil {
		h.logger.Error("ingest usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, &models.ScoredEventResponse{
		EventID:         event.ID,
		RawScore:        event.RawScore,
		CalibratedScore: event.FinalScore,
		Group:           calibration.Group(event.Scope, event.RiskFlags),
		Enqueued:        true,
	})
}

// Score computes raw and calibrated scores without feeding the loop.
func (h *EventsEchoHandler) Score(c echo.Context) error {
	req := &models.EventRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	event, err := toDomainEvent(req)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	raw := scoring.ScoreEvent(event, time.Now())
	adjusted := h.calib.AdjustedScore(raw, event.Scope, event.EventType, event.RiskFlags)
	return xhttp.SuccessResponse(c, &models.ScoredEventResponse{
		EventID:         event.ID,
		RawScore:        raw,
		CalibratedScore: adjusted,
		Group:           calibration.Group(event.Scope, event.RiskFlags),
	})
}

// Adjust applies the calibration profile to an externally computed score.
func (h *EventsEchoHandler) Adjust(c echo.Context) error {
	req := &models.AdjustRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	scope := models.EventScope(req.Scope)
	flags := toRiskFlags(req.RiskFlags)
	adjusted := h.calib.AdjustedScore(req.Score, scope, models.EventType(req.EventType), flags)
	return xhttp.SuccessResponse(c, &models.ScoredEventResponse{
		RawScore:        req.Score,
		CalibratedScore: adjusted,
		Group:           calibration.Group(scope, flags),
	})
}

// Sweep retries every pending outcome evaluation once.
func (h *EventsEchoHandler) Sweep(c echo.Context) error {
	resolved := h.calib.ProcessPendingEvents(c.Request().Context())
	return xhttp.SuccessResponse(c, &models.SweepResponse{
		Resolved: resolved,
		Pending:  h.calib.PendingCount(),
	})
}

func (h *EventsEchoHandler) CalibrationSummary(c echo.Context) error {
	req := &models.SummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	summary := h.calib.Summary(
		models.EventScope(req.Scope),
		models.EventType(req.EventType),
		models.Horizon(req.HorizonHint),
		toRiskFlags(req.RiskFlags),
	)
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, summary)
}

func (h *EventsEchoHandler) GroupStats(c echo.Context) error {
	req := &models.GroupStatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.calib.GroupStats(req.MinCount))
}

func (h *EventsEchoHandler) DelaySummary(c echo.Context) error {
	req := &models.DelaySummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Scope != "" {
		scope := models.EventScope(req.Scope)
		return xhttp.SuccessResponse(c, map[string]interface{}{
			"summary":     h.delays.Summary(req.Source, scope),
			"description": h.delays.DescribeScope(req.Source, scope),
		})
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"description": h.delays.Describe(req.Source),
	})
}

func (h *EventsEchoHandler) TopSources(c echo.Context) error {
	req := &models.TopSourcesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.delays.TopSources(models.EventScope(req.Scope), req.Limit))
}

// DiagnosticsLogs returns the not-yet-flushed aggregated log entries.
func (h *EventsEchoHandler) DiagnosticsLogs(c echo.Context) error {
	collector := h.logger.Collector()
	if collector == nil {
		return xhttp.SuccessResponse(c, []xlogger.AggregatedLogEntry{})
	}
	return xhttp.SuccessResponse(c, collector.Snapshot())
}

func toDomainEvent(req *models.EventRequest) (*models.Event, error) {
	publishedAt, err := time.Parse(time.RFC3339, req.PublishedAt)
	if err != nil {
		return nil, err
	}
	return &models.Event{
		ID:                req.ID,
		Scope:             models.EventScope(req.Scope),
		Symbol:            req.Symbol,
		ArticleID:         req.ArticleID,
		Headline:          req.Headline,
		EventType:         models.EventType(req.EventType),
		Polarity:          models.Polarity(req.Polarity),
		Severity:          req.Severity,
		Confidence:        req.Confidence,
		HorizonHint:       models.Horizon(req.HorizonHint),
		RiskFlags:         toRiskFlags(req.RiskFlags),
		SourceName:        req.SourceName,
		SourceReliability: req.SourceReliability,
		PublishedAt:       publishedAt,
		CreatedAt:         time.Now(),
		ArticleURL:        req.ArticleURL,
	}, nil
}

func toRiskFlags(raw []string) []models.RiskFlag {
	flags := make([]models.RiskFlag, 0, len(raw))
	for _, f := range raw {
		flags = append(flags, models.RiskFlag(f))
	}
	return flags
}
