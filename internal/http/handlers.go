package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"ledgerq/internal/core"
	"ledgerq/internal/log"
)

// handleQuery runs one natural-language query. Domain failures (parse
// errors, archive violations, ambiguity) are answers, not transport
// errors, so they come back as 200; only internal failures are 500.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := ParseQueryRequest(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	today, err := ParseToday(req.Today, s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	atomic.AddInt64(&s.metrics.queries, 1)
	requestID := log.RequestID(ctx)
	resp := s.engine.SubmitQuery(ctx, req.Text, core.RequestContext{
		Today:     today,
		Now:       s.now(),
		RequestID: requestID,
	})

	status := http.StatusOK
	if resp.Result.Err != nil && resp.Result.Err.Kind == core.KindInternal {
		atomic.AddInt64(&s.metrics.failures, 1)
		status = http.StatusInternalServerError
	}
	NewResponse().
		Status(status).
		JSON(toQueryResponse(requestID, resp)).
		Write(w)
}

// handleMonth returns the overview of /api/months/{YYYY-MM}. The optional
// today query parameter moves the archive boundary.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	month, err := core.ParseMonthKey(r.PathValue("month"))
	if err != nil {
		BadRequestError("month must be YYYY-MM").Write(w)
		return
	}
	today, err := ParseToday(r.URL.Query().Get("today"), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.MonthTimeout)
	defer cancel()
	ov, err := s.engine.MonthOverview(ctx, month, core.RequestContext{Today: today, RequestID: log.RequestID(ctx)})
	if err != nil {
		atomic.AddInt64(&s.metrics.failures, 1)
		s.logger.ErrorContext(ctx, "Month overview failed", log.FieldMonth, month.String(), log.FieldError, err)
		InternalServerError("Could not load that month.").Write(w)
		return
	}
	NewResponse().JSON(toOverviewResponse(month, ov)).Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports traffic and throttling counters alongside readiness.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	rl := s.limiter.GetMetrics()
	sec := s.detector.GetMetrics()
	NewResponse().JSON(map[string]any{
		"status":    "ready",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks": map[string]any{
			"queries":  atomic.LoadInt64(&s.metrics.queries),
			"failures": atomic.LoadInt64(&s.metrics.failures),
			"rate_limiter": map[string]any{
				"active_clients": rl.ClientCount,
				"rejected":       rl.TotalHits,
			},
			"suspicious_requests": sec.SuspiciousRequests,
		},
	}).Write(w)
}
