package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	// Check storage backend
	if s.health == nil {
		checks["storage"] = "not_checked"
	} else if err := s.health.Ping(ctx); err != nil {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	if s.assist.Enabled() {
		checks["ai"] = "enabled"
	} else {
		checks["ai"] = "disabled"
	}

	caches := map[string]any{}
	for _, c := range s.caches.Stats() {
		caches[c.Name] = map[string]any{"entries": c.Entries, "hit_ratio": c.HitRatio()}
	}
	checks["cache"] = caches
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}
	checks["websocket"] = map[string]any{
		"clients": s.hub.Clients(),
	}

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.detector.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	traceMetrics := s.tracer.GetMetrics()
	aggregates := s.ledger.Aggregates()

	w.WriteHeader(http.StatusOK)

	// Write metrics in Prometheus-like format
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_response_time_microseconds Average response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP ledger_transactions Transactions currently in the ledger\n")
	fmt.Fprintf(w, "# TYPE ledger_transactions gauge\n")
	fmt.Fprintf(w, "ledger_transactions %d\n\n", aggregates.Count)

	fmt.Fprintf(w, "# HELP ledger_version Mutations applied since startup\n")
	fmt.Fprintf(w, "# TYPE ledger_version counter\n")
	fmt.Fprintf(w, "ledger_version %d\n\n", s.ledger.Version())

	fmt.Fprintf(w, "# HELP transactions_created_total Transactions created over HTTP\n")
	fmt.Fprintf(w, "# TYPE transactions_created_total counter\n")
	fmt.Fprintf(w, "transactions_created_total %d\n\n", s.appMetrics.created.Load())

	fmt.Fprintf(w, "# HELP ai_drafts_total AI drafts by outcome\n")
	fmt.Fprintf(w, "# TYPE ai_drafts_total counter\n")
	fmt.Fprintf(w, "ai_drafts_total{result=\"ok\"} %d\n", s.appMetrics.drafts.Load())
	fmt.Fprintf(w, "ai_drafts_total{result=\"unavailable\"} %d\n\n", s.appMetrics.draftsFailed.Load())

	cacheStats := s.caches.Stats()
	fmt.Fprintf(w, "# HELP cache_hits_total Total cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	for _, c := range cacheStats {
		fmt.Fprintf(w, "cache_hits_total{cache=%q} %d\n", c.Name, c.Hits)
	}
	fmt.Fprintf(w, "\n# HELP cache_misses_total Total cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	for _, c := range cacheStats {
		fmt.Fprintf(w, "cache_misses_total{cache=%q} %d\n", c.Name, c.Misses)
	}
	fmt.Fprintf(w, "\n# HELP cache_evictions_total Entries evicted to stay within size\n")
	fmt.Fprintf(w, "# TYPE cache_evictions_total counter\n")
	for _, c := range cacheStats {
		fmt.Fprintf(w, "cache_evictions_total{cache=%q} %d\n", c.Name, c.Evictions)
	}
	fmt.Fprintf(w, "\n# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	for _, c := range cacheStats {
		fmt.Fprintf(w, "cache_entries{cache=%q} %d\n", c.Name, c.Entries)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP websocket_clients Connected WebSocket clients\n")
	fmt.Fprintf(w, "# TYPE websocket_clients gauge\n")
	fmt.Fprintf(w, "websocket_clients %d\n\n", s.hub.Clients())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", time.Since(s.appMetrics.uptime).Seconds())
}
