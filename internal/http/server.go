// Package http exposes the ledger as a JSON API with a WebSocket feed of
// changes.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ailedger/internal/cache"
	"ailedger/internal/core"
	applog "ailedger/internal/log"
	"ailedger/internal/middleware/ratelimit"
	"ailedger/internal/middleware/security"
	"ailedger/internal/middleware/trace"
	"ailedger/internal/ports"
	"ailedger/internal/services"
)

const cacheCleanupInterval = 10 * time.Minute

// Dependencies are the services the server routes to. Health may be nil
// when the backend cannot report readiness.
type Dependencies struct {
	Ledger      *services.LedgerService
	Preferences *services.PreferencesService
	Assist      *services.AssistService
	Health      ports.HealthChecker
	Logger      *applog.Logger
	RateLimit   ratelimit.Config
	// TrustedProxies are extra CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string
}

type Server struct {
	http.Server

	ledger *services.LedgerService
	prefs  *services.PreferencesService
	assist *services.AssistService
	health ports.HealthChecker
	logger *applog.Logger

	hub      *Hub
	detector *security.Detector
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware

	// Category totals keyed by ledger version.
	statsCache *cache.LRUCache[[]core.CategoryAmount]
	caches     *cache.Manager

	appMetrics     appMetrics
	removeListener func()
	shutdownOnce   sync.Once
}

type appMetrics struct {
	uptime       time.Time
	created      atomic.Int64
	drafts       atomic.Int64
	draftsFailed atomic.Int64
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. The ledger must already be loaded.
func NewServer(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if deps.RateLimit.RequestsPerMinute <= 0 {
		deps.RateLimit = ratelimit.DefaultConfig()
	}
	assist := deps.Assist
	if assist == nil {
		assist = services.NewAssistService(nil, nil, logger.Base())
	}

	s := &Server{
		ledger:     deps.Ledger,
		prefs:      deps.Preferences,
		assist:     assist,
		health:     deps.Health,
		logger:     logger.WithComponent(applog.ComponentHTTP),
		hub:        NewHub(logger.Base()),
		detector:   security.NewDetector(),
		limiter:    ratelimit.NewLimiter(deps.RateLimit),
		statsCache: cache.NewLRUCache[[]core.CategoryAmount](16, 5*time.Minute),
		caches:     cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger),
	}
	for _, cidr := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(strings.TrimSpace(cidr)); err != nil {
			s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.appMetrics.uptime = time.Now()
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger.Base())
	s.caches.Register("categories", s.statsCache)
	s.removeListener = s.ledger.OnChange(s.hub.Publish)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions", s.handleClearTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("PATCH /api/transactions/{id}/note", s.handleUpdateNote)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/stats/categories", s.handleCategoryStats)
	mux.HandleFunc("GET /api/categories", s.handleCategories)

	mux.HandleFunc("POST /api/ai/text", s.handleDraftFromText)
	mux.HandleFunc("POST /api/ai/receipt", s.handleDraftFromReceipt)

	mux.HandleFunc("GET /api/settings/theme", s.handleGetTheme)
	mux.HandleFunc("PUT /api/settings/theme", s.handleSetTheme)
	mux.HandleFunc("POST /api/settings/theme/toggle", s.handleToggleTheme)

	mux.HandleFunc("GET /api/ws", s.handleWebSocket)

	// Outermost first: trace, security headers, detection, rate limit, log context.
	var h http.Handler = http.MaxBytesHandler(mux, MaxBodyBytes)
	h = trace.LoggerMiddleware(s.logger)(h)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(h)
	h = s.detector.Middleware(logger.Base())(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// RegisterCache adds c to the periodic cleanup run by Run and to /metrics.
func (s *Server) RegisterCache(name string, c cache.Managed) {
	s.caches.Register(name, c)
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves HTTP together with the WebSocket hub, the cache cleanup and
// the rate limiter cleanup until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.hub.Run(gctx) })
	g.Go(func() error { return s.limiter.Run(gctx) })
	g.Go(func() error { return s.caches.Run(gctx, cacheCleanupInterval) })
	g.Go(func() error {
		s.logger.Info("HTTP server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", s.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down HTTP server", applog.FieldOperation, applog.OpShutdown)
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown detaches from the ledger and stops accepting requests. WebSocket
// connections are closed by the hub when its context ends.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.removeListener != nil {
			s.removeListener()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldRequestID, trace.GetRequestID(r.Context()),
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, please try again later").Write(w)
}

// categoryTotals serves from the cache while the ledger version is unchanged.
func (s *Server) categoryTotals() []core.CategoryAmount {
	key := strconv.FormatInt(s.ledger.Version(), 10)
	if totals, ok := s.statsCache.Get(key); ok {
		return totals
	}
	totals := s.ledger.CategoryTotals()
	s.statsCache.Set(key, totals)
	return totals
}
