package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"mymoney/internal/backend"
	"mymoney/internal/cache"
	"mymoney/internal/core"
	applog "mymoney/internal/log"
	"mymoney/internal/middleware/ratelimit"
	"mymoney/internal/middleware/security"
	"mymoney/internal/middleware/trace"
	"mymoney/internal/services"
)

// GenerateRequester queues a bulk generation for asynchronous processing.
type GenerateRequester interface {
	PublishGenerateRequest(ctx context.Context, owner int64, year, month int) error
}

// Options tunes the server. Zero values select defaults.
type Options struct {
	Logger    *applog.Logger
	RateLimit ratelimit.Config
	// Requester enables POST /recurrences/generate?async=true.
	Requester GenerateRequester
	Now       func() time.Time
	// CatalogTTL bounds how long category and account listings are cached.
	CatalogTTL time.Duration
}

type Server struct {
	http.Server
	store     backend.Store
	engine    *services.Engine
	requester GenerateRequester
	logger    *applog.Logger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	now       func() time.Time

	categories cache.Cache[[]core.Category]
	accounts   cache.Cache[[]core.Account]
	caches     *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, store backend.Store, engine *services.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		store:     store,
		engine:    engine,
		requester: opts.Requester,
		logger:    logger,
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
		detector:  security.NewDetector(),
		now:       now,
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	s.initCatalogCache(opts.CatalogTTL)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /projection", s.withOwner(s.handleProjection))
	mux.HandleFunc("GET /transactions", s.withOwner(s.handleListTransactions))

	mux.HandleFunc("GET /recurrences", s.withOwner(s.handleListRules))
	mux.HandleFunc("POST /recurrences", s.withOwner(s.handleCreateRule))
	mux.HandleFunc("POST /recurrences/generate", s.withOwner(s.handleGenerate))
	mux.HandleFunc("GET /recurrences/{id}", s.withOwner(s.handleGetRule))
	mux.HandleFunc("PUT /recurrences/{id}", s.withOwner(s.handleUpdateRule))
	mux.HandleFunc("DELETE /recurrences/{id}", s.withOwner(s.handleDeleteRule))
	mux.HandleFunc("POST /recurrences/{id}/consolidate", s.withOwner(s.handleConsolidate))

	mux.HandleFunc("GET /categories", s.withOwner(s.handleListCategories))
	mux.HandleFunc("POST /categories", s.withOwner(s.handleCreateCategory))
	mux.HandleFunc("GET /accounts", s.withOwner(s.handleListAccounts))
	mux.HandleFunc("POST /accounts", s.withOwner(s.handleCreateAccount))

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	}, http.MethodPost, http.MethodPut, http.MethodDelete)

	var handler http.Handler = mux
	handler = limited(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = applog.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.caches.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withOwner resolves the X-Owner-ID header before calling next.
func (s *Server) withOwner(next func(http.ResponseWriter, *http.Request, int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := ParseOwner(r)
		if err != nil {
			UnauthorizedError(err.Error()).Write(w)
			return
		}
		next(w, r, owner)
	}
}

// fail logs unexpected errors and writes the mapped response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFromDomain(err)
	if resp.statusCode >= http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, nil)
	}
	resp.Write(w)
}

func (s *Server) today() time.Time {
	return s.now().UTC()
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(statusResponse{Status: "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if pinger, ok := s.store.(backend.Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pinger.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			ServiceUnavailableError("store unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Body(statusResponse{Status: "ready"}).Write(w)
}
