package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"budgettable/internal/core"
	"budgettable/internal/log"
	"budgettable/internal/middleware/ratelimit"
	"budgettable/internal/middleware/security"
	"budgettable/internal/middleware/trace"
	"budgettable/internal/notify"
)

const requestTimeout = 60 * time.Second

// TableService is the application surface the handlers drive.
type TableService interface {
	GetTable(ctx context.Context) (core.Table, error)
	InitializeSeed(ctx context.Context) (bool, error)
	AddPeriod(ctx context.Context, name string) (core.Period, error)
	DeletePeriod(ctx context.Context, id int64) error
	AddRow(ctx context.Context, in core.NewRow) (core.RowNode, error)
	UpdateRowFields(ctx context.Context, id int64, patch core.RowPatch) (core.Row, error)
	DeleteRow(ctx context.Context, id int64) error
	SetCellValue(ctx context.Context, rowID, periodID int64, value *float64) (core.Cell, error)
	Ping(ctx context.Context) error
}

// Options tune the server. Zero values are usable.
type Options struct {
	Logger            *log.Logger
	AllowedOrigins    []string
	TrustedProxies    []string
	RequestsPerMinute int
	// NotifyStats exposes the change dispatcher counters on /metrics.
	NotifyStats func() notify.Stats
}

// Server is the HTTP front of the table service.
type Server struct {
	http.Server
	table  TableService
	logger *log.Logger
	sl     *log.StructuredLogger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	notifyStats      func() notify.Stats
	started          time.Time

	shutdownOnce sync.Once
}

// NewServer configures middleware and routes, returning a ready-to-run server.
func NewServer(addr string, table TableService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		table:            table,
		logger:           logger,
		sl:               log.NewStructuredLogger(logger),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		notifyStats:      opts.NotifyStats,
		started:          time.Now(),
	}

	r := chi.NewRouter()
	s.setupMiddleware(r, opts.AllowedOrigins)
	s.setupRoutes(r)
	s.Handler = r

	return s
}

func (s *Server) setupMiddleware(r *chi.Mux, allowedOrigins []string) {
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(s.logger))
	r.Use(s.traceMiddleware.Middleware)
	r.Use(s.securityDetector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(corsMiddleware(allowedOrigins))
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(requestTimeout))
}

func (s *Server) setupRoutes(r *chi.Mux) {
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "Not Found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "Method Not Allowed").Write(w)
	})

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api/table", func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited,
			http.MethodGet, http.MethodHead, http.MethodOptions))

		r.Get("/", s.handleGetTable)
		r.Post("/init", s.handleInit)

		r.Post("/periods", s.handleAddPeriod)
		r.Delete("/periods/{id}", s.handleDeletePeriod)

		r.Post("/rows", s.handleAddRow)
		r.Put("/rows/{id}", s.handleUpdateRow)
		r.Delete("/rows/{id}", s.handleDeleteRow)

		r.Put("/cells/{row_id}/{period_id}", s.handleSetCell)
	})
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
