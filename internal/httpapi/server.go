// Package httpapi serves the POS back end over HTTP with chi.
//
// Routes:
//
//	GET  /health
//	GET  /metrics
//	GET  /api/menu
//	GET  /api/stock
//	POST /api/stock/batches
//	GET  /api/orders
//	POST /api/orders                      (Idempotency-Key header optional)
//	GET  /api/orders/{orderID}
//	GET  /api/orders/{orderID}/receipt
//	GET  /api/forecast?months=N
//	GET  /api/inventory/reconcile
//
// Everything under /api requires an api_key header when keys are configured.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/roach88/pos/internal/clock"
	"github.com/roach88/pos/internal/fulfillment"
	"github.com/roach88/pos/internal/metrics"
	"github.com/roach88/pos/internal/store"
)

// IdempotencyKeyHeader names the header whose value becomes the checkout id.
const IdempotencyKeyHeader = "Idempotency-Key"

// Options tunes the router.
type Options struct {
	APIKeys        []string
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	svc     *fulfillment.Service
	store   *store.Store
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	opts    Options
}

// New creates a Server. m may be nil.
func New(svc *fulfillment.Service, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	return &Server{
		svc:     svc,
		store:   svc.Store(),
		clock:   clk,
		logger:  logger,
		metrics: m,
		opts:    opts,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(s.logger, s.metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(s.opts.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", APIKeyHeader, IdempotencyKeyHeader},
		ExposedHeaders:   []string{"X-Receipt-Digest"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(APIKeyAuth(s.opts.APIKeys, s.logger))

		r.Get("/menu", s.listMenu)
		r.Get("/stock", s.stockLevels)
		r.Post("/stock/batches", s.addBatch)

		r.Get("/orders", s.listOrders)
		r.Post("/orders", s.placeOrder)
		r.Get("/orders/{orderID}", s.getOrder)
		r.Get("/orders/{orderID}/receipt", s.getReceipt)

		r.Get("/forecast", s.forecast)
		r.Get("/inventory/reconcile", s.reconcile)
	})

	return r
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Database: "ok", Timestamp: s.clock.Now().UTC()}
	status := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", "error", err)
		resp.Status = "unhealthy"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp, s.logger)
}
