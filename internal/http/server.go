// Package http exposes the invoice service as a JSON API under /api/v1.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"invoicer/internal/core"
	applog "invoicer/internal/log"
	"invoicer/internal/middleware/ratelimit"
	"invoicer/internal/middleware/security"
	"invoicer/internal/middleware/trace"
	"invoicer/internal/pdf"
	"invoicer/internal/services"
	"invoicer/internal/storage"
)

// InvoiceService is the part of services.InvoiceService the API calls.
type InvoiceService interface {
	Create(ctx context.Context, rec core.InvoiceRecord) (storage.StoredInvoice, error)
	Update(ctx context.Context, id int64, rec core.InvoiceRecord) (storage.StoredInvoice, error)
	Get(ctx context.Context, id int64) (storage.StoredInvoice, error)
	List(ctx context.Context, f storage.ListFilter) ([]storage.StoredInvoice, error)
	Delete(ctx context.Context, id int64) error
	SetPaymentStatus(ctx context.Context, id int64, status core.PaymentStatus) (storage.StoredInvoice, error)
	ToggleStatus(ctx context.Context, id int64) (storage.StoredInvoice, error)
	NextNumber(ctx context.Context) string
	Totals(ctx context.Context, id int64) (core.TotalsResult, error)
	Preview(rec core.InvoiceRecord) services.Preview
	Status(rec core.InvoiceRecord) services.StatusInfo
	Summary(ctx context.Context) (core.StatusSummary, error)
	RenderPDF(ctx context.Context, id int64) (*pdf.Document, error)
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	svc      InvoiceService
	limiter  *ratelimit.Limiter
	detector *security.Detector
	logger   *applog.Logger
	now      func() time.Time

	authUser, authPass string
	ratePerMinute      int

	shutdownOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithAuth enables basic authentication.
func WithAuth(user, pass string) Option {
	return func(s *Server) { s.authUser, s.authPass = user, pass }
}

// WithRateLimit caps write requests per client and minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.ratePerMinute = perMinute }
}

func WithLogger(logger *applog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc InvoiceService, opts ...Option) *Server {
	s := &Server{
		svc:      svc,
		detector: security.NewDetector(),
		logger:   applog.Default(applog.ComponentHTTP),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: s.ratePerMinute})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(trace.NewMiddleware(s.logger, s.detector.ClientIP).Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware(s.logger.WithComponent(applog.ComponentSecurity)))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(basicAuth(s.authUser, s.authPass, s.now, s.logger.WithComponent(applog.ComponentAuth)))
		r.Use(s.limiter.Middleware(s.detector.ClientIP, s.onRateLimit,
			http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete))

		r.Get("/invoices", s.handleListInvoices)
		r.Post("/invoices", s.handleCreateInvoice)
		r.Post("/invoices/preview", s.handlePreview)
		r.Get("/invoices/next-number", s.handleNextNumber)
		r.Get("/invoices/summary", s.handleSummary)
		r.Get("/invoices/{id}", s.handleGetInvoice)
		r.Put("/invoices/{id}", s.handleUpdateInvoice)
		r.Delete("/invoices/{id}", s.handleDeleteInvoice)
		r.Get("/invoices/{id}/pdf", s.handleInvoicePDF)
		r.Get("/invoices/{id}/totals", s.handleInvoiceTotals)
		r.Patch("/invoices/{id}/status", s.handleSetStatus)
		r.Post("/invoices/{id}/toggle-status", s.handleToggleStatus)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
