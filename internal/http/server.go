package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"blockbudget/internal/budget"
	"blockbudget/internal/cache"
	"blockbudget/internal/core"
	"blockbudget/internal/log"
	"blockbudget/internal/middleware/ratelimit"
	"blockbudget/internal/middleware/security"
	"blockbudget/internal/middleware/trace"
	"blockbudget/internal/services"
)

const (
	headerUserID       = "X-User-ID"
	analysisCacheSize  = 100
	analysisCacheTTL   = 5 * time.Minute
	cacheCleanupPeriod = time.Minute
	maxBodyBytes       = 1 << 20
)

// Budget is the part of *services.BudgetService the API exposes.
type Budget interface {
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	CreateCategory(ctx context.Context, userID, name, budgetStr string) (core.Category, error)
	UpdateCategory(ctx context.Context, userID, id string, patch services.CategoryPatch) (core.Category, error)
	ArchiveCategory(ctx context.Context, userID, id string) (core.Category, error)
	UnarchiveCategory(ctx context.Context, userID, id string) (core.Category, error)
	DeleteCategory(ctx context.Context, userID, id string) error

	ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	RecordExpense(ctx context.Context, userID string, in services.ExpenseInput) (core.Expense, error)
	DeleteExpense(ctx context.Context, userID, id string) error

	ListRecurring(ctx context.Context, userID string) ([]core.RecurringRule, error)
	CreateRecurring(ctx context.Context, userID string, in services.RecurringInput) (core.RecurringRule, error)
	ToggleRecurring(ctx context.Context, userID, id string) (core.RecurringRule, error)
	DeleteRecurring(ctx context.Context, userID, id string) error

	GetIncome(ctx context.Context, userID string) (*core.Money, error)
	SetIncome(ctx context.Context, userID, raw string) (*core.Money, error)

	AnalyzeMonth(ctx context.Context, userID string, month core.Month) (budget.Analysis, error)
	CurrentMonth() core.Month
	ExportCSV(ctx context.Context, w io.Writer, userID string) error
}

type Options struct {
	RateLimitPerMinute int
	// Ready backs /readyz. Nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
}

type Server struct {
	http.Server
	budget Budget
	ready  func(ctx context.Context) error

	analysisCache *analysisCache
	cacheManager  *cache.Manager
	limiter       *ratelimit.Limiter
	detector      *security.Detector
	tracer        *trace.Middleware
}

func NewServer(addr string, b Budget, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}

	s := &Server{
		budget:        b,
		ready:         opts.Ready,
		analysisCache: newAnalysisCache(analysisCacheSize, analysisCacheTTL),
		cacheManager:  cache.NewManager(),
		limiter:       ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:      security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)
	s.cacheManager.Register(s.analysisCache.lru)
	s.cacheManager.StartCleanup(cacheCleanupPeriod)

	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(log.Middleware(logger, trace.RequestID))
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
		}))
		r.Use(requireUser)
		r.Use(s.invalidateOnWrite)

		r.Get("/categories", s.handleListCategories)
		r.Post("/categories", s.handleCreateCategory)
		r.Patch("/categories/{id}", s.handleUpdateCategory)
		r.Delete("/categories/{id}", s.handleDeleteCategory)
		r.Post("/categories/{id}/archive", s.handleArchiveCategory)
		r.Post("/categories/{id}/unarchive", s.handleUnarchiveCategory)

		r.Get("/expenses", s.handleListExpenses)
		r.Post("/expenses", s.handleRecordExpense)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)

		r.Get("/recurring", s.handleListRecurring)
		r.Post("/recurring", s.handleCreateRecurring)
		r.Post("/recurring/{id}/toggle", s.handleToggleRecurring)
		r.Delete("/recurring/{id}", s.handleDeleteRecurring)

		r.Get("/income", s.handleGetIncome)
		r.Put("/income", s.handleSetIncome)

		r.Get("/analysis", s.handleAnalysis)
		r.Get("/export.csv", s.handleExportCSV)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops accepting requests, then the background cleanups.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.limiter.Stop()
	s.cacheManager.Stop()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"requests":            s.tracer.Metrics(),
		"suspicious_requests": s.detector.SuspiciousRequests(),
		"rate_limit_clients":  s.limiter.ActiveClients(),
		"analysis_cache_size": s.analysisCache.size(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type userIDKey struct{}

// requireUser rejects requests without an X-User-ID header.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerUserID))
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + headerUserID + " header"})
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, id)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey{}).(string)
	return id
}

// invalidateOnWrite drops the cached analyses of the user after every
// successful mutating request.
func (s *Server) invalidateOnWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		if sw.status < http.StatusBadRequest {
			if n := s.analysisCache.invalidate(userID(r)); n > 0 {
				log.FromContext(r.Context()).DebugContext(r.Context(), "Invalidated cached analyses", "count", n)
			}
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
