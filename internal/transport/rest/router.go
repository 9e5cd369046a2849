package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/kakeibo/api"
	"github.com/frahmantamala/kakeibo/internal"
	"github.com/frahmantamala/kakeibo/internal/auth"
	"github.com/frahmantamala/kakeibo/internal/category"
	"github.com/frahmantamala/kakeibo/internal/expense"
	"github.com/frahmantamala/kakeibo/internal/transport"
	"github.com/frahmantamala/kakeibo/internal/transport/middleware"
	"github.com/frahmantamala/kakeibo/internal/transport/swagger"
	"github.com/frahmantamala/kakeibo/pkg/logger"
	"github.com/frahmantamala/kakeibo/pkg/ratelimit"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

type Dependencies struct {
	AuthHandler     *auth.Handler
	ExpenseHandler  *expense.Handler
	CategoryHandler *category.Handler

	// HealthChecks are reported by GET /api/health, keyed by component.
	HealthChecks map[string]CheckFunc

	GlobalLimiter *ratelimit.Limiter
	LoginLimiter  *ratelimit.Limiter

	AllowedOrigins []string

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	Logger *slog.Logger
}

func NewRouter(deps Dependencies) *chi.Mux {
	router := chi.NewRouter()
	RegisterAllRoutes(router, deps)
	return router
}

func RegisterAllRoutes(router *chi.Mux, deps Dependencies) {
	lg := deps.Logger
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	healthHandler := NewHealthHandler(deps.HealthChecks)

	// Apply global middleware
	router.Use(middleware.RequestID)
	if deps.TrustProxy {
		router.Use(chiMiddleware.RealIP)
	}
	router.Use(middleware.RecoveryMiddleware(lg))
	router.Use(middleware.LoggingMiddleware(lg))
	router.Use(middleware.NewHeadersMiddleware(middleware.DefaultHeadersConfig()).Middleware)
	router.Use(middleware.CORS(deps.AllowedOrigins))
	if deps.GlobalLimiter != nil {
		router.Use(deps.GlobalLimiter.Middleware(ratelimit.ClientIP, rejectWith(internal.ErrTooManyRequests, lg)))
	}
	if deps.AuthHandler != nil {
		router.Use(deps.AuthHandler.SessionMiddleware)
	}

	notFound := func(w http.ResponseWriter, r *http.Request) {
		transport.WriteAppError(w, internal.ErrRouteNotFound, lg)
	}
	router.NotFound(notFound)
	router.MethodNotAllowed(notFound)

	router.Get("/openapi.yml", api.Handler)
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if deps.AuthHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Get("/status", deps.AuthHandler.Status)
				if deps.LoginLimiter != nil {
					sr.With(deps.LoginLimiter.Middleware(ratelimit.ClientIP, rejectWith(internal.ErrTooManyLogins, lg))).
						Post("/login", deps.AuthHandler.Login)
				} else {
					sr.Post("/login", deps.AuthHandler.Login)
				}
				sr.Post("/logout", deps.AuthHandler.Logout)
			})
		}

		if deps.AuthHandler != nil && deps.ExpenseHandler != nil {
			r.Route("/expenses", func(er chi.Router) {
				er.Use(deps.AuthHandler.RequireAuth)

				er.Get("/", deps.ExpenseHandler.ListExpenses)
				er.Post("/", deps.ExpenseHandler.CreateExpense)
				er.Put("/{id}", deps.ExpenseHandler.UpdateExpense)
				er.Delete("/{id}", deps.ExpenseHandler.DeleteExpense)
			})
		}

		if deps.AuthHandler != nil && deps.CategoryHandler != nil {
			r.With(deps.AuthHandler.RequireAuth).Get("/categories", deps.CategoryHandler.GetCategories)
		}
	})
}

func rejectWith(appErr *internal.AppError, lg *slog.Logger) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.From(r.Context()).Warn("rate limit exceeded",
			"remote_addr", ratelimit.ClientIP(r), "path", r.URL.Path)
		transport.WriteAppError(w, appErr, lg)
	}
}
