package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/kakeibo/internal"
	"github.com/frahmantamala/kakeibo/internal/transport"
	"github.com/frahmantamala/kakeibo/pkg/logger"
)

// RecoveryMiddleware turns a panic into a generic 500. The panic value only
// reaches the log.
func RecoveryMiddleware(lg *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				reqLogger := lg
				if reqLogger == nil {
					reqLogger = logger.From(r.Context())
				}
				reqLogger.Error("panic recovered",
					"error", rec,
					"trace_id", TraceID(r.Context()),
					"method", r.Method,
					"url", r.URL.String(),
					"stack", string(debug.Stack()))

				transport.WriteJSON(w, http.StatusInternalServerError,
					internal.Response{Error: "Internal server error"}, reqLogger)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
