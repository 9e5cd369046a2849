package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/kakeibo/internal"
	"github.com/frahmantamala/kakeibo/pkg/logger"
)

// MaxBodyBytes bounds every JSON request body.
const MaxBodyBytes = 100 << 10

var ErrInvalidBody = internal.NewValidationError("Invalid request body", internal.ErrCodeInvalidBody)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, data, h.Logger)
}

// WriteError writes an {"error": message} response
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, internal.Response{Error: message}, h.Logger)
}

// HandleServiceError renders err through the AppError taxonomy. Store and
// internal failures are logged with their cause and rendered generically.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	lg := logger.From(r.Context())

	appErr, ok := internal.IsAppError(err)
	if !ok {
		lg.Error("unhandled error", "error", err, "path", r.URL.Path)
		h.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		lg.Error("request failed", "error", appErr, "type", appErr.Type, "path", r.URL.Path)
		h.WriteError(w, appErr.StatusCode, appErr.Message)
		return
	}

	status, body := appErr.ToHTTPResponse()
	h.WriteJSON(w, status, body)
}

// DecodeJSON reads a bounded JSON body into dst. Errors that are already
// AppErrors (custom field decoders) pass through unchanged.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if appErr, ok := internal.IsAppError(err); ok {
			return appErr
		}
		return ErrInvalidBody.WithCause(err)
	}
	return nil
}

// WriteJSON is the shared encoder used by handlers and middleware.
func WriteJSON(w http.ResponseWriter, status int, data interface{}, lg *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil && lg != nil {
		lg.Error("failed to encode JSON response", "error", err)
	}
}

// WriteAppError renders an AppError outside of a handler.
func WriteAppError(w http.ResponseWriter, appErr *internal.AppError, lg *slog.Logger) {
	status, body := appErr.ToHTTPResponse()
	WriteJSON(w, status, body, lg)
}
