package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/kakeibo/internal"
	"github.com/frahmantamala/kakeibo/internal/session"
	"github.com/frahmantamala/kakeibo/internal/transport"
	"github.com/frahmantamala/kakeibo/pkg/logger"
)

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*session.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Resolve(ctx context.Context, sessionID string) (*session.Session, error)
	Status(sess *session.Session) StatusResponse
	RequireAuthenticated(sess *session.Session) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Cookies *session.CookieCodec
	rolling bool
}

func NewHandler(svc ServiceAPI, cookies *session.CookieCodec, rolling bool, lg *slog.Logger) *Handler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Cookies:     cookies,
		rolling:     rolling,
	}
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Service.Status(session.FromContext(r.Context())))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	sess, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	// a new login never reuses the previous session id
	if prev := session.FromContext(r.Context()); prev != nil {
		if err := h.Service.Logout(r.Context(), prev.ID); err != nil {
			logger.From(r.Context()).Warn("failed to drop previous session", "error", err)
		}
	}

	if err := h.Cookies.Write(w, sess); err != nil {
		h.HandleServiceError(w, r, internal.NewInternalError("Failed to create session", err))
		return
	}

	h.WriteJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		Message: "Login successful",
		User:    LoginUser{Username: sess.User.Username},
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if id, err := h.Cookies.Read(r); err == nil {
		if err := h.Service.Logout(r.Context(), id); err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
	}

	if username := internal.UsernameFromContext(r.Context()); username != "" {
		logger.From(r.Context()).Info("user logged out", "username", username)
	}
	h.Cookies.Clear(w)
	h.WriteJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Logged out successfully"})
}

// SessionMiddleware resolves the session cookie, if any, and stores the
// session in the request context. It never rejects a request.
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.Cookies.Read(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := h.Service.Resolve(r.Context(), id)
		if err != nil {
			logger.From(r.Context()).Error("session lookup failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}

		if h.rolling {
			if err := h.Cookies.Write(w, sess); err != nil {
				logger.From(r.Context()).Warn("failed to renew session cookie", "error", err)
			}
		}

		ctx := session.NewContext(r.Context(), sess)
		ctx = internal.ContextWithUsername(ctx, sess.User.Username)
		ctx = logger.With(ctx, "username", sess.User.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests without a valid session with 401.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.Service.RequireAuthenticated(session.FromContext(r.Context())); err != nil {
			logger.From(r.Context()).Warn("unauthenticated request", "method", r.Method, "path", r.URL.Path)
			h.HandleServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
