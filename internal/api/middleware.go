package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nithindas-k/lazydraft/internal/metrics"
	"github.com/nithindas-k/lazydraft/internal/models"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

const sessionCookie = "session"

// requestLogger logs every request and feeds the HTTP metrics. The chi
// route pattern is used as the metric label to keep cardinality bounded.
func requestLogger(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = r.URL.Path
			}
			m.ObserveHTTP(r.Method, pattern, strconv.Itoa(ww.Status()), time.Since(start))
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"ip", r.RemoteAddr,
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

// RequireSession resolves the session cookie to a user and rejects the
// request with 401 otherwise.
func (h *Handlers) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		session, err := h.sessions.Get(r.Context(), cookie.Value)
		if err != nil {
			h.logger.Error("session lookup failed", "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if session == nil {
			respondError(w, http.StatusUnauthorized, "session expired")
			return
		}

		user, err := h.users.GetByID(r.Context(), session.UserID)
		if err != nil || user == nil {
			respondError(w, http.StatusUnauthorized, "unknown user")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser returns the authenticated user placed by RequireSession
func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(ctxKeyUser).(*models.User)
	return user
}
