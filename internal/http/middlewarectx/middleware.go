// Package middlewarectx содержит middleware локального моста: проверку
// сессии и роли, ограничение частоты запросов и учёт метрик.
//
// RequireSession кладёт id пользователя в контекст запроса; обработчики
// достают его через UserIDFrom.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/lib/metrics"
	"github.com/camballey/tucan/internal/models"
	"github.com/camballey/tucan/internal/services/routing"
	"github.com/camballey/tucan/internal/services/session"
)

// Key тип ключей контекста запроса.
type Key string

// UserID ключ id пользователя в контексте.
const UserID Key = "user_id"

// UserIDFrom id пользователя, положенный RequireSession.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserID).(string)
	return id, ok && id != ""
}

// SessionSource источник снимка сессии.
type SessionSource interface {
	Snapshot() session.Snapshot
}

// RequireSession пропускает запрос только при активной сессии.
func RequireSession(src SessionSource, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireSession"

			snap := src.Snapshot()
			if snap.State == models.StateInitializing {
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.Error("session is initializing"))
				return
			}
			if snap.Session == nil {
				log.Warn("request without session",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("not authenticated"))
				return
			}
			ctx := context.WithValue(r.Context(), UserID, snap.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole пропускает только пользователя с заполненным профилем роли role.
func RequireRole(src SessionSource, role models.Role, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireRole"

			switch routing.Authorize(src.Snapshot(), role) {
			case routing.DecisionAllowed:
				next.ServeHTTP(w, r)
				return
			case routing.DecisionLoading:
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.Error("session is initializing"))
			case routing.DecisionUnauthenticated:
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("not authenticated"))
			default:
				log.Warn("role check failed",
					slog.String("op", op),
					slog.String("required", role.String()),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("forbidden"))
			}
		})
	}
}

// RateLimit ограничивает частоту запросов лимитером экземпляра.
func RateLimit(limiter *rate.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Error("too many requests", slog.String("path", r.URL.Path))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Metrics считает ответы по шаблону маршрута chi.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveHTTP(r.Method, route, status)
	})
}
