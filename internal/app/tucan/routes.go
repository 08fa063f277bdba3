// Package tucan собирает клиентское ядро: шлюз, хранилище, менеджеры и локальный HTTP-мост.
package tucan

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/camballey/tucan/internal/http/handlers/auth/signin"
	"github.com/camballey/tucan/internal/http/handlers/auth/signout"
	"github.com/camballey/tucan/internal/http/handlers/auth/signup"
	"github.com/camballey/tucan/internal/http/handlers/cards/balance"
	"github.com/camballey/tucan/internal/http/handlers/cards/create"
	"github.com/camballey/tucan/internal/http/handlers/cards/list"
	"github.com/camballey/tucan/internal/http/handlers/cards/refresh"
	"github.com/camballey/tucan/internal/http/handlers/cards/remove"
	"github.com/camballey/tucan/internal/http/handlers/cards/toggle"
	localechange "github.com/camballey/tucan/internal/http/handlers/locale/change"
	localecurrent "github.com/camballey/tucan/internal/http/handlers/locale/current"
	"github.com/camballey/tucan/internal/http/handlers/payment/notifications"
	"github.com/camballey/tucan/internal/http/handlers/payment/process"
	"github.com/camballey/tucan/internal/http/handlers/payment/request"
	"github.com/camballey/tucan/internal/http/handlers/payment/scan"
	paymentstatus "github.com/camballey/tucan/internal/http/handlers/payment/status"
	"github.com/camballey/tucan/internal/http/handlers/profile/contact"
	"github.com/camballey/tucan/internal/http/handlers/profile/role"
	"github.com/camballey/tucan/internal/http/handlers/profile/update"
	sessioncurrent "github.com/camballey/tucan/internal/http/handlers/session/current"
	"github.com/camballey/tucan/internal/http/middlewarectx"
	"github.com/camballey/tucan/internal/models"
	"github.com/camballey/tucan/internal/services/cards"
	"github.com/camballey/tucan/internal/services/locale"
	"github.com/camballey/tucan/internal/services/payment"
	"github.com/camballey/tucan/internal/services/session"
)

// Services зависимости маршрутов моста.
type Services struct {
	Session  *session.Manager
	Cards    *cards.Manager
	Locale   *locale.Service
	Terminal *payment.Terminal
	Desk     *payment.Desk
}

// RegisterRoutes регистрирует все маршруты моста.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc Services, limiter *rate.Limiter) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
		middlewarectx.Metrics,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/signin", signin.New(logger, svc.Session).ServeHTTP)
		r.Post("/auth/signup", signup.New(logger, svc.Session).ServeHTTP)
		r.Post("/auth/signout", signout.New(logger, svc.Session).ServeHTTP)
		r.Get("/session", sessioncurrent.New(logger, svc.Session).ServeHTTP)
		r.Get("/locale", localecurrent.New(logger, svc.Locale).ServeHTTP)
		r.Put("/locale", localechange.New(logger, svc.Locale).ServeHTTP)

		// Группа с активной сессией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireSession(svc.Session, logger))
			r.Use(middlewarectx.RateLimit(limiter, logger))

			r.Patch("/profile", update.New(logger, svc.Session).ServeHTTP)
			r.Put("/profile/contact", contact.New(logger, svc.Session).ServeHTTP)
			r.Put("/profile/role", role.New(logger, svc.Session).ServeHTTP)

			r.Get("/cards", list.New(logger, svc.Cards).ServeHTTP)
			r.Post("/cards", create.New(logger, svc.Cards).ServeHTTP)
			r.Post("/cards/refresh", refresh.New(logger, svc.Cards).ServeHTTP)
			r.Post("/cards/{id}/toggle", toggle.New(logger, svc.Cards).ServeHTTP)
			r.Post("/cards/{id}/balance", balance.New(logger, svc.Cards).ServeHTTP)
			r.Delete("/cards/{id}", remove.New(logger, svc.Cards).ServeHTTP)

			r.Get("/payments/status", paymentstatus.New(logger, svc.Terminal, svc.Desk).ServeHTTP)
			r.Post("/payments/process", process.New(logger, svc.Desk).ServeHTTP)

			r.With(middlewarectx.RequireRole(svc.Session, models.RolePassenger, logger)).
				Post("/payments/scan", scan.New(logger, svc.Terminal).ServeHTTP)

			// Касса водителя
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireRole(svc.Session, models.RoleDriver, logger))
				n := notifications.New(logger, svc.Desk)
				r.Post("/payments/request", request.New(logger, svc.Desk).ServeHTTP)
				r.Get("/payments/notifications", n.List)
				r.Delete("/payments/notifications", n.Clear)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
