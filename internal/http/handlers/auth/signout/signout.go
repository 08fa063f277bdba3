// Package signout реализует HTTP-обработчик выхода. Выход не завершается ошибкой.
package signout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/services/routing"
)

type Service interface {
	SignOut(ctx context.Context)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Выход
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response
// @Router /auth/signout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.signout"

	h.service.SignOut(r.Context())

	h.log.Info("signed out",
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"route": routing.RouteSignIn,
	}))
}
