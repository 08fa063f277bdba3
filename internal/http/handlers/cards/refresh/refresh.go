// Package refresh перечитывает карты пользователя из удалённой таблицы.
package refresh

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
)

type Service interface {
	Refresh(ctx context.Context) error
	Cards() []models.Card
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
// @Summary Обновление списка карт
// @Tags Cards
// @Produce  json
// @Success 200 {object} response.Response{data=[]models.Card}
// @Failure 401 {object} response.ErrorResponse "Нет пользователя"
// @Failure 502 {object} response.ErrorResponse "Ошибка удалённой стороны"
// @Router /cards/refresh [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cards.refresh"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := h.service.Refresh(r.Context()); err != nil {
		log.Error("failed to refresh cards", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(h.service.Cards()))
}
