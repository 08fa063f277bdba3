// Package toggle блокирует и разблокирует карту.
package toggle

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
)

type Service interface {
	ToggleActive(ctx context.Context, id string) (models.Card, error)
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
// @Summary Блокировка карты
// @Description Инвертирует признак activa.
// @Tags Cards
// @Produce  json
// @Param id path string true "ID карты"
// @Success 200 {object} response.Response{data=models.Card}
// @Failure 404 {object} response.ErrorResponse "Карта не найдена"
// @Router /cards/{id}/toggle [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cards.toggle"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	card, err := h.service.ToggleActive(r.Context(), id)
	if err != nil {
		log.Error("failed to toggle card", slog.String("card_id", id), sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	log.Info("card toggled", slog.String("card_id", id), slog.Bool("activa", card.Activa))
	render.JSON(w, r, response.StatusOKWithData(card))
}
