// Package remove удаляет карту.
package remove

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/lib/sl"
)

type Service interface {
	DeleteCard(ctx context.Context, id string) error
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
// @Summary Удаление карты
// @Tags Cards
// @Produce  json
// @Param id path string true "ID карты"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Карта не найдена"
// @Router /cards/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cards.remove"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	if err := h.service.DeleteCard(r.Context(), id); err != nil {
		log.Error("failed to delete card", slog.String("card_id", id), sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	log.Info("card deleted", slog.String("card_id", id))
	render.JSON(w, r, response.Response{Status: response.StatusOK})
}
