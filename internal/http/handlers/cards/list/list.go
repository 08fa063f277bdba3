// Package list отдаёт карты текущего пользователя из памяти менеджера.
package list

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/models"
)

type Service interface {
	Cards() []models.Card
	Limit() int
}

// Result список карт и лимит на пользователя.
type Result struct {
	Cards []models.Card `json:"cards"`
	Limit int           `json:"limit"`
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
// @Summary Список карт
// @Tags Cards
// @Produce  json
// @Success 200 {object} response.Response{data=Result}
// @Router /cards [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(Result{
		Cards: h.service.Cards(),
		Limit: h.service.Limit(),
	}))
}
