// Package balance пополняет или списывает баланс карты.
package balance

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
)

// Request изменение баланса. Положительное значение пополняет карту.
type Request struct {
	Delta decimal.Decimal `json:"delta"`
}

type Service interface {
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (models.Card, error)
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
// @Summary Изменение баланса
// @Description Баланс округляется до двух знаков и не может стать отрицательным.
// @Tags Cards
// @Accept  json
// @Produce  json
// @Param id path string true "ID карты"
// @Param request body Request true "Изменение"
// @Success 200 {object} response.Response{data=models.Card}
// @Failure 404 {object} response.ErrorResponse "Карта не найдена"
// @Failure 422 {object} response.ErrorResponse "Отрицательный баланс"
// @Router /cards/{id}/balance [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cards.balance"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	id := chi.URLParam(r, "id")
	card, err := h.service.AdjustBalance(r.Context(), id, req.Delta)
	if err != nil {
		log.Error("failed to adjust balance", slog.String("card_id", id), sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	log.Info("balance adjusted", slog.String("card_id", id), slog.String("saldo", card.SaldoText()))
	render.JSON(w, r, response.StatusOKWithData(card))
}
