// Package process проводит оплату пассажира на кассе водителя.
package process

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
)

type Request struct {
	Amount        decimal.Decimal `json:"amount"`
	CardID        string          `json:"card_id" validate:"required"`
	PassengerName string          `json:"passenger_name" validate:"required,max=120"`
}

type Service interface {
	ProcessPassengerPayment(ctx context.Context, amount decimal.Decimal, cardID, passengerName string) (models.PaymentNotification, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Оплата пассажира
// @Description Создаёт уведомление для водителя. Баланс карты не меняется.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "Оплата"
// @Success 200 {object} response.Response{data=models.PaymentNotification}
// @Failure 422 {object} response.ErrorResponse "Некорректная сумма"
// @Router /payments/process [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.process"

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
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	n, err := h.service.ProcessPassengerPayment(r.Context(), req.Amount, req.CardID, req.PassengerName)
	if err != nil {
		log.Error("payment failed", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	log.Info("payment processed", slog.String("notification_id", n.ID), slog.String("amount", n.Amount.StringFixed(2)))
	render.JSON(w, r, response.StatusOKWithData(n))
}
