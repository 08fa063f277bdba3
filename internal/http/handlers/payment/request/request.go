// Package request открывает ожидание оплаты на кассе водителя.
package request

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/services/payment"
)

type Service interface {
	StartPaymentRequest(ctx context.Context) payment.DeskStatus
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
// @Summary Запрос оплаты
// @Description Водитель ждёт оплату пассажира. Ожидание снимается само через 30 секунд.
// @Tags Payments
// @Produce  json
// @Success 200 {object} response.Response{data=payment.DeskStatus}
// @Failure 403 {object} response.ErrorResponse "Только для водителя"
// @Router /payments/request [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.service.StartPaymentRequest(r.Context())
	h.log.Info("payment request started",
		slog.String("op", "handlers.payment.request"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	render.JSON(w, r, response.StatusOKWithData(status))
}
