// Package scan запускает симуляцию NFC-терминала при посадке.
package scan

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/lib/sl"
)

type Service interface {
	Run(ctx context.Context) (decimal.Decimal, error)
}

type Result struct {
	Fare decimal.Decimal `json:"fare"`
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
// @Summary Сканирование карты
// @Description Блокирует запрос на время сканирования и обработки и возвращает тариф.
// @Tags Payments
// @Produce  json
// @Success 200 {object} response.Response{data=Result}
// @Failure 409 {object} response.ErrorResponse "Терминал занят"
// @Router /payments/scan [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.scan"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	fare, err := h.service.Run(r.Context())
	if err != nil {
		log.Error("terminal run failed", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	log.Info("fare charged", slog.String("fare", fare.StringFixed(2)))
	render.JSON(w, r, response.StatusOKWithData(Result{Fare: fare}))
}
