// Package notifications отдаёт и очищает уведомления кассы водителя.
package notifications

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/models"
)

type Service interface {
	Notifications() []models.PaymentNotification
	ClearNotifications()
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

// List godoc
// @Summary Уведомления водителя
// @Description Новые уведомления идут первыми.
// @Tags Payments
// @Produce  json
// @Success 200 {object} response.Response{data=[]models.PaymentNotification}
// @Router /payments/notifications [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(h.service.Notifications()))
}

// Clear godoc
// @Summary Очистка уведомлений
// @Tags Payments
// @Produce  json
// @Success 200 {object} response.Response
// @Router /payments/notifications [delete]
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.service.ClearNotifications()
	render.JSON(w, r, response.Response{Status: response.StatusOK})
}
