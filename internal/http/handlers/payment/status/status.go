// Package status отдаёт состояние терминала и кассы водителя.
package status

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/services/payment"
)

type Terminal interface {
	Status() payment.TerminalStatus
}

type Desk interface {
	Status() payment.DeskStatus
}

type Result struct {
	Terminal payment.TerminalStatus `json:"terminal"`
	Desk     payment.DeskStatus     `json:"desk"`
}

type Handler struct {
	log      *slog.Logger
	terminal Terminal
	desk     Desk
}

func New(log *slog.Logger, terminal Terminal, desk Desk) *Handler {
	return &Handler{
		log:      log,
		terminal: terminal,
		desk:     desk,
	}
}

// ServeHTTP godoc
// @Summary Состояние оплаты
// @Tags Payments
// @Produce  json
// @Success 200 {object} response.Response{data=Result}
// @Router /payments/status [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(Result{
		Terminal: h.terminal.Status(),
		Desk:     h.desk.Status(),
	}))
}
