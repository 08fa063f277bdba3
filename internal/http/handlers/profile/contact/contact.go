// Package contact сохраняет телефон и номер счёта пользователя.
package contact

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/services/routing"
	"github.com/camballey/tucan/internal/services/session"
)

type Request struct {
	Telefono     string `json:"telefono"`
	NumeroCuenta string `json:"numero_cuenta"`
}

type Result struct {
	Snapshot session.Snapshot `json:"snapshot"`
	Route    routing.Route    `json:"route"`
}

type Service interface {
	SaveContactInfo(ctx context.Context, telefono, numeroCuenta string) error
	Snapshot() session.Snapshot
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
// @Summary Контактные данные
// @Description Проверяет телефон (7-15 цифр, необязательный +) и номер счёта (от 4 символов) и сохраняет их.
// @Tags Profile
// @Accept  json
// @Produce  json
// @Param request body Request true "Контакты"
// @Success 200 {object} response.Response{data=Result}
// @Failure 409 {object} response.ErrorResponse "Профиль не загружен"
// @Failure 422 {object} response.ErrorResponse "Некорректные данные"
// @Router /profile/contact [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.contact"

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

	if err := h.service.SaveContactInfo(r.Context(), req.Telefono, req.NumeroCuenta); err != nil {
		log.Error("failed to save contact info", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	snap := h.service.Snapshot()
	render.JSON(w, r, response.StatusOKWithData(Result{Snapshot: snap, Route: routing.Resolve(snap)}))
}
