// Package role назначает пользователю роль и возвращает экран роли.
package role

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
	"github.com/camballey/tucan/internal/services/routing"
	"github.com/camballey/tucan/internal/services/session"
)

// Request tipo: 1 пассажир, 2 водитель, 3 владелец, 4 профсоюз.
type Request struct {
	Tipo int `json:"tipo" validate:"required"`
}

type Result struct {
	Snapshot session.Snapshot `json:"snapshot"`
	Route    routing.Route    `json:"route"`
}

type Service interface {
	UpdateUserType(ctx context.Context, role models.Role) error
	Snapshot() session.Snapshot
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
// @Summary Выбор роли
// @Tags Profile
// @Accept  json
// @Produce  json
// @Param request body Request true "Роль"
// @Success 200 {object} response.Response{data=Result}
// @Failure 409 {object} response.ErrorResponse "Профиль не загружен"
// @Failure 422 {object} response.ErrorResponse "Недопустимая роль"
// @Router /profile/role [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.role"

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

	if err := h.service.UpdateUserType(r.Context(), models.Role(req.Tipo)); err != nil {
		log.Error("failed to update role", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	snap := h.service.Snapshot()
	log.Info("role updated", sl.UserID(snap.UserID()), slog.Int("tipo", req.Tipo))
	render.JSON(w, r, response.StatusOKWithData(Result{Snapshot: snap, Route: routing.Resolve(snap)}))
}
