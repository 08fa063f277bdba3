// Package update реализует частичное обновление профиля (PATCH /profile).
package update

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
	"github.com/camballey/tucan/internal/services/session"
)

// Request изменяемые поля. Отсутствующие поля не меняются.
// Роль и контакты меняются отдельными обработчиками с проверками.
type Request struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=120"`
}

type Service interface {
	UpdateProfile(ctx context.Context, patch models.ProfilePatch) error
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
// @Summary Обновление профиля
// @Tags Profile
// @Accept  json
// @Produce  json
// @Param request body Request true "Поля профиля"
// @Success 200 {object} response.Response{data=models.UserProfile}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Профиль не загружен"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /profile [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.update"

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
	if req.FullName != nil {
		trimmed := strings.TrimSpace(*req.FullName)
		req.FullName = &trimmed
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.UpdateProfile(r.Context(), models.ProfilePatch{FullName: req.FullName}); err != nil {
		log.Error("failed to update profile", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(h.service.Snapshot().Profile))
}
