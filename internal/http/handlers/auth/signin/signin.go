// Package signin реализует HTTP-обработчик входа по email и паролю.
//
// Обработчик дожидается загрузки профиля и возвращает снимок сессии вместе
// с экраном, на который нужно перейти.
package signin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/services/routing"
	"github.com/camballey/tucan/internal/services/session"
)

// Request учётные данные.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Result данные успешного ответа.
type Result struct {
	Snapshot session.Snapshot `json:"snapshot"`
	Route    routing.Route    `json:"route"`
}

// Service вход в систему.
type Service interface {
	SignIn(ctx context.Context, email, password string) (session.Snapshot, error)
}

// Handler обработчик POST /auth/signin.
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
// @Summary Вход пользователя
// @Description Аутентифицирует по email и паролю, загружает профиль и возвращает экран назначения.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные"
// @Success 200 {object} response.Response{data=Result}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Профиль недоступен"
// @Router /auth/signin [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.signin"

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

	snap, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil && !errors.Is(err, session.ErrProfileUnavailable) {
		log.Error("sign in failed", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}
	if err != nil {
		// сессия есть, профиль нет: клиент уйдёт на экран входа
		log.Warn("signed in without profile", sl.Err(err))
	}

	log.Info("signed in", sl.UserID(snap.UserID()))
	render.JSON(w, r, response.StatusOKWithData(Result{
		Snapshot: snap,
		Route:    routing.Resolve(snap),
	}))
}
