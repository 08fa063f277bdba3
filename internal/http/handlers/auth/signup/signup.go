// Package signup реализует HTTP-обработчик регистрации.
package signup

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
	"github.com/camballey/tucan/internal/lib/password"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/services/routing"
	"github.com/camballey/tucan/internal/services/session"
)

// Request данные регистрации.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required,max=120"`
}

// Result SignedIn=false означает, что нужно подтвердить email и войти.
type Result struct {
	SignedIn bool             `json:"signed_in"`
	Snapshot session.Snapshot `json:"snapshot"`
	Route    routing.Route    `json:"route"`
}

type Service interface {
	SignUp(ctx context.Context, email, password, fullName string) (session.SignUpResult, error)
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
// @Summary Регистрация
// @Description Создаёт учётную запись с метаданными full_name. Если сессия выдана сразу, загружает профиль.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные регистрации"
// @Success 200 {object} response.Response{data=Result}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Email уже зарегистрирован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/signup [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.signup"

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
	if err := password.Validate(req.Password); err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	res, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil && !errors.Is(err, session.ErrProfileUnavailable) {
		log.Error("sign up failed", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}
	if err != nil {
		log.Warn("signed up without profile", sl.Err(err))
	}

	log.Info("signed up", slog.Bool("signed_in", res.SignedIn))
	render.JSON(w, r, response.StatusOKWithData(Result{
		SignedIn: res.SignedIn,
		Snapshot: res.Snapshot,
		Route:    routing.Resolve(res.Snapshot),
	}))
}
