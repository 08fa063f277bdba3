// Package create выпускает новую карту пользователю.
package create

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
)

// Request псевдоним и вид карты. Пустой вид означает VIRTUAL.
type Request struct {
	Alias string `json:"alias" validate:"required,max=40"`
	Tipo  string `json:"tipo" validate:"omitempty,oneof=FISICA VIRTUAL"`
}

type Service interface {
	CreateCard(ctx context.Context, alias string, kind models.CardKind) (models.Card, error)
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
// @Summary Новая карта
// @Description Создаёт карту с нулевым балансом и случайным кодом T-NNNN. Не больше лимита карт на пользователя.
// @Tags Cards
// @Accept  json
// @Produce  json
// @Param request body Request true "Карта"
// @Success 201 {object} response.Response{data=models.Card}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Достигнут лимит карт"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /cards [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cards.create"

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
	req.Alias = strings.TrimSpace(req.Alias)

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	card, err := h.service.CreateCard(r.Context(), req.Alias, models.CardKind(req.Tipo))
	if err != nil {
		log.Error("failed to create card", sl.Err(err))
		status, body := response.FromError(err)
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	log.Info("card created", slog.String("card_id", card.ID), slog.String("codigo", card.Codigo))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(card))
}
