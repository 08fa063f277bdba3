// Package current отдаёт снимок сессии и экран, соответствующий профилю.
package current

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/models"
	"github.com/camballey/tucan/internal/services/routing"
	"github.com/camballey/tucan/internal/services/session"
)

type Service interface {
	Snapshot() session.Snapshot
}

// Result снимок, экран и этап заполнения профиля.
type Result struct {
	Snapshot session.Snapshot `json:"snapshot"`
	Route    routing.Route    `json:"route"`
	Stage    models.Stage     `json:"stage,omitempty"`
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
// @Summary Текущая сессия
// @Tags Session
// @Produce  json
// @Success 200 {object} response.Response{data=Result}
// @Router /session [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot()
	res := Result{
		Snapshot: snap,
		Route:    routing.Resolve(snap),
	}
	if snap.Profile != nil {
		res.Stage = snap.Profile.Stage()
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}
