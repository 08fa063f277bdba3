// Package current отдаёт текущий язык интерфейса и список доступных.
package current

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/camballey/tucan/internal/http/response"
	"github.com/camballey/tucan/internal/services/locale"
)

type Service interface {
	Current() string
}

type Result struct {
	Current   string            `json:"current"`
	Name      string            `json:"name"`
	Available []locale.Language `json:"available"`
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
// @Summary Текущий язык
// @Tags Locale
// @Produce  json
// @Success 200 {object} response.Response{data=Result}
// @Router /locale [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := h.service.Current()
	render.JSON(w, r, response.StatusOKWithData(Result{
		Current:   code,
		Name:      locale.Name(code),
		Available: locale.Available(),
	}))
}
