// Package response содержит единый формат JSON-ответов моста и
// сопоставление доменных ошибок с HTTP-статусами.
package response

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"

	"github.com/camballey/tucan/internal/gateway"
	"github.com/camballey/tucan/internal/services/cards"
	"github.com/camballey/tucan/internal/services/locale"
	"github.com/camballey/tucan/internal/services/payment"
	"github.com/camballey/tucan/internal/services/session"
)

// Response стандартный JSON-ответ.
// Status: "OK" или "Error"; Error заполняется при неуспехе, Data при успехе.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse структура ошибки для swagger-аннотаций @Failure.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// StatusOKWithData успешный ответ с данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error ответ с ошибкой msg.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError собирает нарушения валидации в одну строку через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at least %s characters", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s characters", err.Field(), err.Param()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

var statusBySentinel = []struct {
	err    error
	status int
}{
	{gateway.ErrInvalidCredentials, http.StatusUnauthorized},
	{gateway.ErrNoSession, http.StatusUnauthorized},
	{gateway.ErrSessionExpired, http.StatusUnauthorized},
	{cards.ErrNoOwner, http.StatusUnauthorized},
	{gateway.ErrAlreadyExists, http.StatusConflict},
	{cards.ErrCardLimit, http.StatusConflict},
	{session.ErrNoProfile, http.StatusConflict},
	{payment.ErrTerminalBusy, http.StatusConflict},
	{cards.ErrCardNotFound, http.StatusNotFound},
	{gateway.ErrNotFound, http.StatusNotFound},
	{session.ErrInvalidRole, http.StatusUnprocessableEntity},
	{session.ErrInvalidContactInfo, http.StatusUnprocessableEntity},
	{cards.ErrNegativeBalance, http.StatusUnprocessableEntity},
	{cards.ErrEmptyAlias, http.StatusUnprocessableEntity},
	{cards.ErrInvalidKind, http.StatusUnprocessableEntity},
	{locale.ErrUnsupported, http.StatusUnprocessableEntity},
	{payment.ErrInvalidAmount, http.StatusUnprocessableEntity},
	{session.ErrProfileUnavailable, http.StatusBadGateway},
	{cards.ErrCardsNotLoaded, http.StatusServiceUnavailable},
}

// FromError HTTP-статус и тело ответа для ошибки менеджера.
// Внутренние детали наружу не отдаются.
func FromError(err error) (int, ErrorResponse) {
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status, Error(s.err.Error())
		}
	}

	var apiErr *gateway.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Status == http.StatusUnprocessableEntity || apiErr.Status == http.StatusBadRequest {
			return http.StatusUnprocessableEntity, Error(apiErr.Message)
		}
		return http.StatusBadGateway, Error("remote service error")
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, Error("remote service timeout")
	}
	return http.StatusInternalServerError, Error("internal error")
}
