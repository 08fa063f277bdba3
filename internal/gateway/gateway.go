// Package gateway содержит общие ошибки удалённого шлюза данных.
// Конкретные адаптеры лежат в подпакетах supabase и direct,
// интерфейсы объявлены на стороне потребителей (менеджеры сессии и карт).
package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrAlreadyExists      = errors.New("record already exists")
	ErrNoSession          = errors.New("no active session")
	ErrSessionExpired     = errors.New("session expired")
)

// APIError ошибка удалённой стороны, не сводящаяся к сентинелам выше.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway: status %d: %s", e.Status, e.Message)
}
