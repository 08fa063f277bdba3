// Package routing выбирает экран после аутентификации и проверяет доступ
// к экранам, закрытым по роли.
package routing

import (
	"github.com/camballey/tucan/internal/models"
	"github.com/camballey/tucan/internal/services/session"
)

// Route путь экрана клиентского приложения.
type Route string

const (
	RouteLoading     Route = "loading"
	RouteSignIn      Route = "/sesion"
	RouteContactInfo Route = "/info-inicial"
	RouteRoleSelect  Route = "/landing"
	RoutePassenger   Route = "/passenger"
	RouteDriver      Route = "/chofer"
	RouteOwner       Route = "/dueno"
	RouteUnion       Route = "/sindicato"
)

// Dashboard экран роли.
func Dashboard(r models.Role) Route {
	switch r {
	case models.RolePassenger:
		return RoutePassenger
	case models.RoleDriver:
		return RouteDriver
	case models.RoleOwner:
		return RouteOwner
	case models.RoleUnion:
		return RouteUnion
	}
	return RouteRoleSelect
}

// Resolve экран для снимка сессии. Контактные данные проверяются раньше роли.
func Resolve(s session.Snapshot) Route {
	if s.State == models.StateInitializing {
		return RouteLoading
	}
	if s.Session == nil || s.Profile == nil {
		return RouteSignIn
	}
	switch s.Profile.Stage() {
	case models.StageNeedsContactInfo:
		return RouteContactInfo
	case models.StageNeedsRole:
		return RouteRoleSelect
	}
	return Dashboard(*s.Profile.Tipo)
}

// Decision результат проверки доступа.
type Decision string

const (
	DecisionLoading         Decision = "loading"
	DecisionUnauthenticated Decision = "unauthenticated"
	DecisionForbidden       Decision = "forbidden"
	DecisionAllowed         Decision = "allowed"
)

// Authorize проверяет доступ к экрану роли required.
// Незаполненный профиль не получает доступа ни к одной роли.
func Authorize(s session.Snapshot, required models.Role) Decision {
	switch {
	case s.State == models.StateInitializing:
		return DecisionLoading
	case s.Session == nil:
		return DecisionUnauthenticated
	case s.Profile == nil || !s.Profile.Complete():
		return DecisionForbidden
	case *s.Profile.Tipo != required:
		return DecisionForbidden
	}
	return DecisionAllowed
}
