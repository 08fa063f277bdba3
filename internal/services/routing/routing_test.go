package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/camballey/tucan/internal/models"
	"github.com/camballey/tucan/internal/services/session"
)

var sess = &models.Session{AccessToken: "a", RefreshToken: "r", User: models.AuthUser{ID: "u1"}}

func profile(tel, cuenta *string, role *models.Role) *models.UserProfile {
	return &models.UserProfile{ID: "u1", FullName: "Ana", Telefono: tel, NumeroCuenta: cuenta, Tipo: role}
}

func TestResolve(t *testing.T) {
	tel, cuenta := models.Ptr("+59171234567"), models.Ptr("12345")

	tests := []struct {
		name string
		snap session.Snapshot
		want Route
	}{
		{
			name: "инициализация",
			snap: session.Snapshot{State: models.StateInitializing},
			want: RouteLoading,
		},
		{
			name: "нет сессии",
			snap: session.Snapshot{State: models.StateUnauthenticated},
			want: RouteSignIn,
		},
		{
			name: "сессия без профиля",
			snap: session.Snapshot{State: models.StateAuthenticatedIncomplete, Session: sess},
			want: RouteSignIn,
		},
		{
			name: "нет контактов",
			snap: session.Snapshot{State: models.StateAuthenticatedIncomplete, Session: sess, Profile: profile(nil, nil, models.Ptr(models.RoleDriver))},
			want: RouteContactInfo,
		},
		{
			name: "вход без роли",
			snap: session.Snapshot{State: models.StateAuthenticatedIncomplete, Session: sess, Profile: profile(tel, cuenta, nil)},
			want: RouteRoleSelect,
		},
		{
			name: "вход водителя с контактами",
			snap: session.Snapshot{State: models.StateAuthenticatedComplete, Session: sess, Profile: profile(tel, cuenta, models.Ptr(models.RoleDriver))},
			want: RouteDriver,
		},
		{
			name: "пассажир",
			snap: session.Snapshot{State: models.StateAuthenticatedComplete, Session: sess, Profile: profile(tel, cuenta, models.Ptr(models.RolePassenger))},
			want: RoutePassenger,
		},
		{
			name: "владелец",
			snap: session.Snapshot{State: models.StateAuthenticatedComplete, Session: sess, Profile: profile(tel, cuenta, models.Ptr(models.RoleOwner))},
			want: RouteOwner,
		},
		{
			name: "профсоюз",
			snap: session.Snapshot{State: models.StateAuthenticatedComplete, Session: sess, Profile: profile(tel, cuenta, models.Ptr(models.RoleUnion))},
			want: RouteUnion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.snap))
		})
	}
}

func TestAuthorize(t *testing.T) {
	tel, cuenta := models.Ptr("+59171234567"), models.Ptr("12345")
	driver := session.Snapshot{State: models.StateAuthenticatedComplete, Session: sess, Profile: profile(tel, cuenta, models.Ptr(models.RoleDriver))}

	assert.Equal(t, DecisionLoading, Authorize(session.Snapshot{State: models.StateInitializing}, models.RoleDriver))
	assert.Equal(t, DecisionUnauthenticated, Authorize(session.Snapshot{State: models.StateUnauthenticated}, models.RoleDriver))
	assert.Equal(t, DecisionAllowed, Authorize(driver, models.RoleDriver))
	assert.Equal(t, DecisionForbidden, Authorize(driver, models.RolePassenger))

	incomplete := session.Snapshot{State: models.StateAuthenticatedIncomplete, Session: sess, Profile: profile(nil, cuenta, models.Ptr(models.RoleDriver))}
	assert.Equal(t, DecisionForbidden, Authorize(incomplete, models.RoleDriver))
}
