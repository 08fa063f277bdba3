package role

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/camballey/tucan/internal/models"
	"github.com/camballey/tucan/internal/services/session"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) UpdateUserType(ctx context.Context, role models.Role) error {
	return m.Called(ctx, role).Error(0)
}

func (m *MockService) Snapshot() session.Snapshot {
	return m.Called().Get(0).(session.Snapshot)
}

func TestRoleHandler_ServeHTTP(t *testing.T) {
	owner := session.Snapshot{
		State:   models.StateAuthenticatedComplete,
		Session: &models.Session{User: models.AuthUser{ID: "u1"}},
		Profile: &models.UserProfile{
			ID: "u1", Telefono: models.Ptr("71234567"), NumeroCuenta: models.Ptr("1234"), Tipo: models.Ptr(models.RoleOwner),
		},
	}

	tests := []struct {
		name       string
		body       string
		setup      func(m *MockService)
		wantStatus int
		wantRoute  string
		wantError  string
	}{
		{
			name: "владелец",
			body: `{"tipo":3}`,
			setup: func(m *MockService) {
				m.On("UpdateUserType", mock.Anything, models.RoleOwner).Return(nil).Once()
				m.On("Snapshot").Return(owner).Once()
			},
			wantStatus: http.StatusOK,
			wantRoute:  "/dueno",
		},
		{
			name: "недопустимая роль",
			body: `{"tipo":9}`,
			setup: func(m *MockService) {
				m.On("UpdateUserType", mock.Anything, models.Role(9)).
					Return(fmt.Errorf("session.UpdateUserType: %w", session.ErrInvalidRole)).Once()
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "invalid role",
		},
		{
			name: "профиль не загружен",
			body: `{"tipo":1}`,
			setup: func(m *MockService) {
				m.On("UpdateUserType", mock.Anything, models.RolePassenger).Return(session.ErrNoProfile).Once()
			},
			wantStatus: http.StatusConflict,
			wantError:  "no profile loaded",
		},
		{
			name:       "роль не указана",
			body:       `{}`,
			setup:      func(*MockService) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "field Tipo is a required field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setup(svc)
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/v1/profile/role", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.wantStatus, rr.Code)
			var resp struct {
				Error string `json:"error"`
				Data  struct {
					Route string `json:"route"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantRoute, resp.Data.Route)
			svc.AssertExpectations(t)
		})
	}
}
