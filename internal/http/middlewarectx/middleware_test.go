package middlewarectx_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/camballey/tucan/internal/http/middlewarectx"
	"github.com/camballey/tucan/internal/models"
	"github.com/camballey/tucan/internal/services/session"
)

type staticSource session.Snapshot

func (s staticSource) Snapshot() session.Snapshot { return session.Snapshot(s) }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var sess = &models.Session{AccessToken: "a", RefreshToken: "r", User: models.AuthUser{ID: "u1"}}

func driverProfile() *models.UserProfile {
	return &models.UserProfile{
		ID: "u1", Telefono: models.Ptr("71234567"), NumeroCuenta: models.Ptr("1234"), Tipo: models.Ptr(models.RoleDriver),
	}
}

func TestRequireSession(t *testing.T) {
	tests := []struct {
		name       string
		snap       session.Snapshot
		wantStatus int
	}{
		{"инициализация", session.Snapshot{State: models.StateInitializing}, http.StatusServiceUnavailable},
		{"без сессии", session.Snapshot{State: models.StateUnauthenticated}, http.StatusUnauthorized},
		{"с сессией", session.Snapshot{State: models.StateAuthenticatedIncomplete, Session: sess}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = middlewarectx.UserIDFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			h := middlewarectx.RequireSession(staticSource(tt.snap), newNoopLogger())(next)

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/cards", nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "u1", gotUser)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	complete := session.Snapshot{State: models.StateAuthenticatedComplete, Session: sess, Profile: driverProfile()}

	tests := []struct {
		name       string
		snap       session.Snapshot
		role       models.Role
		wantStatus int
	}{
		{"водитель на экран водителя", complete, models.RoleDriver, http.StatusOK},
		{"водитель на экран пассажира", complete, models.RolePassenger, http.StatusForbidden},
		{"без сессии", session.Snapshot{State: models.StateUnauthenticated}, models.RoleDriver, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			h := middlewarectx.RequireRole(staticSource(tt.snap), tt.role, newNoopLogger())(next)

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/payments/request", nil))
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(0.001), 2)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := middlewarectx.RateLimit(limiter, newNoopLogger())(next)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
