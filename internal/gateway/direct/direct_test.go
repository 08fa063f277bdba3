package direct

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/camballey/tucan/internal/gateway"
	"github.com/camballey/tucan/internal/lib/jwt"
	"github.com/camballey/tucan/internal/lib/password"
	"github.com/camballey/tucan/internal/models"
	"github.com/camballey/tucan/internal/storage"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateAuthUser(ctx context.Context, email, passwordHash, fullName string) (*models.AuthUser, error) {
	args := m.Called(ctx, email, passwordHash, fullName)
	u, _ := args.Get(0).(*models.AuthUser)
	return u, args.Error(1)
}

func (m *mockStore) GetAuthUserByEmail(ctx context.Context, email string) (*models.AuthUser, string, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*models.AuthUser)
	return u, args.String(1), args.Error(2)
}

func (m *mockStore) GetAuthUser(ctx context.Context, id string) (*models.AuthUser, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.AuthUser)
	return u, args.Error(1)
}

func (m *mockStore) CreateRefreshToken(ctx context.Context, token, userID string, expiresAt time.Time) error {
	return m.Called(ctx, token, userID, expiresAt).Error(0)
}

func (m *mockStore) ConsumeRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *mockStore) RevokeRefreshToken(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockStore) GetUsuario(ctx context.Context, id string) (*models.UserProfile, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.UserProfile)
	return p, args.Error(1)
}

func (m *mockStore) InsertUsuario(ctx context.Context, p models.UserProfile) (*models.UserProfile, error) {
	args := m.Called(ctx, p)
	out, _ := args.Get(0).(*models.UserProfile)
	return out, args.Error(1)
}

func (m *mockStore) UpdateUsuario(ctx context.Context, id string, patch models.ProfilePatch) error {
	return m.Called(ctx, id, patch).Error(0)
}

func (m *mockStore) ListTarjetas(ctx context.Context, userID string) ([]models.Card, error) {
	args := m.Called(ctx, userID)
	cards, _ := args.Get(0).([]models.Card)
	return cards, args.Error(1)
}

func (m *mockStore) InsertTarjeta(ctx context.Context, c models.NewCard) (*models.Card, error) {
	args := m.Called(ctx, c)
	card, _ := args.Get(0).(*models.Card)
	return card, args.Error(1)
}

func (m *mockStore) UpdateTarjeta(ctx context.Context, id, userID string, patch models.CardPatch) (*models.Card, error) {
	args := m.Called(ctx, id, userID, patch)
	card, _ := args.Get(0).(*models.Card)
	return card, args.Error(1)
}

func (m *mockStore) DeleteTarjeta(ctx context.Context, id, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *mockStore) TableColumns(ctx context.Context, table string) (map[string]bool, error) {
	args := m.Called(ctx, table)
	cols, _ := args.Get(0).(map[string]bool)
	return cols, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const secret = "test_secret_key"

var testUser = &models.AuthUser{
	ID:        "8f2c1a9e-0000-4000-8000-000000000001",
	Email:     "ana@example.com",
	FullName:  "Ana",
	CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
}

func newGateway(store *mockStore) *Gateway {
	return New(store, jwt.NewJWTMaker(secret, time.Hour), 24*time.Hour, newNoopLogger())
}

func signedIn(t *testing.T, store *mockStore, g *Gateway) *models.Session {
	t.Helper()
	hash, err := password.GetHash("secreto1")
	require.NoError(t, err)
	store.On("GetAuthUserByEmail", mock.Anything, "ana@example.com").Return(testUser, hash, nil).Once()
	store.On("CreateRefreshToken", mock.Anything, mock.AnythingOfType("string"), testUser.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

	s, err := g.SignIn(context.Background(), " Ana@Example.com ", "secreto1")
	require.NoError(t, err)
	return s
}

func TestSignIn(t *testing.T) {
	t.Run("успешный вход порождает signed_in", func(t *testing.T) {
		store := new(mockStore)
		g := newGateway(store)
		var events []models.AuthEvent
		g.OnAuthStateChange(func(ev models.AuthEvent) { events = append(events, ev) })

		s := signedIn(t, store, g)

		assert.Equal(t, testUser.ID, s.User.ID)
		assert.Equal(t, "bearer", s.TokenType)
		assert.NotEmpty(t, s.RefreshToken)
		require.Len(t, events, 1)
		assert.Equal(t, models.EventSignedIn, events[0].Type)
		assert.Equal(t, s.AccessToken, g.Session().AccessToken)
		store.AssertExpectations(t)
	})

	t.Run("неизвестный email", func(t *testing.T) {
		store := new(mockStore)
		g := newGateway(store)
		store.On("GetAuthUserByEmail", mock.Anything, "x@example.com").Return(nil, "", storage.ErrNotFound)

		_, err := g.SignIn(context.Background(), "x@example.com", "secreto1")
		assert.ErrorIs(t, err, gateway.ErrInvalidCredentials)
		assert.Nil(t, g.Session())
	})

	t.Run("неверный пароль", func(t *testing.T) {
		store := new(mockStore)
		g := newGateway(store)
		hash, err := password.GetHash("secreto1")
		require.NoError(t, err)
		store.On("GetAuthUserByEmail", mock.Anything, "ana@example.com").Return(testUser, hash, nil)

		_, err = g.SignIn(context.Background(), "ana@example.com", "otro-pass")
		assert.ErrorIs(t, err, gateway.ErrInvalidCredentials)
	})
}

func TestSignUp(t *testing.T) {
	t.Run("слабый пароль", func(t *testing.T) {
		g := newGateway(new(mockStore))
		_, _, err := g.SignUp(context.Background(), "ana@example.com", "123", "Ana")
		var apiErr *gateway.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "weak_password", apiErr.Code)
	})

	t.Run("email занят", func(t *testing.T) {
		store := new(mockStore)
		g := newGateway(store)
		store.On("CreateAuthUser", mock.Anything, "ana@example.com", mock.Anything, "Ana").Return(nil, storage.ErrAlreadyExists)

		_, _, err := g.SignUp(context.Background(), "ana@example.com", "secreto1", " Ana ")
		assert.ErrorIs(t, err, gateway.ErrAlreadyExists)
	})

	t.Run("успех открывает сессию", func(t *testing.T) {
		store := new(mockStore)
		g := newGateway(store)
		store.On("CreateAuthUser", mock.Anything, "ana@example.com", mock.Anything, "Ana").Return(testUser, nil)
		store.On("CreateRefreshToken", mock.Anything, mock.Anything, testUser.ID, mock.Anything).Return(nil)

		s, u, err := g.SignUp(context.Background(), "ana@example.com", "secreto1", "Ana")
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, testUser.ID, u.ID)
	})
}

func TestSignOut(t *testing.T) {
	store := new(mockStore)
	g := newGateway(store)
	s := signedIn(t, store, g)

	var events []models.AuthEventType
	g.OnAuthStateChange(func(ev models.AuthEvent) { events = append(events, ev.Type) })
	store.On("RevokeRefreshToken", mock.Anything, s.RefreshToken).Return(assert.AnError)

	err := g.SignOut(context.Background())
	assert.Error(t, err)
	assert.Nil(t, g.Session())
	assert.Equal(t, []models.AuthEventType{models.EventSignedOut}, events)

	assert.NoError(t, g.SignOut(context.Background()))
}

func TestSetSession(t *testing.T) {
	t.Run("действующий токен", func(t *testing.T) {
		store := new(mockStore)
		g := newGateway(store)
		maker := jwt.NewJWTMaker(secret, time.Hour)
		access, exp, err := maker.GenerateToken(testUser.ID, testUser.Email, testUser.FullName)
		require.NoError(t, err)
		store.On("GetAuthUser", mock.Anything, testUser.ID).Return(testUser, nil)

		s, err := g.SetSession(context.Background(), models.Session{
			AccessToken: access, RefreshToken: "rt", ExpiresAt: exp, User: models.AuthUser{ID: testUser.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, access, s.AccessToken)
		assert.Equal(t, "ana@example.com", s.User.Email)
	})

	t.Run("просроченный токен обновляется", func(t *testing.T) {
		store := new(mockStore)
		g := newGateway(store)
		expired := jwt.NewJWTMaker(secret, -time.Minute)
		access, exp, err := expired.GenerateToken(testUser.ID, testUser.Email, "")
		require.NoError(t, err)

		store.On("ConsumeRefreshToken", mock.Anything, "rt-old").Return(testUser.ID, time.Now().Add(time.Hour), nil)
		store.On("GetAuthUser", mock.Anything, testUser.ID).Return(testUser, nil)
		store.On("CreateRefreshToken", mock.Anything, mock.Anything, testUser.ID, mock.Anything).Return(nil)

		var events []models.AuthEventType
		g.OnAuthStateChange(func(ev models.AuthEvent) { events = append(events, ev.Type) })

		s, err := g.SetSession(context.Background(), models.Session{AccessToken: access, RefreshToken: "rt-old", ExpiresAt: exp})
		require.NoError(t, err)
		assert.NotEqual(t, "rt-old", s.RefreshToken)
		assert.Equal(t, []models.AuthEventType{models.EventTokenRefreshed}, events)
	})

	t.Run("отозванный refresh-токен", func(t *testing.T) {
		store := new(mockStore)
		g := newGateway(store)
		expired := jwt.NewJWTMaker(secret, -time.Minute)
		access, exp, err := expired.GenerateToken(testUser.ID, testUser.Email, "")
		require.NoError(t, err)
		store.On("ConsumeRefreshToken", mock.Anything, "rt-old").Return("", time.Time{}, storage.ErrNotFound)

		_, err = g.SetSession(context.Background(), models.Session{AccessToken: access, RefreshToken: "rt-old", ExpiresAt: exp})
		assert.ErrorIs(t, err, gateway.ErrSessionExpired)
	})

	t.Run("подделанный токен", func(t *testing.T) {
		g := newGateway(new(mockStore))
		other := jwt.NewJWTMaker("other", time.Hour)
		access, exp, err := other.GenerateToken(testUser.ID, testUser.Email, "")
		require.NoError(t, err)

		_, err = g.SetSession(context.Background(), models.Session{AccessToken: access, RefreshToken: "rt", ExpiresAt: exp})
		assert.ErrorIs(t, err, gateway.ErrSessionExpired)
	})
}

func TestRows_RequireSession(t *testing.T) {
	g := newGateway(new(mockStore))
	ctx := context.Background()

	_, err := g.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, gateway.ErrNoSession)
	_, err = g.ListCards(ctx, "u1")
	assert.ErrorIs(t, err, gateway.ErrNoSession)
	assert.ErrorIs(t, g.DeleteCard(ctx, "c1"), gateway.ErrNoSession)
}

func TestRows_ScopedToOwner(t *testing.T) {
	store := new(mockStore)
	g := newGateway(store)
	signedIn(t, store, g)
	ctx := context.Background()

	_, err := g.GetProfile(ctx, "someone-else")
	assert.ErrorIs(t, err, gateway.ErrNotFound)

	cards, err := g.ListCards(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, cards)

	_, err = g.InsertCard(ctx, models.NewCard{UserID: "someone-else", Alias: "x", Tipo: models.CardVirtual})
	var apiErr *gateway.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Status)
}

func TestRows_CardOperations(t *testing.T) {
	store := new(mockStore)
	g := newGateway(store)
	signedIn(t, store, g)
	ctx := context.Background()

	card := &models.Card{ID: "c1", UserID: testUser.ID, Alias: "Casa", Saldo: decimal.Zero, Activa: true, Tipo: models.CardVirtual}
	store.On("ListTarjetas", mock.Anything, testUser.ID).Return([]models.Card{*card}, nil)
	store.On("UpdateTarjeta", mock.Anything, "c1", testUser.ID, models.CardPatch{Activa: models.Ptr(false)}).
		Return(&models.Card{ID: "c1", UserID: testUser.ID, Activa: false}, nil)
	store.On("DeleteTarjeta", mock.Anything, "c1", testUser.ID).Return(nil).Once()
	store.On("DeleteTarjeta", mock.Anything, "c1", testUser.ID).Return(storage.ErrNotFound).Once()

	list, err := g.ListCards(ctx, testUser.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	updated, err := g.UpdateCard(ctx, "c1", models.CardPatch{Activa: models.Ptr(false)})
	require.NoError(t, err)
	assert.False(t, updated.Activa)

	require.NoError(t, g.DeleteCard(ctx, "c1"))
	assert.ErrorIs(t, g.DeleteCard(ctx, "c1"), gateway.ErrNotFound)
	store.AssertExpectations(t)
}

func TestRows_ExpiredSessionRefreshFailsSignsOut(t *testing.T) {
	store := new(mockStore)
	now := time.Now()
	g := New(store, jwt.NewJWTMaker(secret, time.Hour), 24*time.Hour, newNoopLogger(), WithClock(func() time.Time { return now }))
	s := signedIn(t, store, g)

	var events []models.AuthEventType
	g.OnAuthStateChange(func(ev models.AuthEvent) { events = append(events, ev.Type) })
	now = s.ExpiresAt.Add(time.Second)
	store.On("ConsumeRefreshToken", mock.Anything, s.RefreshToken).Return("", time.Time{}, storage.ErrNotFound)

	_, err := g.ListCards(context.Background(), testUser.ID)
	assert.ErrorIs(t, err, gateway.ErrSessionExpired)
	assert.Nil(t, g.Session())
	assert.Equal(t, []models.AuthEventType{models.EventSignedOut}, events)
}

func TestCardSchema(t *testing.T) {
	tests := []struct {
		name string
		cols map[string]bool
		want models.CardSchema
	}{
		{
			name: "полная схема",
			cols: map[string]bool{"id": true, "colorA": true, "colorB": true, "viajesMes": true},
			want: models.CardSchema{HasColors: true, HasTripCount: true, Version: "2"},
		},
		{
			name: "без необязательных колонок",
			cols: map[string]bool{"id": true},
			want: models.CardSchema{Version: "2"},
		},
		{
			name: "только один цвет",
			cols: map[string]bool{"id": true, "colorA": true, "viajesMes": true},
			want: models.CardSchema{HasTripCount: true, Version: "2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockStore)
			store.On("TableColumns", mock.Anything, "Tarjetas").Return(tt.cols, nil)
			g := New(store, jwt.NewJWTMaker(secret, time.Hour), time.Hour, newNoopLogger(),
				WithSchemaVersion(VersionFromMigrations(func() (uint, bool, error) { return 2, false, nil })))

			got, err := g.CardSchema(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionFromMigrations_Dirty(t *testing.T) {
	fn := VersionFromMigrations(func() (uint, bool, error) { return 1, true, nil })
	v, err := fn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1-dirty", v)
}
