// Package direct реализует удалённый шлюз поверх прямого подключения к PostgreSQL
// с той же схемой, что у хостинга: таблицы Usuarios и Tarjetas, bcrypt-пароли,
// access-токены HS256 и одноразовые refresh-токены в auth_sessions.
//
// Доступ к строкам ограничен владельцем текущей сессии, как политиками RLS хостинга.
package direct

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camballey/tucan/internal/gateway"
	"github.com/camballey/tucan/internal/lib/jwt"
	"github.com/camballey/tucan/internal/lib/notify"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
	"github.com/camballey/tucan/internal/storage"
)

const adapter = "direct"

// Store операции хранилища, нужные шлюзу.
type Store interface {
	CreateAuthUser(ctx context.Context, email, passwordHash, fullName string) (*models.AuthUser, error)
	GetAuthUserByEmail(ctx context.Context, email string) (*models.AuthUser, string, error)
	GetAuthUser(ctx context.Context, id string) (*models.AuthUser, error)
	CreateRefreshToken(ctx context.Context, token, userID string, expiresAt time.Time) error
	ConsumeRefreshToken(ctx context.Context, token string) (string, time.Time, error)
	RevokeRefreshToken(ctx context.Context, token string) error

	GetUsuario(ctx context.Context, id string) (*models.UserProfile, error)
	InsertUsuario(ctx context.Context, p models.UserProfile) (*models.UserProfile, error)
	UpdateUsuario(ctx context.Context, id string, patch models.ProfilePatch) error

	ListTarjetas(ctx context.Context, userID string) ([]models.Card, error)
	InsertTarjeta(ctx context.Context, c models.NewCard) (*models.Card, error)
	UpdateTarjeta(ctx context.Context, id, userID string, patch models.CardPatch) (*models.Card, error)
	DeleteTarjeta(ctx context.Context, id, userID string) error

	TableColumns(ctx context.Context, table string) (map[string]bool, error)
}

// Gateway шлюз прямого подключения.
type Gateway struct {
	store         Store
	tokens        jwt.Maker
	refreshTTL    time.Duration
	log           *slog.Logger
	now           func() time.Time
	schemaVersion func(ctx context.Context) (string, error)

	mu      sync.RWMutex
	session *models.Session
	events  notify.Broadcaster[models.AuthEvent]
}

// Option настройка Gateway.
type Option func(*Gateway)

// WithSchemaVersion задаёт источник версии схемы для CardSchema.
func WithSchemaVersion(fn func(ctx context.Context) (string, error)) Option {
	return func(g *Gateway) { g.schemaVersion = fn }
}

// WithClock подменяет часы.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New создаёт шлюз.
func New(store Store, tokens jwt.Maker, refreshTTL time.Duration, log *slog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		store:      store,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Session текущая сессия шлюза или nil.
func (g *Gateway) Session() *models.Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session.Clone()
}

// OnAuthStateChange подписывает fn на события аутентификации.
func (g *Gateway) OnAuthStateChange(fn func(models.AuthEvent)) (unsubscribe func()) {
	return g.events.Subscribe(fn)
}

func (g *Gateway) emit(t models.AuthEventType, s *models.Session) {
	g.events.Publish(models.AuthEvent{Type: t, Session: s.Clone()})
}

func (g *Gateway) setSession(s *models.Session) {
	g.mu.Lock()
	g.session = s.Clone()
	g.mu.Unlock()
}

// issueSession выпускает access- и refresh-токен для пользователя.
func (g *Gateway) issueSession(ctx context.Context, u *models.AuthUser) (*models.Session, error) {
	access, expiresAt, err := g.tokens.GenerateToken(u.ID, u.Email, u.FullName)
	if err != nil {
		return nil, err
	}
	refresh := uuid.NewString()
	if err := g.store.CreateRefreshToken(ctx, refresh, u.ID, g.now().Add(g.refreshTTL)); err != nil {
		return nil, err
	}
	return &models.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
		User:         *u,
	}, nil
}

// refresh обменивает refresh-токен на новую сессию.
func (g *Gateway) refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	userID, expiresAt, err := g.store.ConsumeRefreshToken(ctx, refreshToken)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, gateway.ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	if !g.now().Before(expiresAt) {
		return nil, gateway.ErrSessionExpired
	}
	u, err := g.store.GetAuthUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, gateway.ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	return g.issueSession(ctx, u)
}

// ensureSession возвращает действующую сессию, обновляя её при истечении.
// Неудачное обновление сбрасывает сессию и порождает signed_out.
func (g *Gateway) ensureSession(ctx context.Context) (*models.Session, error) {
	s := g.Session()
	if s == nil {
		return nil, gateway.ErrNoSession
	}
	if !s.IsExpired(g.now()) {
		return s, nil
	}

	fresh, err := g.refresh(ctx, s.RefreshToken)
	if err != nil {
		if errors.Is(err, gateway.ErrSessionExpired) {
			g.setSession(nil)
			g.emit(models.EventSignedOut, nil)
		}
		return nil, err
	}
	g.setSession(fresh)
	g.log.Debug("session refreshed", sl.UserID(fresh.User.ID))
	g.emit(models.EventTokenRefreshed, fresh)
	return fresh, nil
}

func (g *Gateway) ownerOnly(s *models.Session, userID string) error {
	if s.User.ID != userID {
		return &gateway.APIError{Status: 403, Code: "42501", Message: "row violates row-level security policy"}
	}
	return nil
}

func mapStorageErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s: %w", op, gateway.ErrNotFound)
	case errors.Is(err, storage.ErrAlreadyExists):
		return fmt.Errorf("%s: %w", op, gateway.ErrAlreadyExists)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
