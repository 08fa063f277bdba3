package direct

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camballey/tucan/internal/gateway"
	"github.com/camballey/tucan/internal/lib/jwt"
	"github.com/camballey/tucan/internal/lib/metrics"
	"github.com/camballey/tucan/internal/lib/password"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
	"github.com/camballey/tucan/internal/storage"
)

// SignIn проверяет email и пароль и открывает сессию.
func (g *Gateway) SignIn(ctx context.Context, email, pass string) (s *models.Session, err error) {
	const op = "direct.SignIn"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "SignIn", start, err) }(time.Now())

	u, hash, err := g.store.GetAuthUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, gateway.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(hash, pass); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, fmt.Errorf("%s: %w", op, gateway.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s, err = g.issueSession(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	g.setSession(s)
	g.log.Info("signed in", sl.UserID(u.ID))
	g.emit(models.EventSignedIn, s)
	return s.Clone(), nil
}

// SignUp регистрирует учётную запись. Прямой шлюз подтверждает email сразу,
// поэтому сессия всегда открывается.
func (g *Gateway) SignUp(ctx context.Context, email, pass, fullName string) (s *models.Session, u *models.AuthUser, err error) {
	const op = "direct.SignUp"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "SignUp", start, err) }(time.Now())

	if err := password.Validate(pass); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, &gateway.APIError{Status: 422, Code: "weak_password", Message: err.Error()})
	}
	hash, err := password.GetHash(pass)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	u, err = g.store.CreateAuthUser(ctx, normalizeEmail(email), hash, strings.TrimSpace(fullName))
	if err != nil {
		return nil, nil, mapStorageErr(op, err)
	}

	s, err = g.issueSession(ctx, u)
	if err != nil {
		return nil, u, fmt.Errorf("%s: %w", op, err)
	}
	g.setSession(s)
	g.log.Info("signed up", sl.UserID(u.ID))
	g.emit(models.EventSignedIn, s)
	return s.Clone(), u, nil
}

// SignOut отзывает refresh-токен и сбрасывает сессию. Локальный сброс
// выполняется даже при ошибке хранилища.
func (g *Gateway) SignOut(ctx context.Context) (err error) {
	const op = "direct.SignOut"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "SignOut", start, err) }(time.Now())

	s := g.Session()
	if s == nil {
		return nil
	}
	g.setSession(nil)
	g.emit(models.EventSignedOut, nil)

	if err := g.store.RevokeRefreshToken(ctx, s.RefreshToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetSession восстанавливает сохранённую сессию. Просроченный access-токен
// обменивается по refresh-токену.
func (g *Gateway) SetSession(ctx context.Context, saved models.Session) (s *models.Session, err error) {
	const op = "direct.SetSession"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "SetSession", start, err) }(time.Now())

	claims, perr := g.tokens.ParseToken(saved.AccessToken)
	switch {
	case perr == nil && !saved.IsExpired(g.now()):
		u, err := g.store.GetAuthUser(ctx, claims.UserID())
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, gateway.ErrSessionExpired)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s = saved.Clone()
		s.User = *u
		g.setSession(s)
		g.emit(models.EventSignedIn, s)
		return s.Clone(), nil
	case perr == nil, errors.Is(perr, jwt.ErrTokenExpired):
		s, err = g.refresh(ctx, saved.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		g.setSession(s)
		g.emit(models.EventTokenRefreshed, s)
		return s.Clone(), nil
	default:
		g.log.Warn("rejected stored access token", sl.Err(perr))
		return nil, fmt.Errorf("%s: %w", op, gateway.ErrSessionExpired)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
