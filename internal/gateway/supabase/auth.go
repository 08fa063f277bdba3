package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/camballey/tucan/internal/gateway"
	"github.com/camballey/tucan/internal/lib/metrics"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
)

type userResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	UserMetadata struct {
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
}

func (u userResponse) toModel() models.AuthUser {
	return models.AuthUser{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.UserMetadata.FullName,
		CreatedAt: u.CreatedAt,
	}
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

// signUpResponse при включённом подтверждении email хостинг
// возвращает пользователя на верхнем уровне и без токенов.
type signUpResponse struct {
	tokenResponse
	userResponse
}

func (c *Client) toSession(t tokenResponse) *models.Session {
	expiresAt := time.Unix(t.ExpiresAt, 0).UTC()
	if t.ExpiresAt == 0 {
		expiresAt = c.now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return &models.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresAt:    expiresAt,
		User:         t.User.toModel(),
	}
}

func mapAuthError(err error) error {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
		switch apiErr.Code {
		case "invalid_grant", "invalid_credentials":
			return gateway.ErrInvalidCredentials
		}
	}
	return err
}

// SignIn входит по email и паролю.
func (c *Client) SignIn(ctx context.Context, email, password string) (s *models.Session, err error) {
	const op = "supabase.SignIn"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "SignIn", start, err) }(time.Now())

	var resp tokenResponse
	err = c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": strings.TrimSpace(email), "password": password},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapAuthError(err))
	}

	s = c.toSession(resp)
	c.setSession(s)
	c.log.Info("signed in", sl.UserID(s.User.ID))
	c.emit(models.EventSignedIn, s)
	return s.Clone(), nil
}

// SignUp регистрирует пользователя с метаданными full_name.
// Если хостинг требует подтверждения email, сессия равна nil.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (s *models.Session, u *models.AuthUser, err error) {
	const op = "supabase.SignUp"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "SignUp", start, err) }(time.Now())

	var resp signUpResponse
	err = c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body: map[string]any{
			"email":    strings.TrimSpace(email),
			"password": password,
			"data":     map[string]string{"full_name": strings.TrimSpace(fullName)},
		},
	}, &resp)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if resp.AccessToken == "" {
		user := resp.userResponse.toModel()
		c.log.Info("signed up, confirmation pending", sl.UserID(user.ID))
		return nil, &user, nil
	}

	s = c.toSession(resp.tokenResponse)
	c.setSession(s)
	c.log.Info("signed up", sl.UserID(s.User.ID))
	c.emit(models.EventSignedIn, s)
	user := s.User
	return s.Clone(), &user, nil
}

// SignOut завершает сессию на хостинге. Локальная сессия сбрасывается всегда.
func (c *Client) SignOut(ctx context.Context) (err error) {
	const op = "supabase.SignOut"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "SignOut", start, err) }(time.Now())

	s := c.Session()
	if s == nil {
		return nil
	}
	c.setSession(nil)
	c.emit(models.EventSignedOut, nil)

	err = c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", token: s.AccessToken}, nil)
	if err != nil && !isUnauthorized(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetSession восстанавливает сохранённую сессию: действующий токен
// проверяется запросом пользователя, просроченный обменивается по refresh-токену.
func (c *Client) SetSession(ctx context.Context, saved models.Session) (s *models.Session, err error) {
	const op = "supabase.SetSession"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "SetSession", start, err) }(time.Now())

	if !saved.IsExpired(c.now()) {
		var user userResponse
		err = c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", token: saved.AccessToken}, &user)
		if err == nil {
			s = saved.Clone()
			s.User = user.toModel()
			c.setSession(s)
			c.emit(models.EventSignedIn, s)
			return s.Clone(), nil
		}
		if !isUnauthorized(err) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	c.refreshMu.Lock()
	s, err = c.refresh(ctx, saved.RefreshToken)
	c.refreshMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.setSession(s)
	c.emit(models.EventTokenRefreshed, s)
	return s.Clone(), nil
}

// refresh обменивает refresh-токен на новую сессию.
func (c *Client) refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	if refreshToken == "" {
		return nil, gateway.ErrSessionExpired
	}
	var resp tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
	}, &resp)
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return nil, gateway.ErrSessionExpired
		}
		return nil, err
	}
	return c.toSession(resp), nil
}
