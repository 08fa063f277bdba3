package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/camballey/tucan/internal/models"
)

// CreateAuthUser регистрирует учётную запись. ErrAlreadyExists при занятом email.
func (s *Storage) CreateAuthUser(ctx context.Context, email, passwordHash, fullName string) (*models.AuthUser, error) {
	const op = "storage.CreateAuthUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	u := models.AuthUser{ID: uuid.NewString(), Email: email, FullName: fullName}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO auth_users (id, email, password_hash, full_name) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		u.ID, email, passwordHash, fullName).Scan(&u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return &u, nil
}

// GetAuthUserByEmail возвращает учётную запись и хэш пароля.
func (s *Storage) GetAuthUserByEmail(ctx context.Context, email string) (*models.AuthUser, string, error) {
	const op = "storage.GetAuthUserByEmail"
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		u    models.AuthUser
		hash string
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, full_name, created_at FROM auth_users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &hash, &u.FullName, &u.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, mapError(err))
	}
	return &u, hash, nil
}

// GetAuthUser возвращает учётную запись по идентификатору.
func (s *Storage) GetAuthUser(ctx context.Context, id string) (*models.AuthUser, error) {
	const op = "storage.GetAuthUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var u models.AuthUser
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, full_name, created_at FROM auth_users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return &u, nil
}

// CreateRefreshToken сохраняет refresh-токен сессии.
func (s *Storage) CreateRefreshToken(ctx context.Context, token, userID string, expiresAt time.Time) error {
	const op = "storage.CreateRefreshToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO auth_sessions (refresh_token, user_id, expires_at) VALUES ($1, $2, $3)`,
		token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return nil
}

// ConsumeRefreshToken удаляет refresh-токен и возвращает его владельца.
// Токен одноразовый: повторный вызов вернёт ErrNotFound.
func (s *Storage) ConsumeRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	const op = "storage.ConsumeRefreshToken"
	select {
	case <-ctx.Done():
		return "", time.Time{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		userID    string
		expiresAt time.Time
	)
	err := s.DB.QueryRowContext(ctx,
		`DELETE FROM auth_sessions WHERE refresh_token = $1 RETURNING user_id, expires_at`, token).
		Scan(&userID, &expiresAt)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return userID, expiresAt, nil
}

// RevokeRefreshToken удаляет refresh-токен, отсутствие токена не ошибка.
func (s *Storage) RevokeRefreshToken(ctx context.Context, token string) error {
	const op = "storage.RevokeRefreshToken"
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM auth_sessions WHERE refresh_token = $1`, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
