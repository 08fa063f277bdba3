package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/camballey/tucan/internal/models"
)

// GetUsuario возвращает профиль по идентификатору.
func (s *Storage) GetUsuario(ctx context.Context, id string) (*models.UserProfile, error) {
	const op = "storage.GetUsuario"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, email, full_name, tipo, telefono, numero_cuenta, created_at
			  FROM "Usuarios" WHERE id = $1`
	var (
		p            models.UserProfile
		tipo         sql.NullInt32
		telefono     sql.NullString
		numeroCuenta sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Email, &p.FullName, &tipo, &telefono, &numeroCuenta, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	if tipo.Valid {
		r := models.Role(tipo.Int32)
		p.Tipo = &r
	}
	p.Telefono = stringPtr(telefono)
	p.NumeroCuenta = stringPtr(numeroCuenta)
	return &p, nil
}

// InsertUsuario создаёт запись профиля и возвращает её из базы.
func (s *Storage) InsertUsuario(ctx context.Context, p models.UserProfile) (*models.UserProfile, error) {
	const op = "storage.InsertUsuario"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var tipo sql.NullInt32
	if p.Tipo != nil {
		tipo = sql.NullInt32{Int32: int32(*p.Tipo), Valid: true}
	}
	query := `INSERT INTO "Usuarios" (id, email, full_name, tipo, telefono, numero_cuenta, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.DB.ExecContext(ctx, query,
		p.ID, p.Email, p.FullName, tipo, nullString(p.Telefono), nullString(p.NumeroCuenta), p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return s.GetUsuario(ctx, p.ID)
}

// UpdateUsuario применяет частичное обновление профиля.
func (s *Storage) UpdateUsuario(ctx context.Context, id string, patch models.ProfilePatch) error {
	const op = "storage.UpdateUsuario"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if patch.Empty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.FullName != nil {
		add("full_name", *patch.FullName)
	}
	if patch.Tipo != nil {
		add("tipo", int(*patch.Tipo))
	}
	if patch.Telefono != nil {
		add("telefono", *patch.Telefono)
	}
	if patch.NumeroCuenta != nil {
		add("numero_cuenta", *patch.NumeroCuenta)
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE "Usuarios" SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	result, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
