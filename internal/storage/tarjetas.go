package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camballey/tucan/internal/models"
)

// Строки Tarjetas читаются через to_jsonb: набор необязательных колонок
// зависит от версии схемы, а JSON-теги models.Card совпадают с именами колонок.

// ListTarjetas возвращает карты пользователя по возрастанию created_at.
func (s *Storage) ListTarjetas(ctx context.Context, userID string) ([]models.Card, error) {
	const op = "storage.ListTarjetas"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT to_jsonb(t) FROM "Tarjetas" t WHERE t.user_id = $1 ORDER BY t.created_at ASC, t.id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	cards := make([]models.Card, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		var c models.Card
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%s: decode row: %w", op, err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cards, nil
}

// InsertTarjeta вставляет карту. Необязательные колонки попадают в запрос,
// только если заданы в NewCard.
func (s *Storage) InsertTarjeta(ctx context.Context, c models.NewCard) (*models.Card, error) {
	const op = "storage.InsertTarjeta"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	columns := []string{"user_id", "alias", "codigo", "saldo", "activa", "tipo"}
	args := []any{c.UserID, c.Alias, c.Codigo, c.Saldo, c.Activa, string(c.Tipo)}
	if c.ColorA != nil {
		columns = append(columns, `"colorA"`)
		args = append(args, *c.ColorA)
	}
	if c.ColorB != nil {
		columns = append(columns, `"colorB"`)
		args = append(args, *c.ColorB)
	}
	if c.ViajesMes != nil {
		columns = append(columns, `"viajesMes"`)
		args = append(args, *c.ViajesMes)
	}
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO "Tarjetas" AS t (%s) VALUES (%s) RETURNING to_jsonb(t)`,
		strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	card, err := s.scanCard(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return card, nil
}

// UpdateTarjeta применяет патч к карте владельца и возвращает обновлённую строку.
func (s *Storage) UpdateTarjeta(ctx context.Context, id, userID string, patch models.CardPatch) (*models.Card, error) {
	const op = "storage.UpdateTarjeta"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sets := []string{"updated_at = NOW()"}
	var args []any
	if patch.Activa != nil {
		args = append(args, *patch.Activa)
		sets = append(sets, fmt.Sprintf("activa = $%d", len(args)))
	}
	if patch.Saldo != nil {
		args = append(args, *patch.Saldo)
		sets = append(sets, fmt.Sprintf("saldo = $%d", len(args)))
	}
	args = append(args, id, userID)
	query := fmt.Sprintf(`UPDATE "Tarjetas" AS t SET %s WHERE t.id = $%d AND t.user_id = $%d RETURNING to_jsonb(t)`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	card, err := s.scanCard(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return card, nil
}

// DeleteTarjeta удаляет карту владельца. ErrNotFound, если строки нет.
func (s *Storage) DeleteTarjeta(ctx context.Context, id, userID string) error {
	const op = "storage.DeleteTarjeta"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM "Tarjetas" WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
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

func (s *Storage) scanCard(ctx context.Context, query string, args ...any) (*models.Card, error) {
	var raw []byte
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return nil, mapError(err)
	}
	var c models.Card
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return &c, nil
}
