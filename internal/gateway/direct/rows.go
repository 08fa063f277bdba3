package direct

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/camballey/tucan/internal/lib/metrics"
	"github.com/camballey/tucan/internal/models"
	"github.com/camballey/tucan/internal/storage"
)

// GetProfile читает строку Usuarios. Чужие строки невидимы: ErrNotFound.
func (g *Gateway) GetProfile(ctx context.Context, id string) (p *models.UserProfile, err error) {
	const op = "direct.GetProfile"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "GetProfile", start, err) }(time.Now())

	s, err := g.ensureSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.User.ID != id {
		return nil, mapStorageErr(op, storage.ErrNotFound)
	}
	p, err = g.store.GetUsuario(ctx, id)
	if err != nil {
		return nil, mapStorageErr(op, err)
	}
	return p, nil
}

// InsertProfile создаёт строку Usuarios текущего пользователя.
func (g *Gateway) InsertProfile(ctx context.Context, p models.UserProfile) (created *models.UserProfile, err error) {
	const op = "direct.InsertProfile"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "InsertProfile", start, err) }(time.Now())

	s, err := g.ensureSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := g.ownerOnly(s, p.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	created, err = g.store.InsertUsuario(ctx, p)
	if err != nil {
		return nil, mapStorageErr(op, err)
	}
	return created, nil
}

// UpdateProfile обновляет строку Usuarios текущего пользователя.
func (g *Gateway) UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (err error) {
	const op = "direct.UpdateProfile"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "UpdateProfile", start, err) }(time.Now())

	s, err := g.ensureSession(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.User.ID != id {
		return mapStorageErr(op, storage.ErrNotFound)
	}
	if err := g.store.UpdateUsuario(ctx, id, patch); err != nil {
		return mapStorageErr(op, err)
	}
	return nil
}

// ListCards возвращает карты владельца. Для чужого владельца список пуст.
func (g *Gateway) ListCards(ctx context.Context, userID string) (cards []models.Card, err error) {
	const op = "direct.ListCards"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "ListCards", start, err) }(time.Now())

	s, err := g.ensureSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.User.ID != userID {
		return []models.Card{}, nil
	}
	cards, err = g.store.ListTarjetas(ctx, userID)
	if err != nil {
		return nil, mapStorageErr(op, err)
	}
	return cards, nil
}

// InsertCard вставляет карту текущего пользователя.
func (g *Gateway) InsertCard(ctx context.Context, c models.NewCard) (card *models.Card, err error) {
	const op = "direct.InsertCard"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "InsertCard", start, err) }(time.Now())

	s, err := g.ensureSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := g.ownerOnly(s, c.UserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	card, err = g.store.InsertTarjeta(ctx, c)
	if err != nil {
		return nil, mapStorageErr(op, err)
	}
	return card, nil
}

// UpdateCard применяет патч к карте текущего пользователя.
func (g *Gateway) UpdateCard(ctx context.Context, id string, patch models.CardPatch) (card *models.Card, err error) {
	const op = "direct.UpdateCard"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "UpdateCard", start, err) }(time.Now())

	s, err := g.ensureSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	card, err = g.store.UpdateTarjeta(ctx, id, s.User.ID, patch)
	if err != nil {
		return nil, mapStorageErr(op, err)
	}
	return card, nil
}

// DeleteCard удаляет карту текущего пользователя.
func (g *Gateway) DeleteCard(ctx context.Context, id string) (err error) {
	const op = "direct.DeleteCard"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "DeleteCard", start, err) }(time.Now())

	s, err := g.ensureSession(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := g.store.DeleteTarjeta(ctx, id, s.User.ID); err != nil {
		return mapStorageErr(op, err)
	}
	return nil
}

// CardSchema описывает необязательные колонки Tarjetas по information_schema.
// Сессия не нужна: это метаданные схемы.
func (g *Gateway) CardSchema(ctx context.Context) (schema models.CardSchema, err error) {
	const op = "direct.CardSchema"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "CardSchema", start, err) }(time.Now())

	cols, err := g.store.TableColumns(ctx, "Tarjetas")
	if err != nil {
		return models.CardSchema{}, mapStorageErr(op, err)
	}
	schema = models.CardSchema{
		HasColors:    cols["colorA"] && cols["colorB"],
		HasTripCount: cols["viajesMes"],
	}
	if g.schemaVersion != nil {
		v, err := g.schemaVersion(ctx)
		if err != nil {
			return models.CardSchema{}, fmt.Errorf("%s: %w", op, err)
		}
		schema.Version = v
	}
	return schema, nil
}

// VersionFromMigrations адаптирует номер миграции к строковой версии схемы.
func VersionFromMigrations(fn func() (uint, bool, error)) func(ctx context.Context) (string, error) {
	return func(_ context.Context) (string, error) {
		v, dirty, err := fn()
		if err != nil {
			return "", err
		}
		if dirty {
			return strconv.FormatUint(uint64(v), 10) + "-dirty", nil
		}
		return strconv.FormatUint(uint64(v), 10), nil
	}
}
