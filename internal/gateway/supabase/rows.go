package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/camballey/tucan/internal/gateway"
	"github.com/camballey/tucan/internal/lib/metrics"
	"github.com/camballey/tucan/internal/models"
)

const (
	tableUsuarios = "/rest/v1/Usuarios"
	tableTarjetas = "/rest/v1/Tarjetas"

	preferRepresentation = "return=representation"
	preferMinimal        = "return=minimal"
)

func eq(v string) string {
	return "eq." + v
}

// GetProfile читает строку Usuarios по id.
func (c *Client) GetProfile(ctx context.Context, id string) (p *models.UserProfile, err error) {
	const op = "supabase.GetProfile"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "GetProfile", start, err) }(time.Now())

	s, err := c.ensureSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var rows []models.UserProfile
	err = c.do(ctx, request{
		method: http.MethodGet,
		path:   tableUsuarios,
		query:  url.Values{"select": {"*"}, "id": {eq(id)}},
		token:  s.AccessToken,
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", op, gateway.ErrNotFound)
	}
	return &rows[0], nil
}

// InsertProfile создаёт строку Usuarios и возвращает её представление.
func (c *Client) InsertProfile(ctx context.Context, p models.UserProfile) (created *models.UserProfile, err error) {
	const op = "supabase.InsertProfile"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "InsertProfile", start, err) }(time.Now())

	s, err := c.ensureSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var rows []models.UserProfile
	err = c.do(ctx, request{
		method: http.MethodPost,
		path:   tableUsuarios,
		body:   p,
		token:  s.AccessToken,
		prefer: preferRepresentation,
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(rows) == 0 {
		return &p, nil
	}
	return &rows[0], nil
}

// UpdateProfile применяет патч к строке Usuarios.
func (c *Client) UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (err error) {
	const op = "supabase.UpdateProfile"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "UpdateProfile", start, err) }(time.Now())

	s, err := c.ensureSession(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err = c.do(ctx, request{
		method: http.MethodPatch,
		path:   tableUsuarios,
		query:  url.Values{"id": {eq(id)}},
		body:   patch,
		token:  s.AccessToken,
		prefer: preferMinimal,
	}, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListCards возвращает карты пользователя по возрастанию created_at.
func (c *Client) ListCards(ctx context.Context, userID string) (cards []models.Card, err error) {
	const op = "supabase.ListCards"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "ListCards", start, err) }(time.Now())

	s, err := c.ensureSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	err = c.do(ctx, request{
		method: http.MethodGet,
		path:   tableTarjetas,
		query:  url.Values{"select": {"*"}, "user_id": {eq(userID)}, "order": {"created_at.asc"}},
		token:  s.AccessToken,
	}, &cards)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cards == nil {
		cards = make([]models.Card, 0)
	}
	return cards, nil
}

// InsertCard вставляет строку Tarjetas.
func (c *Client) InsertCard(ctx context.Context, nc models.NewCard) (card *models.Card, err error) {
	const op = "supabase.InsertCard"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "InsertCard", start, err) }(time.Now())

	s, err := c.ensureSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c.mutateCard(ctx, op, request{
		method: http.MethodPost,
		path:   tableTarjetas,
		body:   nc,
		token:  s.AccessToken,
		prefer: preferRepresentation,
	})
}

// UpdateCard применяет патч к строке Tarjetas и возвращает её новое состояние.
func (c *Client) UpdateCard(ctx context.Context, id string, patch models.CardPatch) (card *models.Card, err error) {
	const op = "supabase.UpdateCard"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "UpdateCard", start, err) }(time.Now())

	s, err := c.ensureSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	body := struct {
		models.CardPatch
		UpdatedAt time.Time `json:"updated_at"`
	}{patch, c.now().UTC()}
	return c.mutateCard(ctx, op, request{
		method: http.MethodPatch,
		path:   tableTarjetas,
		query:  url.Values{"id": {eq(id)}},
		body:   body,
		token:  s.AccessToken,
		prefer: preferRepresentation,
	})
}

// DeleteCard удаляет строку Tarjetas. Если строка не найдена (или скрыта
// политикой доступа), возвращает ErrNotFound.
func (c *Client) DeleteCard(ctx context.Context, id string) (err error) {
	const op = "supabase.DeleteCard"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "DeleteCard", start, err) }(time.Now())

	s, err := c.ensureSession(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = c.mutateCard(ctx, op, request{
		method: http.MethodDelete,
		path:   tableTarjetas,
		query:  url.Values{"id": {eq(id)}},
		token:  s.AccessToken,
		prefer: preferRepresentation,
	})
	return err
}

func (c *Client) mutateCard(ctx context.Context, op string, r request) (*models.Card, error) {
	var rows []models.Card
	if err := c.do(ctx, r, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", op, gateway.ErrNotFound)
	}
	return &rows[0], nil
}

type openAPIDoc struct {
	Info struct {
		Version string `json:"version"`
	} `json:"info"`
	Definitions map[string]struct {
		Properties map[string]any `json:"properties"`
	} `json:"definitions"`
}

// CardSchema читает описание Tarjetas из OpenAPI-документа PostgREST.
func (c *Client) CardSchema(ctx context.Context) (schema models.CardSchema, err error) {
	const op = "supabase.CardSchema"
	defer func(start time.Time) { metrics.ObserveGateway(adapter, "CardSchema", start, err) }(time.Now())

	var doc openAPIDoc
	err = c.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/",
		accept: "application/openapi+json",
	}, &doc)
	if err != nil {
		return models.CardSchema{}, fmt.Errorf("%s: %w", op, err)
	}
	def, ok := doc.Definitions["Tarjetas"]
	if !ok {
		return models.CardSchema{}, fmt.Errorf("%s: table Tarjetas: %w", op, gateway.ErrNotFound)
	}
	has := func(col string) bool {
		_, ok := def.Properties[col]
		return ok
	}
	return models.CardSchema{
		HasColors:    has("colorA") && has("colorB"),
		HasTripCount: has("viajesMes"),
		Version:      doc.Info.Version,
	}, nil
}
