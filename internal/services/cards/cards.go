// Package cards управляет коллекцией платёжных карт вошедшего пользователя
// и синхронизирует её с удалённой таблицей Tarjetas.
package cards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/camballey/tucan/internal/gateway"
	"github.com/camballey/tucan/internal/lib/metrics"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
)

// DefaultLimit максимальное число карт по умолчанию.
const DefaultLimit = 5

var (
	ErrCardLimit       = errors.New("card limit reached")
	ErrCardNotFound    = errors.New("card not found")
	ErrNegativeBalance = errors.New("balance cannot be negative")
	ErrNoOwner         = errors.New("no signed-in user")
	ErrEmptyAlias      = errors.New("alias is required")
	ErrInvalidKind     = errors.New("invalid card kind")
	ErrCardsNotLoaded  = errors.New("cards are not loaded")
)

// Gateway удалённый шлюз таблицы Tarjetas.
type Gateway interface {
	ListCards(ctx context.Context, userID string) ([]models.Card, error)
	InsertCard(ctx context.Context, c models.NewCard) (*models.Card, error)
	UpdateCard(ctx context.Context, id string, patch models.CardPatch) (*models.Card, error)
	DeleteCard(ctx context.Context, id string) error
	CardSchema(ctx context.Context) (models.CardSchema, error)
}

// Manager коллекция карт одного владельца. Все изменения выполняются
// под блокировкой операций, поэтому проверка лимита и вставка атомарны.
type Manager struct {
	gw    Gateway
	log   *slog.Logger
	limit int

	opMu sync.Mutex

	mu         sync.RWMutex
	owner      string
	generation uint64
	// loaded true, если коллекция текущего поколения прочитана у шлюза
	loaded bool
	cards  []models.Card
	schema     models.CardSchema

	// codeGen генерирует код карты, подменяется в тестах.
	codeGen func() string
}

// New создаёт менеджер. limit <= 0 заменяется на DefaultLimit.
func New(gw Gateway, limit int, log *slog.Logger) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{
		gw:      gw,
		log:     log,
		limit:   limit,
		cards:   make([]models.Card, 0),
		codeGen: generateCode,
	}
}

// generateCode возвращает код вида T-NNNN, NNNN в диапазоне 1000..9999.
func generateCode() string {
	return "T-" + strconv.Itoa(1000+rand.IntN(9000))
}

// Limit максимальное число карт.
func (m *Manager) Limit() int {
	return m.limit
}

// LoadSchema читает у шлюза, какие необязательные колонки есть в Tarjetas.
// При ошибке остаётся базовая схема.
func (m *Manager) LoadSchema(ctx context.Context) error {
	const op = "cards.LoadSchema"

	schema, err := m.gw.CardSchema(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m.mu.Lock()
	m.schema = schema
	m.mu.Unlock()
	m.log.Info("card schema loaded",
		slog.Bool("colors", schema.HasColors),
		slog.Bool("trip_count", schema.HasTripCount),
		slog.String("version", schema.Version),
	)
	return nil
}

// Schema текущее описание схемы.
func (m *Manager) Schema() models.CardSchema {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schema
}

// SetOwner переключает владельца коллекции. При смене владельца коллекция
// очищается, а результаты начатых ранее Refresh отбрасываются.
func (m *Manager) SetOwner(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner == userID {
		return
	}
	m.owner = userID
	m.generation++
	m.loaded = false
	m.cards = make([]models.Card, 0)
}

// Owner текущий владелец.
func (m *Manager) Owner() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.owner
}

// Cards копия коллекции в порядке вставки.
func (m *Manager) Cards() []models.Card {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.cards)
}

// Refresh перечитывает коллекцию целиком. Без владельца коллекция пуста.
func (m *Manager) Refresh(ctx context.Context) error {
	const op = "cards.Refresh"

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.refresh(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// refresh вызывается под opMu.
func (m *Manager) refresh(ctx context.Context) error {
	m.mu.RLock()
	owner, gen := m.owner, m.generation
	m.mu.RUnlock()

	if owner == "" {
		m.mu.Lock()
		m.cards = make([]models.Card, 0)
		m.loaded = true
		m.mu.Unlock()
		return nil
	}

	list, err := m.gw.ListCards(ctx, owner)
	if err != nil {
		metrics.CardOps.WithLabelValues("refresh", metrics.Result(err)).Inc()
		return err
	}
	metrics.CardOps.WithLabelValues("refresh", "ok").Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		m.log.Debug("discarding stale card list", sl.UserID(owner))
		return nil
	}
	m.cards = slices.Clone(list)
	m.loaded = true
	return nil
}

// CreateCard создаёт карту с нулевым балансом. Пустой kind означает VIRTUAL.
func (m *Manager) CreateCard(ctx context.Context, alias string, kind models.CardKind) (card models.Card, err error) {
	const op = "cards.CreateCard"
	defer func() { metrics.CardOps.WithLabelValues("create", result(err)).Inc() }()

	alias = strings.TrimSpace(alias)
	if alias == "" {
		return models.Card{}, fmt.Errorf("%s: %w", op, ErrEmptyAlias)
	}
	if kind == "" {
		kind = models.CardVirtual
	}
	if !kind.Valid() {
		return models.Card{}, fmt.Errorf("%s: %w", op, ErrInvalidKind)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	owner, loaded := m.owner, m.loaded
	m.mu.RUnlock()

	if owner == "" {
		return models.Card{}, fmt.Errorf("%s: %w", op, ErrNoOwner)
	}
	// лимит проверяется только по коллекции, прочитанной у шлюза
	if !loaded {
		if err := m.refresh(ctx); err != nil {
			return models.Card{}, fmt.Errorf("%s: load cards: %w", op, err)
		}
	}

	m.mu.RLock()
	owner, gen, count, schema := m.owner, m.generation, len(m.cards), m.schema
	loaded = m.loaded
	m.mu.RUnlock()

	if owner == "" {
		return models.Card{}, fmt.Errorf("%s: %w", op, ErrNoOwner)
	}
	if !loaded {
		// владелец сменился во время чтения
		return models.Card{}, fmt.Errorf("%s: %w", op, ErrCardsNotLoaded)
	}
	if count >= m.limit {
		return models.Card{}, fmt.Errorf("%s: %w", op, ErrCardLimit)
	}

	nc := models.NewCard{
		UserID: owner,
		Alias:  alias,
		Codigo: m.codeGen(),
		Saldo:  decimal.Zero,
		Activa: true,
		Tipo:   kind,
	}
	if schema.HasColors {
		colorA, colorB := models.DefaultColors(kind)
		nc.ColorA, nc.ColorB = &colorA, &colorB
	}
	if schema.HasTripCount {
		nc.ViajesMes = models.Ptr(0)
	}

	created, err := m.gw.InsertCard(ctx, nc)
	if err != nil {
		return models.Card{}, fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation == gen {
		m.cards = append(m.cards, *created)
	}
	m.log.Info("card created", sl.UserID(owner), slog.String("card_id", created.ID), slog.String("codigo", created.Codigo))
	return *created, nil
}

// ToggleActive переключает флаг activa и принимает строку, возвращённую шлюзом.
func (m *Manager) ToggleActive(ctx context.Context, id string) (card models.Card, err error) {
	const op = "cards.ToggleActive"
	defer func() { metrics.CardOps.WithLabelValues("toggle", result(err)).Inc() }()

	m.opMu.Lock()
	defer m.opMu.Unlock()

	cur, gen, ok := m.find(id)
	if !ok {
		return models.Card{}, fmt.Errorf("%s: %w", op, ErrCardNotFound)
	}
	activa := !cur.Activa
	updated, err := m.gw.UpdateCard(ctx, id, models.CardPatch{Activa: &activa})
	if err != nil {
		return models.Card{}, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	m.replace(gen, *updated)
	return *updated, nil
}

// AdjustBalance изменяет баланс на delta. Отрицательный итог отклоняется
// без обращения к шлюзу.
func (m *Manager) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (card models.Card, err error) {
	const op = "cards.AdjustBalance"
	defer func() { metrics.CardOps.WithLabelValues("balance", result(err)).Inc() }()

	m.opMu.Lock()
	defer m.opMu.Unlock()

	cur, gen, ok := m.find(id)
	if !ok {
		return models.Card{}, fmt.Errorf("%s: %w", op, ErrCardNotFound)
	}
	saldo := cur.Saldo.Add(delta).Round(2)
	if saldo.IsNegative() {
		return models.Card{}, fmt.Errorf("%s: %w", op, ErrNegativeBalance)
	}
	updated, err := m.gw.UpdateCard(ctx, id, models.CardPatch{Saldo: &saldo})
	if err != nil {
		return models.Card{}, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	m.replace(gen, *updated)
	return *updated, nil
}

// DeleteCard удаляет карту. Неизвестный локально id даёт ErrCardNotFound.
// Локальная запись удаляется только после подтверждения шлюза; если строки
// уже нет удалённо, она тоже убирается локально.
func (m *Manager) DeleteCard(ctx context.Context, id string) (err error) {
	const op = "cards.DeleteCard"
	defer func() { metrics.CardOps.WithLabelValues("delete", result(err)).Inc() }()

	m.opMu.Lock()
	defer m.opMu.Unlock()

	_, gen, ok := m.find(id)
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrCardNotFound)
	}
	if err := m.gw.DeleteCard(ctx, id); err != nil {
		if !errors.Is(err, gateway.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}
		m.log.Warn("card already deleted remotely", slog.String("card_id", id))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return nil
	}
	m.cards = slices.DeleteFunc(m.cards, func(c models.Card) bool { return c.ID == id })
	return nil
}

func (m *Manager) find(id string) (models.Card, uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.cards {
		if c.ID == id {
			return c, m.generation, true
		}
	}
	return models.Card{}, m.generation, false
}

func (m *Manager) replace(gen uint64, card models.Card) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return
	}
	for i := range m.cards {
		if m.cards[i].ID == card.ID {
			m.cards[i] = card
			return
		}
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, gateway.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrCardNotFound, err)
	}
	return err
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCardLimit):
		return "limit"
	case errors.Is(err, ErrCardNotFound):
		return "not_found"
	case errors.Is(err, ErrNegativeBalance), errors.Is(err, ErrEmptyAlias), errors.Is(err, ErrInvalidKind):
		return "rejected"
	default:
		return metrics.Result(err)
	}
}
