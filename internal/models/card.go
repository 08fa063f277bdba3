package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CardKind вид платёжного инструмента.
type CardKind string

const (
	CardPhysical CardKind = "FISICA"
	CardVirtual  CardKind = "VIRTUAL"
)

// Valid сообщает, известен ли вид карты.
func (k CardKind) Valid() bool {
	return k == CardPhysical || k == CardVirtual
}

// DefaultColors цвета градиента по умолчанию для вида карты.
func DefaultColors(k CardKind) (colorA, colorB string) {
	if k == CardPhysical {
		return "#42af56", "#2e8741"
	}
	return "#0d5f2b", "#064420"
}

// Card запись таблицы Tarjetas.
type Card struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Alias          string          `json:"alias"`
	Codigo         string          `json:"codigo"`
	Saldo          decimal.Decimal `json:"saldo"`
	Activa         bool            `json:"activa"`
	Tipo           CardKind        `json:"tipo"`
	ColorA         *string         `json:"colorA,omitempty"`
	ColorB         *string         `json:"colorB,omitempty"`
	ViajesMes      *int            `json:"viajesMes,omitempty"`
	UltimoAbordaje *string         `json:"ultimoAbordaje,omitempty"`
	RutaUltima     *string         `json:"rutaUltima,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// SaldoText баланс с двумя знаками после запятой.
func (c *Card) SaldoText() string {
	return c.Saldo.StringFixed(2)
}

// NewCard строка для вставки в Tarjetas. Необязательные колонки
// передаются только если они есть в удалённой схеме.
type NewCard struct {
	UserID    string          `json:"user_id"`
	Alias     string          `json:"alias"`
	Codigo    string          `json:"codigo"`
	Saldo     decimal.Decimal `json:"saldo"`
	Activa    bool            `json:"activa"`
	Tipo      CardKind        `json:"tipo"`
	ColorA    *string         `json:"colorA,omitempty"`
	ColorB    *string         `json:"colorB,omitempty"`
	ViajesMes *int            `json:"viajesMes,omitempty"`
}

// CardPatch частичное обновление карты.
type CardPatch struct {
	Activa *bool            `json:"activa,omitempty"`
	Saldo  *decimal.Decimal `json:"saldo,omitempty"`
}

// CardSchema описание необязательных колонок Tarjetas, доступных в удалённой схеме.
type CardSchema struct {
	HasColors    bool   `json:"has_colors"`
	HasTripCount bool   `json:"has_trip_count"`
	Version      string `json:"version"`
}
