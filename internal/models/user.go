// Package models содержит доменные модели клиентского ядра:
// сессию, профиль пользователя, платёжные карты и уведомления об оплате.
// Структуры используются менеджерами, шлюзами и локальным кэшем.
package models

import (
	"strings"
	"time"
)

// Role классификация пользователя, одна из четырёх взаимоисключающих.
type Role int

const (
	RolePassenger Role = 1 // пассажир
	RoleDriver    Role = 2 // водитель (chofer)
	RoleOwner     Role = 3 // владелец микроавтобуса (dueño)
	RoleUnion     Role = 4 // представитель профсоюза (sindicato)
)

// Valid сообщает, входит ли значение в диапазон 1..4.
func (r Role) Valid() bool {
	return r >= RolePassenger && r <= RoleUnion
}

func (r Role) String() string {
	switch r {
	case RolePassenger:
		return "passenger"
	case RoleDriver:
		return "chofer"
	case RoleOwner:
		return "dueno"
	case RoleUnion:
		return "sindicato"
	default:
		return "unknown"
	}
}

// Stage этап заполненности профиля.
type Stage string

const (
	StageNeedsContactInfo Stage = "needs_contact_info"
	StageNeedsRole        Stage = "needs_role"
	StageComplete         Stage = "complete"
)

// UserProfile запись таблицы Usuarios.
// Необязательные поля хранятся указателями: отсутствующее поле
// остаётся отсутствующим после сериализации в кэш и обратно.
type UserProfile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Tipo         *Role     `json:"tipo,omitempty"`
	Telefono     *string   `json:"telefono,omitempty"`
	NumeroCuenta *string   `json:"numero_cuenta,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasContactInfo true, если заданы и не пусты телефон и номер счёта.
func (p *UserProfile) HasContactInfo() bool {
	return nonBlank(p.Telefono) && nonBlank(p.NumeroCuenta)
}

// HasRole true, если роль задана и корректна.
func (p *UserProfile) HasRole() bool {
	return p.Tipo != nil && p.Tipo.Valid()
}

// Stage возвращает этап заполненности. Контактные данные проверяются раньше роли.
func (p *UserProfile) Stage() Stage {
	if !p.HasContactInfo() {
		return StageNeedsContactInfo
	}
	if !p.HasRole() {
		return StageNeedsRole
	}
	return StageComplete
}

// Complete true, если профиль прошёл оба этапа.
func (p *UserProfile) Complete() bool {
	return p.Stage() == StageComplete
}

// Clone возвращает глубокую копию профиля.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Tipo != nil {
		t := *p.Tipo
		c.Tipo = &t
	}
	c.Telefono = cloneString(p.Telefono)
	c.NumeroCuenta = cloneString(p.NumeroCuenta)
	return &c
}

// ProfilePatch частичное обновление профиля, nil-поля не меняются.
type ProfilePatch struct {
	FullName     *string `json:"full_name,omitempty"`
	Tipo         *Role   `json:"tipo,omitempty"`
	Telefono     *string `json:"telefono,omitempty"`
	NumeroCuenta *string `json:"numero_cuenta,omitempty"`
}

// Empty true, если патч ничего не меняет.
func (p ProfilePatch) Empty() bool {
	return p.FullName == nil && p.Tipo == nil && p.Telefono == nil && p.NumeroCuenta == nil
}

// Apply переносит заданные поля патча в профиль.
func (p ProfilePatch) Apply(dst *UserProfile) {
	if p.FullName != nil {
		dst.FullName = *p.FullName
	}
	if p.Tipo != nil {
		t := *p.Tipo
		dst.Tipo = &t
	}
	if p.Telefono != nil {
		dst.Telefono = cloneString(p.Telefono)
	}
	if p.NumeroCuenta != nil {
		dst.NumeroCuenta = cloneString(p.NumeroCuenta)
	}
}

func nonBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Ptr возвращает указатель на копию значения.
func Ptr[T any](v T) *T {
	return &v
}
