package session

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/go-playground/validator"

	"github.com/camballey/tucan/internal/cache"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
)

var phoneRe = regexp.MustCompile(`^\+?\d{7,15}$`)

func validPhone(fl validator.FieldLevel) bool {
	return phoneRe.MatchString(fl.Field().String())
}

// newValidator паникует, если правило не зарегистрировалось.
func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("phone", validPhone); err != nil {
		panic(err)
	}
	return v
}

// readSession читает сессию из кэша. Испорченная или неполная запись удаляется.
func (m *Manager) readSession(ctx context.Context) (*models.Session, bool) {
	raw, ok, err := m.store.GetString(ctx, cache.KeySession)
	if err != nil {
		m.log.Warn("failed to read cached session", sl.Err(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var s models.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || !s.Valid() {
		m.log.Warn("discarding malformed cached session", sl.Err(err))
		m.clearCache(ctx)
		return nil, false
	}
	return &s, true
}

// readProfile читает профиль из кэша, если он принадлежит userID.
func (m *Manager) readProfile(ctx context.Context, userID string) *models.UserProfile {
	raw, ok, err := m.store.GetString(ctx, cache.KeyProfile)
	if err != nil {
		m.log.Warn("failed to read cached profile", sl.Err(err))
		return nil
	}
	if !ok {
		return nil
	}

	var p models.UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.ID != userID {
		m.log.Warn("discarding stale cached profile", sl.Err(err))
		m.removeKeys(ctx, cache.KeyProfile)
		return nil
	}
	return &p
}

func (m *Manager) writeSession(ctx context.Context, s *models.Session) {
	m.writeJSON(ctx, cache.KeySession, s)
}

func (m *Manager) writeProfile(ctx context.Context, p *models.UserProfile) {
	if p == nil {
		m.removeKeys(ctx, cache.KeyProfile)
		return
	}
	m.writeJSON(ctx, cache.KeyProfile, p)
}

func (m *Manager) writeJSON(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		m.log.Error("failed to encode cache value", "key", key, sl.Err(err))
		return
	}
	if err := m.store.SetString(ctx, key, string(raw)); err != nil {
		m.log.Warn("failed to write cache", "key", key, sl.Err(err))
	}
}

func (m *Manager) clearCache(ctx context.Context) {
	m.removeKeys(ctx, cache.KeySession, cache.KeyProfile)
}

func (m *Manager) removeKeys(ctx context.Context, keys ...string) {
	if err := m.store.MultiRemove(ctx, keys...); err != nil {
		m.log.Warn("failed to clear cache", "keys", keys, sl.Err(err))
	}
}
