// Package session управляет сессией аутентификации и зеркальным профилем
// пользователя. Состояние восстанавливается из хранилища на устройстве при
// холодном старте и сверяется с удалённым шлюзом.
//
// Публичные операции и обработка событий шлюза сериализованы одной
// блокировкой операций. События шлюза считаются подсказками: источником
// истины о текущей сессии остаётся Gateway.Session().
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator"

	"github.com/camballey/tucan/internal/cache"
	"github.com/camballey/tucan/internal/gateway"
	"github.com/camballey/tucan/internal/lib/notify"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
)

// DefaultFullName имя для профиля, синтезированного без метаданных.
const DefaultFullName = "Usuario"

var (
	ErrNoProfile          = errors.New("no profile loaded")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidContactInfo = errors.New("invalid contact info")
	ErrProfileUnavailable = errors.New("profile unavailable")
)

// Gateway удалённый шлюз аутентификации и таблицы Usuarios.
type Gateway interface {
	Session() *models.Session
	OnAuthStateChange(fn func(models.AuthEvent)) (unsubscribe func())
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password, fullName string) (*models.Session, *models.AuthUser, error)
	SignOut(ctx context.Context) error
	SetSession(ctx context.Context, s models.Session) (*models.Session, error)
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
	InsertProfile(ctx context.Context, p models.UserProfile) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) error
}

// Store хранилище ключ-значение на устройстве.
type Store interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string) error
	MultiRemove(ctx context.Context, keys ...string) error
}

// Snapshot неизменяемый снимок состояния менеджера.
type Snapshot struct {
	State   models.AuthState    `json:"state"`
	Session *models.Session     `json:"session,omitempty"`
	Profile *models.UserProfile `json:"profile,omitempty"`
}

// UserID id пользователя сессии или пустая строка.
func (s Snapshot) UserID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.User.ID
}

// SignUpResult результат регистрации. SignedIn=false означает, что
// сессия не выдана и пользователю нужно войти отдельно.
type SignUpResult struct {
	Snapshot Snapshot `json:"snapshot"`
	SignedIn bool     `json:"signed_in"`
}

// Manager владелец сессии и профиля.
type Manager struct {
	gw       Gateway
	store    Store
	log      *slog.Logger
	validate *validator.Validate
	now      func() time.Time

	opMu sync.Mutex

	mu      sync.RWMutex
	state   models.AuthState
	session *models.Session
	profile *models.UserProfile

	subs notify.Broadcaster[Snapshot]

	qmu    sync.Mutex
	queue  []models.AuthEvent
	signal chan struct{}

	subscribeOnce sync.Once
	unsubscribe   func()
	loopCtx       context.Context
	cancel        context.CancelFunc
	stopped       chan struct{}
	closeOnce     sync.Once
}

// New создаёт менеджер в состоянии initializing и запускает цикл событий.
// Менеджер нужно закрыть через Close.
func New(gw Gateway, store Store, log *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		gw:       gw,
		store:    store,
		log:      log,
		validate: newValidator(),
		now:      time.Now,
		state:    models.StateInitializing,
		signal:   make(chan struct{}, 1),
		loopCtx:  ctx,
		cancel:   cancel,
		stopped:  make(chan struct{}),
	}
	go m.loop()
	return m
}

// Init восстанавливает сессию из хранилища и подписывается на события шлюза.
// Испорченный кэш считается отсутствующим и удаляется.
func (m *Manager) Init(ctx context.Context) error {
	const op = "session.Init"
	log := m.log.With(sl.Op(op))

	m.subscribeOnce.Do(func() {
		m.unsubscribe = m.gw.OnAuthStateChange(m.enqueue)
	})

	m.opMu.Lock()
	defer m.opMu.Unlock()
	defer m.publish()

	cached, ok := m.readSession(ctx)
	if !ok {
		m.setLocal(nil, nil)
		return nil
	}
	cachedProfile := m.readProfile(ctx, cached.User.ID)

	s, err := m.gw.SetSession(ctx, *cached)
	if err != nil {
		if isAuthError(err) {
			log.Info("cached session rejected", sl.Err(err))
			m.clearCache(ctx)
			m.setLocal(nil, nil)
			return nil
		}
		if errors.Is(err, context.Canceled) {
			m.setLocal(nil, nil)
			return fmt.Errorf("%s: %w", op, err)
		}
		// шлюз недоступен: работаем с кэшем до следующей сверки
		log.Warn("gateway unavailable, using cached session", sl.Err(err))
		m.setLocal(cached, cachedProfile)
		return nil
	}

	m.setLocal(s, cachedProfile)
	m.writeSession(ctx, s)

	p, err := m.loadProfile(ctx, s.User)
	if err != nil {
		log.Warn("profile refresh failed", sl.Err(err), sl.UserID(s.User.ID))
		return nil
	}
	m.setProfile(ctx, p)
	return nil
}

// SignIn входит по email и паролю. Возвращается только после загрузки
// профиля, поэтому снимок сразу пригоден для выбора маршрута.
// При недоступном профиле сессия сохраняется, а ошибка оборачивает
// ErrProfileUnavailable или ошибку шлюза.
func (m *Manager) SignIn(ctx context.Context, email, password string) (Snapshot, error) {
	const op = "session.SignIn"

	m.opMu.Lock()
	defer m.opMu.Unlock()

	s, err := m.gw.SignIn(ctx, email, password)
	if err != nil {
		return m.Snapshot(), fmt.Errorf("%s: %w", op, err)
	}
	if err := m.establish(ctx, s); err != nil {
		return m.Snapshot(), fmt.Errorf("%s: %w", op, err)
	}
	return m.Snapshot(), nil
}

// SignUp регистрирует пользователя. Если шлюз сразу выдал сессию,
// профиль загружается так же, как при входе.
func (m *Manager) SignUp(ctx context.Context, email, password, fullName string) (SignUpResult, error) {
	const op = "session.SignUp"

	m.opMu.Lock()
	defer m.opMu.Unlock()

	s, _, err := m.gw.SignUp(ctx, email, password, fullName)
	if err != nil {
		return SignUpResult{Snapshot: m.Snapshot()}, fmt.Errorf("%s: %w", op, err)
	}
	if s == nil {
		return SignUpResult{Snapshot: m.Snapshot()}, nil
	}
	if err := m.establish(ctx, s); err != nil {
		return SignUpResult{Snapshot: m.Snapshot(), SignedIn: true}, fmt.Errorf("%s: %w", op, err)
	}
	return SignUpResult{Snapshot: m.Snapshot(), SignedIn: true}, nil
}

// SignOut выходит удалённо и всегда очищает локальное состояние и кэш.
func (m *Manager) SignOut(ctx context.Context) {
	const op = "session.SignOut"

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.gw.SignOut(ctx); err != nil {
		m.log.Warn("remote sign out failed", sl.Op(op), sl.Err(err))
	}
	m.clearCache(ctx)
	m.setLocal(nil, nil)
	m.publish()
}

// UpdateProfile применяет патч удалённо, затем локально, без повторного чтения.
func (m *Manager) UpdateProfile(ctx context.Context, patch models.ProfilePatch) error {
	const op = "session.UpdateProfile"

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.updateProfile(ctx, patch); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type contactInfo struct {
	Telefono     string `validate:"required,phone"`
	NumeroCuenta string `validate:"required,min=4"`
}

// SaveContactInfo проверяет и сохраняет телефон и номер счёта.
func (m *Manager) SaveContactInfo(ctx context.Context, telefono, numeroCuenta string) error {
	const op = "session.SaveContactInfo"

	ci := contactInfo{
		Telefono:     strings.TrimSpace(telefono),
		NumeroCuenta: strings.TrimSpace(numeroCuenta),
	}
	if err := m.validate.Struct(ci); err != nil {
		return fmt.Errorf("%s: %w: %s", op, ErrInvalidContactInfo, err.Error())
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	err := m.updateProfile(ctx, models.ProfilePatch{
		Telefono:     &ci.Telefono,
		NumeroCuenta: &ci.NumeroCuenta,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateUserType задаёт роль и перечитывает профиль целиком.
func (m *Manager) UpdateUserType(ctx context.Context, role models.Role) error {
	const op = "session.UpdateUserType"

	m.opMu.Lock()
	defer m.opMu.Unlock()

	cur := m.currentProfile()
	if cur == nil {
		return fmt.Errorf("%s: %w", op, ErrNoProfile)
	}
	if !role.Valid() {
		return fmt.Errorf("%s: %w", op, ErrInvalidRole)
	}

	if err := m.gw.UpdateProfile(ctx, cur.ID, models.ProfilePatch{Tipo: &role}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p, err := m.gw.GetProfile(ctx, cur.ID)
	if err != nil {
		return fmt.Errorf("%s: reload: %w", op, err)
	}
	m.setProfile(ctx, p)
	m.publish()
	return nil
}

// Snapshot текущее состояние.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		State:   m.state,
		Session: m.session.Clone(),
		Profile: m.profile.Clone(),
	}
}

// Subscribe подписывает fn на изменения состояния.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return m.subs.Subscribe(fn)
}

// Close отписывается от шлюза и останавливает цикл событий.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		m.cancel()
		<-m.stopped
	})
}

// establish принимает новую сессию и загружает профиль. Вызывается под opMu.
func (m *Manager) establish(ctx context.Context, s *models.Session) error {
	prev := m.currentUserID()
	m.mu.Lock()
	m.session = s.Clone()
	if prev != s.User.ID {
		m.profile = nil
	}
	m.state = stateOf(m.session, m.profile)
	m.mu.Unlock()
	m.writeSession(ctx, s)

	p, err := m.loadProfile(ctx, s.User)
	if err != nil {
		if prev != s.User.ID {
			m.removeKeys(ctx, cache.KeyProfile)
		}
		m.publish()
		return err
	}
	m.setProfile(ctx, p)
	m.publish()
	return nil
}

// loadProfile читает профиль по id. Если строки нет, синтезирует её из
// данных пользователя и вставляет. Неудачная вставка не повторяется.
func (m *Manager) loadProfile(ctx context.Context, user models.AuthUser) (*models.UserProfile, error) {
	p, err := m.gw.GetProfile(ctx, user.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gateway.ErrNotFound) {
		return nil, err
	}

	fullName := strings.TrimSpace(user.FullName)
	if fullName == "" {
		fullName = DefaultFullName
	}
	created, err := m.gw.InsertProfile(ctx, models.UserProfile{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  fullName,
		CreatedAt: m.now().UTC(),
	})
	if err != nil {
		m.log.Error("failed to create profile", sl.UserID(user.ID), sl.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrProfileUnavailable, err)
	}
	m.log.Info("profile created", sl.UserID(user.ID))
	return created, nil
}

func (m *Manager) updateProfile(ctx context.Context, patch models.ProfilePatch) error {
	cur := m.currentProfile()
	if cur == nil {
		return ErrNoProfile
	}
	if patch.Empty() {
		return nil
	}
	if err := m.gw.UpdateProfile(ctx, cur.ID, patch); err != nil {
		return err
	}
	patch.Apply(cur)
	m.setProfile(ctx, cur)
	m.publish()
	return nil
}

func (m *Manager) currentProfile() *models.UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile.Clone()
}

func (m *Manager) currentUserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	return m.session.User.ID
}

func (m *Manager) setLocal(s *models.Session, p *models.UserProfile) {
	m.mu.Lock()
	m.session = s.Clone()
	m.profile = p.Clone()
	m.state = stateOf(m.session, m.profile)
	m.mu.Unlock()
}

func (m *Manager) setProfile(ctx context.Context, p *models.UserProfile) {
	m.mu.Lock()
	m.profile = p.Clone()
	m.state = stateOf(m.session, m.profile)
	m.mu.Unlock()
	m.writeProfile(ctx, p)
}

func (m *Manager) publish() {
	m.subs.Publish(m.Snapshot())
}

func stateOf(s *models.Session, p *models.UserProfile) models.AuthState {
	switch {
	case s == nil:
		return models.StateUnauthenticated
	case p != nil && p.Complete():
		return models.StateAuthenticatedComplete
	default:
		return models.StateAuthenticatedIncomplete
	}
}

// isAuthError сообщает, что шлюз отверг сохранённую сессию.
func isAuthError(err error) bool {
	return errors.Is(err, gateway.ErrSessionExpired) ||
		errors.Is(err, gateway.ErrNoSession) ||
		errors.Is(err, gateway.ErrInvalidCredentials)
}
