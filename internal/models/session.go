package models

import "time"

// AuthUser идентичность, выданная шлюзом аутентификации.
type AuthUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session токены аутентифицированного пользователя.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         AuthUser  `json:"user"`
}

// IsExpired true, если now не раньше expires_at.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Valid проверяет, что у сессии есть токены и пользователь.
// Используется для отсева частично записанного кэша.
func (s *Session) Valid() bool {
	return s.AccessToken != "" && s.RefreshToken != "" && s.User.ID != ""
}

// Clone возвращает копию сессии.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// AuthEventType тип события аутентификации.
type AuthEventType string

const (
	EventSignedIn       AuthEventType = "signed_in"
	EventSignedOut      AuthEventType = "signed_out"
	EventTokenRefreshed AuthEventType = "token_refreshed"
	EventUserUpdated    AuthEventType = "user_updated"
)

// AuthEvent событие смены состояния аутентификации. Session равна nil для signed_out.
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}

// AuthState состояние менеджера сессии.
type AuthState string

const (
	StateInitializing            AuthState = "initializing"
	StateUnauthenticated         AuthState = "unauthenticated"
	StateAuthenticatedIncomplete AuthState = "authenticated_incomplete"
	StateAuthenticatedComplete   AuthState = "authenticated_complete"
)
