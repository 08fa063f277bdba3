// Package jwt реализует выпуск и разбор access-токенов сессии.
//
// Токен подписывается HS256 и несёт идентификатор пользователя в sub,
// а также email и отображаемое имя.
package jwt

import (
	"time"
)

// Maker описывает выпуск и разбор токенов.
type Maker interface {
	// GenerateToken возвращает подписанный токен и момент его истечения.
	GenerateToken(userID, email, fullName string) (string, time.Time, error)
	// ParseToken проверяет подпись и срок действия.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker на секретном ключе и TTL.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewJWTMaker создаёт MakerImpl.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		now:       time.Now,
	}
}

// TTL время жизни выпускаемых токенов.
func (j *MakerImpl) TTL() time.Duration {
	return j.tokenTTL
}
