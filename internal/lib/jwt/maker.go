// Package jwt реализует генерацию и парсинг JWT токенов.
//
// Используются два вида токенов: access-токен сессии (subject: id пользователя)
// и одноразовый токен подтверждения email с адресом редиректа.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// PurposeAccess — токен доступа сессии.
	PurposeAccess = "access"
	// PurposeConfirm — токен подтверждения регистрации.
	PurposeConfirm = "confirm"
)

// ErrWrongPurpose возвращается, если токен выпущен для другой цели.
var ErrWrongPurpose = errors.New("token issued for another purpose")

// CustomClaims описывает пользовательские данные, хранящиеся в JWT.
type CustomClaims struct {
	Email                string `json:"email"`
	Purpose              string `json:"purpose"`
	RedirectTo           string `json:"redirect_to,omitempty"`
	jwt.RegisteredClaims        // Subject — id пользователя
}

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	GenerateAccessToken(userID, email string) (string, time.Time, error)
	GenerateConfirmToken(userID, email, redirectTo string) (string, error)
	ParseToken(tokenStr, purpose string) (*CustomClaims, error)
}

// MakerImpl реализует Maker с использованием секретного ключа и TTL.
type MakerImpl struct {
	secretKey  string
	tokenTTL   time.Duration
	confirmTTL time.Duration
}

// NewJWTMaker создаёт новый экземпляр MakerImpl.
func NewJWTMaker(secretKey string, ttl, confirmTTL time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey:  secretKey,
		tokenTTL:   ttl,
		confirmTTL: confirmTTL,
	}
}

// GenerateAccessToken создает access-токен и возвращает момент его истечения.
func (j *MakerImpl) GenerateAccessToken(userID, email string) (string, time.Time, error) {
	expiresAt := time.Now().Add(j.tokenTTL)
	token, err := j.sign(CustomClaims{
		Email:   email,
		Purpose: PurposeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// GenerateConfirmToken создает токен для ссылки подтверждения email.
func (j *MakerImpl) GenerateConfirmToken(userID, email, redirectTo string) (string, error) {
	return j.sign(CustomClaims{
		Email:      email,
		Purpose:    PurposeConfirm,
		RedirectTo: redirectTo,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.confirmTTL)),
		},
	})
}

func (j *MakerImpl) sign(claims CustomClaims) (string, error) {
	const op = "jwt.sign"
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken проверяет подпись, срок и назначение токена.
func (j *MakerImpl) ParseToken(tokenStr, purpose string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%s: %w", op, ErrWrongPurpose)
	}
	return claims, nil
}
