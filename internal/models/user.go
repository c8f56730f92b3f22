// Package models содержит доменные структуры сервиса: учетные записи,
// сессии, роли и записи таблиц, которыми владеет пользователь.
package models

import "time"

// Роли пользователя из таблицы user_roles.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleUser      = "user"
)

// User — учетная запись, созданная бэкендом при регистрации.
// ID неизменен на протяжении жизни аккаунта.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name,omitempty"`
	PasswordHash     string     `json:"-"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Profile — публичная часть пользователя (таблица profiles).
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserRole — назначение роли пользователю.
type UserRole struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// UserSettings — настройки аккаунта: вебхук доставки и срок плана.
type UserSettings struct {
	UserID     string     `json:"user_id"`
	WebhookURL string     `json:"webhook_url,omitempty"`
	IsActive   bool       `json:"is_active"`
	PlanExpiry *time.Time `json:"plan_expiry,omitempty"`
}

// AccountActive сообщает, активен ли аккаунт на дату now:
// флаг включен и план не истек раньше текущего дня.
func (s UserSettings) AccountActive(now time.Time) bool {
	if !s.IsActive || s.PlanExpiry == nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	expiry := time.Date(s.PlanExpiry.Year(), s.PlanExpiry.Month(), s.PlanExpiry.Day(), 0, 0, 0, 0, now.Location())
	return !expiry.Before(today)
}

// ManagedUser — строка административного списка пользователей.
type ManagedUser struct {
	Profile
	Role     string       `json:"role"`
	Settings UserSettings `json:"settings"`
}
