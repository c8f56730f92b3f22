package models

import "time"

// Session — аутентифицированный контекст пользователя.
type Session struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired сообщает, что access-токен истекает раньше now+leeway.
func (s *Session) Expired(now time.Time, leeway time.Duration) bool {
	return !s.ExpiresAt.After(now.Add(leeway))
}

// AuthEvent — тип уведомления об изменении сессии.
type AuthEvent string

// События, которые бэкенд рассылает подписчикам.
const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// AuthChange — уведомление, отправляемое по каналу устройства.
type AuthChange struct {
	Event   AuthEvent `json:"event"`
	Session *Session  `json:"session,omitempty"`
}

// SignUpParams — данные регистрации.
type SignUpParams struct {
	Email      string
	Password   string
	Name       string
	RedirectTo string
}

// Confirmation — задание на отправку письма подтверждения.
type Confirmation struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Link  string `json:"link"`
}
