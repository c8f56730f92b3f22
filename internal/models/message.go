package models

import "time"

// Ограничения формы рассылки. Задержки в секундах, несмотря на имена
// колонок delay_minutes.
const (
	MaxImages       = 5
	MinDelayMinutes = 20
)

// Message — задание на рассылку.
type Message struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Content         string     `json:"content"`
	ImageURLs       []string   `json:"image_urls,omitempty"`
	DelayMinutes    int        `json:"delay_minutes"`
	DelayMaxMinutes int        `json:"delay_max_minutes"`
	CategoryIDs     []string   `json:"category_ids"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// MessageInput — тело формы отправки.
type MessageInput struct {
	Content         string   `json:"content" validate:"required"`
	ImageURLs       []string `json:"image_urls" validate:"max=5,dive,url"`
	DelayMinutes    int      `json:"delay_minutes" validate:"gte=20"`
	DelayMaxMinutes int      `json:"delay_max_minutes" validate:"gtefield=DelayMinutes"`
	CategoryIDs     []string `json:"category_ids" validate:"required,min=1,dive,uuid"`
}

// DispatchJob — задание воркеру рассылки.
type DispatchJob struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
}

// Delivery — полезная нагрузка, отправляемая на вебхук пользователя.
type Delivery struct {
	MessageID string   `json:"message_id"`
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	Email     string   `json:"email,omitempty"`
	Content   string   `json:"content"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

// MessageStats — счетчики для дашборда.
type MessageStats struct {
	Day   int `json:"day"`
	Week  int `json:"week"`
	Month int `json:"month"`
}
