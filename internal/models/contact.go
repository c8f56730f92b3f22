package models

import "time"

// Contact — контакт, принадлежащий пользователю.
type Contact struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email,omitempty"`
	CategoryID *string   `json:"category_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ContactInput — тело запроса создания и изменения контакта.
type ContactInput struct {
	Name       string  `json:"name" validate:"required,max=200"`
	Phone      string  `json:"phone" validate:"required,max=40"`
	Email      string  `json:"email" validate:"omitempty,email"`
	CategoryID *string `json:"category_id" validate:"omitempty,uuid"`
}

// Типы категорий.
const (
	CategoryCity    = "city"
	CategoryCompany = "company"
	CategorySector  = "sector"
)

// Category — узел таксономии город → компания → сектор.
// Связь с родителем рекомендательная: глубина и циклы не ограничены.
type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	ParentID  *string   `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryInput — тело запроса создания и изменения категории.
type CategoryInput struct {
	Name     string  `json:"name" validate:"required,max=200"`
	Type     string  `json:"type" validate:"required,oneof=city company sector"`
	ParentID *string `json:"parent_id" validate:"omitempty,uuid"`
}
