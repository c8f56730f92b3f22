package models

import "time"

// Статусы платежа.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentOverdue = "overdue"
)

// Payment — платеж за план пользователя.
type Payment struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	UserName     string     `json:"user_name,omitempty"`
	Amount       float64    `json:"amount"`
	DueDate      time.Time  `json:"due_date"`
	Status       string     `json:"status"`
	PlanDuration int        `json:"plan_duration"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// EffectiveStatus возвращает статус для отображения: неоплаченный платеж
// с прошедшим сроком считается просроченным.
func (p Payment) EffectiveStatus(now time.Time) string {
	if p.Status == PaymentPending {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		due := time.Date(p.DueDate.Year(), p.DueDate.Month(), p.DueDate.Day(), 0, 0, 0, 0, time.UTC)
		if due.Before(today) {
			return PaymentOverdue
		}
	}
	return p.Status
}

// PaymentInput — регистрация платежа администратором.
type PaymentInput struct {
	UserID       string  `json:"user_id" validate:"required,uuid"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	DueDate      string  `json:"due_date" validate:"required"` // 2006-01-02
	PlanDuration int     `json:"plan_duration" validate:"required,gt=0,lte=36"`
}

// PlanInput — изменение длительности плана.
type PlanInput struct {
	PlanDuration int `json:"plan_duration" validate:"required,gt=0,lte=36"`
}
