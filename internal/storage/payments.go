package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

// ListPayments возвращает все платежи с именем пользователя, ближайшие по сроку первыми.
func (s *Storage) ListPayments(ctx context.Context) ([]*models.Payment, error) {
	const op = "storage.ListPayments"

	rows, err := s.DB.QueryContext(ctx, `
		SELECT pay.id, pay.user_id, COALESCE(p.name, p.email, ''), pay.amount::float8,
		       pay.due_date, pay.status::text, pay.plan_duration, pay.paid_at, pay.created_at
		FROM payments pay
		LEFT JOIN profiles p ON p.id = pay.user_id
		ORDER BY pay.due_date DESC, pay.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []*models.Payment
	for rows.Next() {
		var (
			p      models.Payment
			paidAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.UserName, &p.Amount, &p.DueDate,
			&p.Status, &p.PlanDuration, &paidAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		p.PaidAt = timeFromNull(paidAt)
		res = append(res, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// CreatePayment регистрирует ожидающий платеж.
func (s *Storage) CreatePayment(ctx context.Context, userID string, amount float64, dueDate time.Time, planDuration int) (string, error) {
	const op = "storage.CreatePayment"

	var id string
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO payments (user_id, amount, due_date, plan_duration)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		userID, amount, dueDate, planDuration,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ConfirmPayment отмечает платеж оплаченным, продлевает план пользователя
// на plan_duration месяцев от большего из текущего срока и сегодняшнего дня
// и активирует аккаунт. Повторное подтверждение возвращает ErrNotFound.
func (s *Storage) ConfirmPayment(ctx context.Context, paymentID string) error {
	const op = "storage.ConfirmPayment"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var (
		userID string
		months int
	)
	err = tx.QueryRowContext(ctx, `
		UPDATE payments SET status = 'paid', paid_at = now(), updated_at = now()
		WHERE id = $1 AND status <> 'paid'
		RETURNING user_id, plan_duration`, paymentID,
	).Scan(&userID, &months)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, is_active, plan_expiry)
		VALUES ($1, true, CURRENT_DATE + make_interval(months => $2))
		ON CONFLICT (user_id) DO UPDATE
		SET is_active = true,
		    plan_expiry = GREATEST(COALESCE(user_settings.plan_expiry, CURRENT_DATE), CURRENT_DATE)
		                  + make_interval(months => $2),
		    updated_at = now()`,
		userID, months)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AdjustPlan меняет длительность плана в платеже.
func (s *Storage) AdjustPlan(ctx context.Context, paymentID string, planDuration int) error {
	const op = "storage.AdjustPlan"

	res, err := s.DB.ExecContext(ctx, `
		UPDATE payments SET plan_duration = $2, updated_at = now()
		WHERE id = $1`, paymentID, planDuration)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, op)
}

// MarkOverduePayments переводит неоплаченные платежи с прошедшим сроком
// в статус overdue и возвращает их число.
func (s *Storage) MarkOverduePayments(ctx context.Context) (int, error) {
	const op = "storage.MarkOverduePayments"

	res, err := s.DB.ExecContext(ctx, `
		UPDATE payments SET status = 'overdue', updated_at = now()
		WHERE status = 'pending' AND due_date < CURRENT_DATE`)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}
