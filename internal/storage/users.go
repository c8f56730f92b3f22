package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

// CreateUser регистрирует учетную запись вместе с профилем, ролью user
// и настройками с планом на один месяц.
func (s *Storage) CreateUser(ctx context.Context, email, passwordHash, name string) (*models.User, error) {
	const op = "storage.CreateUser"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	u := &models.User{Email: email, Name: name, PasswordHash: passwordHash}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO auth_users (email, password_hash, name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		email, passwordHash, nullString(name),
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (id, name, email) VALUES ($1, $2, $3)`,
		u.ID, nullString(name), email); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`,
		u.ID, models.RoleUser); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, is_active, plan_expiry)
		VALUES ($1, true, CURRENT_DATE + INTERVAL '1 month')`,
		u.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func scanUser(row *sql.Row, op string) (*models.User, error) {
	var (
		u         models.User
		name      sql.NullString
		confirmed sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &name, &confirmed, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.Name = name.String
	u.EmailConfirmedAt = timeFromNull(confirmed)
	return &u, nil
}

// GetUserByEmail возвращает учетную запись по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, email_confirmed_at, created_at
		FROM auth_users WHERE email = $1`, email)
	return scanUser(row, "storage.GetUserByEmail")
}

// GetUser возвращает учетную запись по идентификатору.
func (s *Storage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, email_confirmed_at, created_at
		FROM auth_users WHERE id = $1`, userID)
	return scanUser(row, "storage.GetUser")
}

// ConfirmEmail отмечает email подтвержденным. Повторное подтверждение не меняет дату.
func (s *Storage) ConfirmEmail(ctx context.Context, userID string) error {
	const op = "storage.ConfirmEmail"

	res, err := s.DB.ExecContext(ctx, `
		UPDATE auth_users SET email_confirmed_at = COALESCE(email_confirmed_at, now())
		WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, op)
}

// ListUsers возвращает всех пользователей с настройками и ролью.
// Выборка не ограничена владельцем и используется только администраторами.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.ManagedUser, error) {
	const op = "storage.ListUsers"

	rows, err := s.DB.QueryContext(ctx, `
		SELECT p.id, p.name, p.email, p.avatar_url, p.created_at, p.updated_at,
		       COALESCE(r.role::text, ''),
		       COALESCE(us.webhook_url, ''), COALESCE(us.is_active, false), us.plan_expiry
		FROM profiles p
		LEFT JOIN user_settings us ON us.user_id = p.id
		LEFT JOIN LATERAL (
			SELECT role FROM user_roles WHERE user_id = p.id ORDER BY created_at LIMIT 1
		) r ON true
		ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []*models.ManagedUser
	for rows.Next() {
		var (
			u      models.ManagedUser
			name   sql.NullString
			avatar sql.NullString
			expiry sql.NullTime
		)
		if err := rows.Scan(&u.ID, &name, &u.Email, &avatar, &u.CreatedAt, &u.UpdatedAt,
			&u.Role, &u.Settings.WebhookURL, &u.Settings.IsActive, &expiry); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		u.Name = name.String
		u.AvatarURL = avatar.String
		u.Settings.UserID = u.ID
		u.Settings.PlanExpiry = timeFromNull(expiry)
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// GetUserSettings возвращает настройки пользователя.
func (s *Storage) GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	const op = "storage.GetUserSettings"

	var (
		us      models.UserSettings
		webhook sql.NullString
		expiry  sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT user_id, webhook_url, is_active, plan_expiry
		FROM user_settings WHERE user_id = $1`, userID,
	).Scan(&us.UserID, &webhook, &us.IsActive, &expiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	us.WebhookURL = webhook.String
	us.PlanExpiry = timeFromNull(expiry)
	return &us, nil
}

// UpdateUserSettings меняет вебхук и срок плана пользователя.
func (s *Storage) UpdateUserSettings(ctx context.Context, userID, webhookURL string, planExpiry *time.Time) error {
	const op = "storage.UpdateUserSettings"

	var expiry sql.NullTime
	if planExpiry != nil {
		expiry = sql.NullTime{Time: *planExpiry, Valid: true}
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE user_settings SET webhook_url = $2, plan_expiry = $3, updated_at = now()
		WHERE user_id = $1`, userID, nullString(webhookURL), expiry)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, op)
}

// SetUserActive блокирует или разблокирует аккаунт.
func (s *Storage) SetUserActive(ctx context.Context, userID string, active bool) error {
	const op = "storage.SetUserActive"

	res, err := s.DB.ExecContext(ctx, `
		UPDATE user_settings SET is_active = $2, updated_at = now()
		WHERE user_id = $1`, userID, active)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, op)
}

// DeleteUser удаляет учетную запись и все принадлежащие ей строки.
func (s *Storage) DeleteUser(ctx context.Context, userID string) error {
	const op = "storage.DeleteUser"

	res, err := s.DB.ExecContext(ctx, `DELETE FROM auth_users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, op)
}
