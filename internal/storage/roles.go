package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

// UserRoles возвращает не более двух ролей пользователя.
// Двух строк достаточно, чтобы вызывающий код отличил единственную запись от неоднозначной.
func (s *Storage) UserRoles(ctx context.Context, userID string) ([]string, error) {
	const op = "storage.UserRoles"

	rows, err := s.DB.QueryContext(ctx, `
		SELECT role::text FROM user_roles WHERE user_id = $1 ORDER BY created_at LIMIT 2`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return roles, nil
}

// AssignRole заменяет роли пользователя единственной ролью role.
func (s *Storage) AssignRole(ctx context.Context, userID, role string) error {
	const op = "storage.AssignRole"

	switch role {
	case models.RoleAdmin, models.RoleModerator, models.RoleUser:
	default:
		return fmt.Errorf("%s: unknown role %q", op, role)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err = tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, userID, role); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
