package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

// ListCategories возвращает плоский список категорий пользователя.
func (s *Storage) ListCategories(ctx context.Context, userID string) ([]*models.Category, error) {
	const op = "storage.ListCategories"

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_id, name, type::text, parent_id, created_at, updated_at
		FROM categories WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []*models.Category
	for rows.Next() {
		var (
			c      models.Category
			parent sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &parent,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		c.ParentID = ptrFromNull(parent)
		res = append(res, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// CreateCategory добавляет категорию. Родитель, если указан, должен принадлежать пользователю.
func (s *Storage) CreateCategory(ctx context.Context, userID string, in models.CategoryInput) (string, error) {
	const op = "storage.CreateCategory"

	if err := s.ownsCategory(ctx, userID, in.ParentID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var id string
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO categories (user_id, name, type, parent_id)
		VALUES ($1, $2, $3::category_type, $4)
		RETURNING id`,
		userID, in.Name, in.Type, nullStringPtr(in.ParentID),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// UpdateCategory изменяет категорию пользователя. Связь с родителем не проверяется на циклы.
func (s *Storage) UpdateCategory(ctx context.Context, userID, id string, in models.CategoryInput) error {
	const op = "storage.UpdateCategory"

	if err := s.ownsCategory(ctx, userID, in.ParentID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE categories
		SET name = $3, type = $4::category_type, parent_id = $5, updated_at = now()
		WHERE id = $1 AND user_id = $2`,
		id, userID, in.Name, in.Type, nullStringPtr(in.ParentID))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, op)
}

// DeleteCategory удаляет категорию; дочерние категории и контакты теряют ссылку на нее.
func (s *Storage) DeleteCategory(ctx context.Context, userID, id string) error {
	const op = "storage.DeleteCategory"

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, op)
}
