package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

const contactColumns = `id, user_id, name, phone, email, category_id, created_at, updated_at`

func scanContacts(rows *sql.Rows, op string) ([]*models.Contact, error) {
	defer rows.Close()

	var res []*models.Contact
	for rows.Next() {
		var (
			c        models.Contact
			email    sql.NullString
			category sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Phone, &email, &category,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		c.Email = email.String
		c.CategoryID = ptrFromNull(category)
		res = append(res, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ListContacts возвращает контакты пользователя, новые первыми.
func (s *Storage) ListContacts(ctx context.Context, userID string) ([]*models.Contact, error) {
	const op = "storage.ListContacts"

	rows, err := s.DB.QueryContext(ctx, `SELECT `+contactColumns+`
		FROM contacts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return scanContacts(rows, op)
}

// ListContactsByCategories возвращает контакты пользователя из заданных категорий.
func (s *Storage) ListContactsByCategories(ctx context.Context, userID string, categoryIDs []string) ([]*models.Contact, error) {
	const op = "storage.ListContactsByCategories"

	if len(categoryIDs) == 0 {
		return nil, nil
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+contactColumns+`
		FROM contacts WHERE user_id = $1 AND category_id = ANY($2::uuid[])
		ORDER BY created_at`, userID, categoryIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return scanContacts(rows, op)
}

// CountContacts возвращает число контактов пользователя.
func (s *Storage) CountContacts(ctx context.Context, userID string) (int, error) {
	const op = "storage.CountContacts"

	var n int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// CountContactsByCategories возвращает число контактов пользователя в заданных категориях.
func (s *Storage) CountContactsByCategories(ctx context.Context, userID string, categoryIDs []string) (int, error) {
	const op = "storage.CountContactsByCategories"

	if len(categoryIDs) == 0 {
		return 0, nil
	}
	var n int
	if err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM contacts
		WHERE user_id = $1 AND category_id = ANY($2::uuid[])`,
		userID, categoryIDs).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// CreateContact добавляет контакт. Категория, если указана, должна принадлежать тому же пользователю.
func (s *Storage) CreateContact(ctx context.Context, userID string, in models.ContactInput) (string, error) {
	const op = "storage.CreateContact"

	if err := s.ownsCategory(ctx, userID, in.CategoryID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var id string
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO contacts (user_id, name, phone, email, category_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		userID, in.Name, in.Phone, nullString(in.Email), nullStringPtr(in.CategoryID),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// UpdateContact изменяет контакт пользователя.
func (s *Storage) UpdateContact(ctx context.Context, userID, id string, in models.ContactInput) error {
	const op = "storage.UpdateContact"

	if err := s.ownsCategory(ctx, userID, in.CategoryID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE contacts
		SET name = $3, phone = $4, email = $5, category_id = $6, updated_at = now()
		WHERE id = $1 AND user_id = $2`,
		id, userID, in.Name, in.Phone, nullString(in.Email), nullStringPtr(in.CategoryID))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, op)
}

// DeleteContact удаляет контакт пользователя.
func (s *Storage) DeleteContact(ctx context.Context, userID, id string) error {
	const op = "storage.DeleteContact"

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM contacts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, op)
}

func (s *Storage) ownsCategory(ctx context.Context, userID string, categoryID *string) error {
	if categoryID == nil || *categoryID == "" {
		return nil
	}
	var ok bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND user_id = $2)`,
		*categoryID, userID).Scan(&ok)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForeignCategory
	}
	return nil
}
