package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

const messageColumns = `id, user_id, content, image_urls, delay_minutes, delay_max_minutes,
	category_ids::text[], sent_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		m      models.Message
		sentAt sql.NullTime
	)
	err := row.Scan(&m.ID, &m.UserID, &m.Content, textArray(&m.ImageURLs),
		&m.DelayMinutes, &m.DelayMaxMinutes, textArray(&m.CategoryIDs), &sentAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.SentAt = timeFromNull(sentAt)
	return &m, nil
}

// CreateMessage сохраняет задание на рассылку.
func (s *Storage) CreateMessage(ctx context.Context, userID string, in models.MessageInput) (string, error) {
	const op = "storage.CreateMessage"

	images := in.ImageURLs
	if images == nil {
		images = []string{}
	}

	var id string
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO messages (user_id, content, image_urls, delay_minutes, delay_max_minutes, category_ids)
		VALUES ($1, $2, $3::text[], $4, $5, $6::uuid[])
		RETURNING id`,
		userID, in.Content, images, in.DelayMinutes, in.DelayMaxMinutes, in.CategoryIDs,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListMessages возвращает историю рассылок пользователя, новые первыми.
func (s *Storage) ListMessages(ctx context.Context, userID string) ([]*models.Message, error) {
	const op = "storage.ListMessages"

	rows, err := s.DB.QueryContext(ctx, `SELECT `+messageColumns+`
		FROM messages WHERE user_id = $1 ORDER BY created_at DESC LIMIT 100`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// GetMessage возвращает задание пользователя по идентификатору.
func (s *Storage) GetMessage(ctx context.Context, userID, id string) (*models.Message, error) {
	const op = "storage.GetMessage"

	m, err := scanMessage(s.DB.QueryRowContext(ctx, `SELECT `+messageColumns+`
		FROM messages WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// ClaimMessage атомарно проставляет sent_at. ErrNotFound — задание удалено
// или уже захвачено.
func (s *Storage) ClaimMessage(ctx context.Context, id string) error {
	const op = "storage.ClaimMessage"

	res, err := s.DB.ExecContext(ctx,
		`UPDATE messages SET sent_at = now() WHERE id = $1 AND sent_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, op)
}

// MessageStats считает отправленные рассылки за сутки, 7 и 30 дней.
func (s *Storage) MessageStats(ctx context.Context, userID string) (models.MessageStats, error) {
	const op = "storage.MessageStats"

	var st models.MessageStats
	err := s.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE sent_at >= date_trunc('day', now())),
			COUNT(*) FILTER (WHERE sent_at >= now() - INTERVAL '7 days'),
			COUNT(*) FILTER (WHERE sent_at >= now() - INTERVAL '30 days')
		FROM messages
		WHERE user_id = $1 AND sent_at IS NOT NULL`, userID,
	).Scan(&st.Day, &st.Week, &st.Month)
	if err != nil {
		return models.MessageStats{}, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}
