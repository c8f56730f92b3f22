// Package dispatch содержит обработчики очередей воркера: рассылку
// сообщений по вебхуку и отправку писем подтверждения.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/magabrotheeeer/auto-trigger/internal/category"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/metrics"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
	"github.com/magabrotheeeer/auto-trigger/internal/storage"
)

// Результаты доставки для метрики.
const (
	resultDelivered = "delivered"
	resultFailed    = "failed"
)

// Store — данные, нужные для рассылки.
type Store interface {
	GetMessage(ctx context.Context, userID, id string) (*models.Message, error)
	GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	ListCategories(ctx context.Context, userID string) ([]*models.Category, error)
	ListContactsByCategories(ctx context.Context, userID string, categoryIDs []string) ([]*models.Contact, error)
	ClaimMessage(ctx context.Context, id string) error
}

// Deliverer отправляет доставку на вебхук.
type Deliverer interface {
	Deliver(ctx context.Context, url string, d models.Delivery) error
}

// Dispatcher обрабатывает задания очереди messages.dispatch.
type Dispatcher struct {
	store     Store
	deliverer Deliverer
	log       *slog.Logger

	// unit — единица задержки между доставками. Поля delay_minutes
	// хранят секунды, как в форме рассылки.
	unit  time.Duration
	now   func() time.Time
	delay func(lo, hi int) int
}

// NewDispatcher создает Dispatcher. Задержки задаются в секундах.
func NewDispatcher(store Store, deliverer Deliverer, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		deliverer: deliverer,
		log:       log,
		unit:      time.Second,
		now:       time.Now,
		delay:     randomDelay,
	}
}

func randomDelay(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rand.IntN(hi-lo+1)
}

// HandleDispatch выполняет рассылку. Задание пропускается, если сообщение
// уже отправлено или удалено, аккаунт неактивен или вебхук не задан.
// Перед первой доставкой задание захватывается отметкой sent_at, поэтому
// повторно доставленное из очереди задание ничего не отправляет.
// Неудачная доставка одному контакту не прерывает рассылку и не повторяется.
func (d *Dispatcher) HandleDispatch(ctx context.Context, body []byte) error {
	const op = "dispatch.HandleDispatch"

	var job models.DispatchJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log := d.log.With(
		slog.String("op", op),
		slog.String("message_id", job.MessageID),
		slog.String("user_id", job.UserID),
	)

	msg, err := d.store.GetMessage(ctx, job.UserID, job.MessageID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("message not found, job dropped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if msg.SentAt != nil {
		log.Info("message already sent")
		return nil
	}

	settings, err := d.store.GetUserSettings(ctx, job.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("user has no settings, job dropped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !settings.AccountActive(d.now()) {
		log.Info("account inactive or plan expired, job skipped")
		return nil
	}
	if settings.WebhookURL == "" {
		log.Warn("webhook url is not configured, job skipped")
		return nil
	}

	categories, err := d.store.ListCategories(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	contacts, err := d.store.ListContactsByCategories(ctx, job.UserID, category.Descendants(categories, msg.CategoryIDs))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := d.store.ClaimMessage(ctx, msg.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Info("message already claimed by another delivery")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	delivered := 0
	for i, c := range contacts {
		if i > 0 {
			if err := d.wait(ctx, msg); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
		err := d.deliverer.Deliver(ctx, settings.WebhookURL, models.Delivery{
			MessageID: msg.ID,
			Name:      c.Name,
			Phone:     c.Phone,
			Email:     c.Email,
			Content:   msg.Content,
			ImageURLs: msg.ImageURLs,
		})
		if err != nil {
			metrics.Deliveries.WithLabelValues(resultFailed).Inc()
			log.Error("delivery failed", slog.String("contact_id", c.ID), sl.Err(err))
			continue
		}
		metrics.Deliveries.WithLabelValues(resultDelivered).Inc()
		delivered++
	}

	log.Info("message dispatched", slog.Int("contacts", len(contacts)), slog.Int("delivered", delivered))
	return nil
}

func (d *Dispatcher) wait(ctx context.Context, msg *models.Message) error {
	pause := time.Duration(d.delay(msg.DelayMinutes, msg.DelayMaxMinutes)) * d.unit
	t := time.NewTimer(pause)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
