package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
)

// DefaultOverdueInterval — период проверки просроченных платежей.
const DefaultOverdueInterval = 12 * time.Hour

// PaymentRepository помечает просроченные платежи.
type PaymentRepository interface {
	MarkOverduePayments(ctx context.Context) (int, error)
}

// OverdueMarker периодически переводит неоплаченные платежи с прошедшим
// сроком в статус overdue.
type OverdueMarker struct {
	repo     PaymentRepository
	log      *slog.Logger
	interval time.Duration
}

// NewOverdueMarker создает OverdueMarker. Неположительный interval
// заменяется на DefaultOverdueInterval.
func NewOverdueMarker(repo PaymentRepository, interval time.Duration, log *slog.Logger) *OverdueMarker {
	if interval <= 0 {
		interval = DefaultOverdueInterval
	}
	return &OverdueMarker{
		repo:     repo,
		log:      log,
		interval: interval,
	}
}

// Run выполняет проверку сразу и затем раз в interval до отмены ctx.
func (m *OverdueMarker) Run(ctx context.Context) {
	m.runOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *OverdueMarker) runOnce(ctx context.Context) {
	const op = "dispatch.OverdueMarker"

	n, err := m.repo.MarkOverduePayments(ctx)
	if err != nil {
		m.log.Error("failed to mark overdue payments", slog.String("op", op), sl.Err(err))
		return
	}
	if n > 0 {
		m.log.Info("payments marked overdue", slog.String("op", op), slog.Int("count", n))
	}
}
