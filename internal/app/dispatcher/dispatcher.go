// Package dispatcher собирает фоновый воркер: рассылку по вебхукам,
// письма подтверждения и пометку просроченных платежей.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/auto-trigger/internal/config"
	"github.com/magabrotheeeer/auto-trigger/internal/dispatch"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/smtp"
	"github.com/magabrotheeeer/auto-trigger/internal/storage"
	"github.com/magabrotheeeer/auto-trigger/internal/webhook"
)

// Число одновременных обработчиков на очередь.
const (
	dispatchWorkers     = 4
	confirmationWorkers = 2
)

// App — воркер и его соединения.
type App struct {
	db         *storage.Storage
	conn       *amqp.Connection
	ch         *amqp.Channel
	dispatcher *dispatch.Dispatcher
	mailer     *dispatch.Mailer
	overdue    *dispatch.OverdueMarker
	logger     *slog.Logger
}

// New подключается к PostgreSQL и RabbitMQ и создает обработчики.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		db.Close()
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.Queues(), cfg.Prefetch)
	if err != nil {
		conn.Close()
		db.Close()
		return nil, err
	}

	return &App{
		db:         db,
		conn:       conn,
		ch:         ch,
		dispatcher: dispatch.NewDispatcher(db, webhook.NewClient(cfg.WebhookTimeout), logger),
		mailer:     dispatch.NewMailer(smtp.NewTransport(cfg.SMTP, logger), logger),
		overdue:    dispatch.NewOverdueMarker(db, cfg.OverdueInterval, logger),
		logger:     logger,
	}, nil
}

// Run запускает потребителей и проверку просроченных платежей
// и блокируется до отмены ctx. Закрытие соединения или канала брокером
// завершает Run с ошибкой.
func (a *App) Run(ctx context.Context) error {
	const op = "app.dispatcher.Run"

	connClosed := a.conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := a.ch.NotifyClose(make(chan *amqp.Error, 1))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// рассылка идет дольше consumer_timeout, поэтому подтверждается сразу
	err := rabbitmq.ConsumerMessage(runCtx, a.ch, rabbitmq.QueueDispatch, dispatchWorkers, rabbitmq.AckOnReceipt, a.logger, a.dispatcher.HandleDispatch)
	if err != nil {
		a.logger.Error("failed to start dispatch consumer", slog.Any("err", err))
		return err
	}

	err = rabbitmq.ConsumerMessage(runCtx, a.ch, rabbitmq.QueueConfirmation, confirmationWorkers, rabbitmq.AckAfterHandle, a.logger, a.mailer.HandleConfirmation)
	if err != nil {
		a.logger.Error("failed to start confirmation consumer", slog.Any("err", err))
		return err
	}

	overdueDone := make(chan struct{})
	go func() {
		defer close(overdueDone)
		a.overdue.Run(runCtx)
	}()

	runErr := waitStop(runCtx, connClosed, chClosed)
	if runErr != nil {
		runErr = fmt.Errorf("%s: %w", op, runErr)
		a.logger.Error("broker connection lost", slog.Any("err", runErr))
	}
	cancel()
	<-overdueDone
	a.logger.Info("dispatcher shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", slog.Any("err", err))
	}
	return runErr
}

// ErrBrokerClosed — брокер закрыл соединение или канал.
var ErrBrokerClosed = errors.New("broker closed the connection")

// waitStop ждет отмены ctx или закрытия соединения либо канала.
func waitStop(ctx context.Context, connClosed, chClosed <-chan *amqp.Error) error {
	select {
	case <-ctx.Done():
		return nil
	case amqpErr := <-connClosed:
		return fmt.Errorf("connection: %w: %v", ErrBrokerClosed, amqpErr)
	case amqpErr := <-chClosed:
		return fmt.Errorf("channel: %w: %v", ErrBrokerClosed, amqpErr)
	}
}
