package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
)

// Handler обрабатывает тело сообщения. Ошибка приводит к Nack без повторной
// постановки: повторы не предусмотрены, неудачная попытка окончательна.
type Handler func(ctx context.Context, body []byte) error

// AckMode — момент подтверждения сообщения.
type AckMode int

const (
	// AckAfterHandle подтверждает сообщение после обработки.
	AckAfterHandle AckMode = iota
	// AckOnReceipt подтверждает сообщение до обработки. Для долгих заданий:
	// брокер не вернет их в очередь по consumer_timeout.
	AckOnReceipt
)

// ConsumerMessage запускает потребителя очереди. workers ограничивает число
// одновременно обрабатываемых сообщений.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, workers int, mode AckMode, log *slog.Logger, handler Handler) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("op", op), slog.String("queue", queueName))
	go consume(ctx, delivery, workers, mode, log, handler)
	return nil
}

// consume читает доставки до закрытия канала или отмены ctx.
func consume(ctx context.Context, delivery <-chan amqp.Delivery, workers int, mode AckMode, log *slog.Logger, handler Handler) {
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	for {
		select {
		case d, ok := <-delivery:
			if !ok {
				if ctx.Err() == nil {
					log.Error("delivery channel closed, consumer stopped")
				}
				return
			}
			sem <- struct{}{}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				handle(ctx, d, mode, log, handler)
			}(d)
		case <-ctx.Done():
			return
		}
	}
}

func handle(ctx context.Context, d amqp.Delivery, mode AckMode, log *slog.Logger, handler Handler) {
	if mode == AckOnReceipt {
		if err := d.Ack(false); err != nil {
			// без подтверждения сообщение вернется в очередь
			log.Error("failed to ack message, skipping", sl.Err(err))
			return
		}
		if err := handler(ctx, d.Body); err != nil {
			log.Error("failed to handle message", sl.Err(err))
		}
		return
	}

	if err := handler(ctx, d.Body); err != nil {
		log.Error("failed to handle message", sl.Err(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Err(ackErr))
	}
}
