package dispatcher

import (
	"context"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

func TestWaitStop(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(cancel context.CancelFunc, conn, ch chan *amqp.Error)
		expected string
	}{
		{
			name:  "отмена контекста",
			setup: func(cancel context.CancelFunc, _, _ chan *amqp.Error) { cancel() },
		},
		{
			name: "брокер закрыл соединение",
			setup: func(_ context.CancelFunc, conn, _ chan *amqp.Error) {
				conn <- amqp.ErrClosed
			},
			expected: "connection",
		},
		{
			name: "брокер закрыл канал",
			setup: func(_ context.CancelFunc, _, ch chan *amqp.Error) {
				ch <- &amqp.Error{Code: amqp.PreconditionFailed, Reason: "delivery acknowledgement timed out"}
			},
			expected: "delivery acknowledgement timed out",
		},
		{
			name:     "канал уведомлений закрыт без ошибки",
			setup:    func(_ context.CancelFunc, _, ch chan *amqp.Error) { close(ch) },
			expected: "channel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			conn, ch := make(chan *amqp.Error, 1), make(chan *amqp.Error, 1)
			tt.setup(cancel, conn, ch)

			err := waitStop(ctx, conn, ch)

			if tt.expected == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrBrokerClosed)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}
}
