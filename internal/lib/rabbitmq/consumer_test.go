package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
)

// ackRecorder записывает подтверждения в порядке вызова.
type ackRecorder struct {
	mu     sync.Mutex
	events []string
	ackErr error
}

func (a *ackRecorder) record(e string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *ackRecorder) Events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.record("ack")
	return a.ackErr
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	if requeue {
		a.record("nack-requeue")
	} else {
		a.record("nack")
	}
	return nil
}

func (a *ackRecorder) Reject(uint64, bool) error {
	a.record("reject")
	return nil
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name       string
		mode       AckMode
		handlerErr error
		ackErr     error
		expected   []string
	}{
		{
			name:     "подтверждение после обработки",
			mode:     AckAfterHandle,
			expected: []string{"handle", "ack"},
		},
		{
			name:       "ошибка обработки без повторной постановки",
			mode:       AckAfterHandle,
			handlerErr: errors.New("boom"),
			expected:   []string{"handle", "nack"},
		},
		{
			name:     "подтверждение при получении",
			mode:     AckOnReceipt,
			expected: []string{"ack", "handle"},
		},
		{
			name:       "ошибка обработки после подтверждения",
			mode:       AckOnReceipt,
			handlerErr: errors.New("boom"),
			expected:   []string{"ack", "handle"},
		},
		{
			name:     "не удалось подтвердить при получении",
			mode:     AckOnReceipt,
			ackErr:   errors.New("channel closed"),
			expected: []string{"ack"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acks := &ackRecorder{ackErr: tt.ackErr}
			d := amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, Body: []byte("job")}

			handle(context.Background(), d, tt.mode, sl.Discard(), func(_ context.Context, body []byte) error {
				assert.Equal(t, []byte("job"), body)
				acks.record("handle")
				return tt.handlerErr
			})

			assert.Equal(t, tt.expected, acks.Events())
		})
	}
}

func TestConsume_StopsWhenChannelClosed(t *testing.T) {
	delivery := make(chan amqp.Delivery, 2)
	acks := &ackRecorder{}
	handled := make(chan string, 2)

	delivery <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, Body: []byte("a")}
	delivery <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 2, Body: []byte("b")}
	close(delivery)

	done := make(chan struct{})
	go func() {
		defer close(done)
		consume(context.Background(), delivery, 0, AckOnReceipt, sl.Discard(), func(_ context.Context, body []byte) error {
			handled <- string(body)
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop after channel close")
	}

	got := []string{<-handled, <-handled}
	assert.ElementsMatch(t, []string{"a", "b"}, got)
}

func TestConsume_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		consume(ctx, make(chan amqp.Delivery), 1, AckAfterHandle, sl.Discard(), func(context.Context, []byte) error {
			return nil
		})
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "consumer did not stop after cancel")
	}
}
