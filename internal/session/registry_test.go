package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
)

func TestRegistry_GetReusesProvider(t *testing.T) {
	backends := map[string]*fakeBackend{}
	r := NewRegistry(func(device string) *Provider {
		b := newFakeBackend()
		backends[device] = b
		return NewProvider(b, &fakeRoles{}, sl.Discard())
	}, time.Minute)
	t.Cleanup(r.Close)

	p1, err := r.Get("dev-1")
	require.NoError(t, err)
	p2, err := r.Get("dev-1")
	require.NoError(t, err)
	p3, err := r.Get("dev-2")
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.NotSame(t, p1, p3)
	assert.Equal(t, 2, r.Len())
	assert.Len(t, backends, 2)
}

func TestRegistry_SlowStartDoesNotBlockOtherDevices(t *testing.T) {
	gate := make(chan struct{})
	r := NewRegistry(func(device string) *Provider {
		b := newFakeBackend()
		if device == "slow" {
			b.subscribeGate = gate
		}
		return NewProvider(b, &fakeRoles{}, sl.Discard())
	}, time.Minute)
	t.Cleanup(r.Close)

	slowDone := make(chan error, 1)
	go func() {
		_, err := r.Get("slow")
		slowDone <- err
	}()

	fastDone := make(chan error, 1)
	go func() {
		_, err := r.Get("fast")
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("first request of another device blocked by a slow start")
	}

	close(gate)
	require.NoError(t, <-slowDone)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_ConcurrentFirstGetKeepsOneProvider(t *testing.T) {
	gate := make(chan struct{})
	var (
		mu       sync.Mutex
		backends []*fakeBackend
	)
	r := NewRegistry(func(string) *Provider {
		b := newFakeBackend()
		b.subscribeGate = gate
		mu.Lock()
		backends = append(backends, b)
		mu.Unlock()
		return NewProvider(b, &fakeRoles{}, sl.Discard())
	}, time.Minute)
	t.Cleanup(r.Close)

	const n = 2
	results := make(chan *Provider, n)
	for range n {
		go func() {
			p, err := r.Get("dev-1")
			assert.NoError(t, err)
			results <- p
		}()
	}
	// оба обращения дошли до запуска провайдера
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(backends) == n
	}, 2*time.Second, 10*time.Millisecond)
	close(gate)

	p1, p2 := <-results, <-results
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, r.Len())

	unsubscribed := 0
	for _, b := range backends {
		b.mu.Lock()
		if b.unsubscribed {
			unsubscribed++
		}
		b.mu.Unlock()
	}
	assert.Equal(t, 1, unsubscribed, "лишний провайдер закрыт")
}

func TestRegistry_StartErrorNotCached(t *testing.T) {
	fail := true
	r := NewRegistry(func(string) *Provider {
		b := newFakeBackend()
		if fail {
			b.subscribeErr = errors.New("redis down")
		}
		return NewProvider(b, &fakeRoles{}, sl.Discard())
	}, time.Minute)
	t.Cleanup(r.Close)

	_, err := r.Get("dev-1")
	assert.Error(t, err)
	assert.Equal(t, 0, r.Len())

	fail = false
	p, err := r.Get("dev-1")
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestRegistry_SweepEvictsIdle(t *testing.T) {
	var backends []*fakeBackend
	r := NewRegistry(func(string) *Provider {
		b := newFakeBackend()
		backends = append(backends, b)
		return NewProvider(b, &fakeRoles{}, sl.Discard())
	}, time.Minute)
	t.Cleanup(r.Close)

	now := time.Now()
	r.now = func() time.Time { return now }

	_, err := r.Get("idle")
	require.NoError(t, err)
	_, err = r.Get("busy")
	require.NoError(t, err)

	now = now.Add(50 * time.Second)
	_, err = r.Get("busy")
	require.NoError(t, err)

	now = now.Add(20 * time.Second)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())
	assert.True(t, backends[0].unsubscribed)
	assert.False(t, backends[1].unsubscribed)
}

func TestRegistry_RunClosesOnCancel(t *testing.T) {
	b := newFakeBackend()
	r := NewRegistry(func(string) *Provider {
		return NewProvider(b, &fakeRoles{}, sl.Discard())
	}, time.Hour)

	_, err := r.Get("dev")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, 0, r.Len())
}

func TestContext(t *testing.T) {
	p := NewProvider(newFakeBackend(), &fakeRoles{}, sl.Discard())

	ctx := WithProvider(context.Background(), p)
	got, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, p, got)
	assert.Same(t, p, MustFromContext(ctx))

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
	assert.Panics(t, func() { MustFromContext(context.Background()) })
}
