package session

import (
	"context"
	"sync"
	"time"

	"github.com/magabrotheeeer/auto-trigger/internal/metrics"
)

// ProviderFactory создает провайдер для устройства.
type ProviderFactory func(device string) *Provider

type registryEntry struct {
	provider *Provider
	lastUsed time.Time
}

// Registry хранит провайдеры устройств. Провайдер создается и запускается
// при первом обращении и закрывается после простоя дольше idleTTL.
type Registry struct {
	mu        sync.Mutex
	providers map[string]*registryEntry
	factory   ProviderFactory
	idleTTL   time.Duration
	now       func() time.Time
}

// NewRegistry создает реестр.
func NewRegistry(factory ProviderFactory, idleTTL time.Duration) *Registry {
	return &Registry{
		providers: make(map[string]*registryEntry),
		factory:   factory,
		idleTTL:   idleTTL,
		now:       time.Now,
	}
}

// Get возвращает запущенный провайдер устройства. Новый провайдер
// запускается без блокировки реестра; при одновременном первом обращении
// сохраняется первый, остальные закрываются.
func (r *Registry) Get(device string) (*Provider, error) {
	if p, ok := r.lookup(device); ok {
		return p, nil
	}

	p := r.factory(device)
	if err := p.Start(); err != nil {
		p.Close()
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.providers[device]; ok {
		p.Close()
		e.lastUsed = r.now()
		return e.provider, nil
	}
	r.providers[device] = &registryEntry{provider: p, lastUsed: r.now()}
	metrics.ActiveProviders.Inc()
	return p, nil
}

func (r *Registry) lookup(device string) (*Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.providers[device]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.provider, true
}

// Len возвращает число активных провайдеров.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.providers)
}

// Sweep закрывает провайдеры, простаивающие дольше idleTTL.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	deadline := r.now().Add(-r.idleTTL)
	for device, e := range r.providers {
		if e.lastUsed.Before(deadline) {
			e.provider.Close()
			delete(r.providers, device)
			evicted++
		}
	}
	metrics.ActiveProviders.Sub(float64(evicted))
	return evicted
}

// Run периодически вызывает Sweep до отмены ctx, затем закрывает все провайдеры.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-ctx.Done():
			r.Close()
			return
		}
	}
}

// Close закрывает все провайдеры.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for device, e := range r.providers {
		e.provider.Close()
		delete(r.providers, device)
	}
	metrics.ActiveProviders.Set(0)
}
