package session

import "context"

type providerKey struct{}

// WithProvider помещает провайдер в контекст запроса.
func WithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerKey{}, p)
}

// FromContext возвращает провайдер из контекста.
func FromContext(ctx context.Context) (*Provider, bool) {
	p, ok := ctx.Value(providerKey{}).(*Provider)
	return p, ok && p != nil
}

// MustFromContext возвращает провайдер из контекста и паникует, если его нет:
// обращение к состоянию сессии вне области провайдера является ошибкой программиста.
func MustFromContext(ctx context.Context) *Provider {
	p, ok := FromContext(ctx)
	if !ok {
		panic("session: provider is not set in context, the handler must run behind the session middleware")
	}
	return p
}

type stateKey struct{}

// WithState сохраняет снимок состояния, прочитанный один раз на запрос.
func WithState(ctx context.Context, st State) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// StateFromContext возвращает снимок запроса, а без него текущее состояние
// провайдера из контекста.
func StateFromContext(ctx context.Context) State {
	if st, ok := ctx.Value(stateKey{}).(State); ok {
		return st
	}
	return MustFromContext(ctx).State()
}
