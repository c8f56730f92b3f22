// Package session хранит клиентское состояние аутентификации устройства:
// пользователя, сессию, признак загрузки и признак администратора.
package session

import (
	"context"
	"sync"

	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

// State — снимок состояния сессии.
type State struct {
	User    *models.User    `json:"user"`
	Session *models.Session `json:"-"`
	Loading bool            `json:"loading"`
	IsAdmin bool            `json:"is_admin"`
}

// Store — состояние сессии с единственным писателем (Provider) и
// наблюдателями. Читатели получают копии через Snapshot и Subscribe.
type Store struct {
	mu    sync.RWMutex
	state State
	// superseded выставляется уведомлением или выходом: после этого
	// результат стартовой загрузки не перезаписывает пользователя.
	superseded bool
	subs       map[int]chan State
	nextSubID  int
	changed    chan struct{}
}

// NewStore возвращает хранилище в начальном состоянии загрузки.
func NewStore() *Store {
	return &Store{
		state:   State{Loading: true},
		subs:    make(map[int]chan State),
		changed: make(chan struct{}),
	}
}

// Snapshot возвращает текущее состояние.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe возвращает канал снимков, начиная с текущего. Медленный
// наблюдатель получает только последний снимок. cancel закрывает канал.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan State, 1)
	ch <- s.state
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// WaitFor блокируется, пока состояние не удовлетворит ready, или до отмены ctx.
func (s *Store) WaitFor(ctx context.Context, ready func(State) bool) (State, error) {
	for {
		s.mu.RLock()
		st, changed := s.state, s.changed
		s.mu.RUnlock()
		if ready(st) {
			return st, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// WaitLoaded ждет завершения загрузки.
func (s *Store) WaitLoaded(ctx context.Context) (State, error) {
	return s.WaitFor(ctx, func(st State) bool { return !st.Loading })
}

// setSession записывает пользователя и сессию. Запись стартовой загрузки
// пропускается, если состояние уже обновлено уведомлением или выходом.
// При смене пользователя признак администратора сбрасывается до новой
// проверки роли.
func (s *Store) setSession(sess *models.Session, fromNotification bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !fromNotification && s.superseded {
		return false
	}
	if fromNotification {
		s.superseded = true
	}
	s.state.Session = sess
	if sess != nil {
		if s.state.User == nil || s.state.User.ID != sess.User.ID {
			s.state.IsAdmin = false
		}
		u := sess.User
		s.state.User = &u
	} else {
		s.state.User = nil
		s.state.IsAdmin = false
	}
	s.publishLocked()
	return true
}

// setAdmin применяет результат проверки роли, только если пользователь не сменился.
func (s *Store) setAdmin(userID string, isAdmin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.User == nil || s.state.User.ID != userID {
		return
	}
	s.state.IsAdmin = isAdmin
	s.publishLocked()
}

func (s *Store) finishLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Loading {
		return
	}
	s.state.Loading = false
	s.publishLocked()
}

// clear — переход при выходе.
func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.superseded = true
	s.state = State{}
	s.publishLocked()
}

func (s *Store) publishLocked() {
	close(s.changed)
	s.changed = make(chan struct{})

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.state
	}
}
