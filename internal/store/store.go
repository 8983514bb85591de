package store

import (
	"context"
	"log/slog"
	"sync"
)

// Store owns the current State. Actions are reduced one at a time on the Run
// goroutine, strictly in dispatch order.
type Store struct {
	cache   *Cache
	effects *Effects
	logger  *slog.Logger

	qmu   sync.Mutex
	queue []Action
	wake  chan struct{}

	mu      sync.RWMutex
	state   State
	subs    map[int]func(State, Action)
	nextSub int
}

// New creates a store. effects may be nil, in which case actions only change
// state.
func New(initial State, cache *Cache, effects *Effects, logger *slog.Logger) *Store {
	return &Store{
		cache:   cache,
		effects: effects,
		logger:  logger.With(slog.String("component", "store")),
		wake:    make(chan struct{}, 1),
		state:   initial,
		subs:    make(map[int]func(State, Action)),
	}
}

// Dispatch queues a. It never blocks, so effects and subscribers may call it
// from anywhere, including the Run goroutine.
func (s *Store) Dispatch(a Action) {
	s.qmu.Lock()
	s.queue = append(s.queue, a)
	s.qmu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// State returns the latest snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to receive every new snapshot together with the
// action that produced it. fn runs on the Run goroutine and must not block.
func (s *Store) Subscribe(fn func(State, Action)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) take() []Action {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	batch := s.queue
	s.queue = nil
	return batch
}

// Run processes actions until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	for {
		for _, a := range s.take() {
			s.apply(ctx, a)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
	}
}

func (s *Store) apply(ctx context.Context, a Action) {
	s.mu.Lock()
	next := Reduce(s.state, a)
	s.state = next
	subs := make([]func(State, Action), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if tags := invalidations(a); len(tags) > 0 && s.cache != nil {
		s.cache.Invalidate(tags...)
		s.logger.Debug("cache invalidated", slog.String("action", Name(a)), slog.Any("tags", tags))
	}
	for _, fn := range subs {
		fn(next, a)
	}
	if s.effects != nil {
		s.effects.Handle(ctx, next, a, s.Dispatch)
	}
}
