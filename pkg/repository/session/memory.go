package session

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/patrickmn/go-cache"
	"github.com/secmon-lab/syllabus/pkg/domain/interfaces"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
)

// Memory keeps sessions in process memory. Idle sessions expire after the TTL.
type Memory struct {
	opts  options
	mu    sync.Mutex
	cache *cache.Cache
	locks *keyedMutex
}

var _ interfaces.SessionStore = &Memory{}

func NewMemory(opts ...Option) *Memory {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := cache.New(o.ttl, cleanupInterval(o.ttl))
	c.OnEvicted(func(key string, _ interface{}) {
		logging.Default().Debug("session expired", "session_id", key)
	})

	return &Memory{
		opts:  o,
		cache: c,
		locks: newKeyedMutex(),
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return max(ttl/2, time.Minute)
}

func (m *Memory) History(ctx context.Context, id model.SessionID) ([]*model.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return copyTurns(m.get(id)), nil
}

func (m *Memory) get(id model.SessionID) []*model.Turn {
	v, ok := m.cache.Get(id.String())
	if !ok {
		return nil
	}
	turns, _ := v.([]*model.Turn)
	return turns
}

func (m *Memory) Append(ctx context.Context, id model.SessionID, turns ...*model.Turn) error {
	if id == "" {
		return goerr.Wrap(model.ErrInvalidArgument, "session id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(copyTurns(m.get(id)), copyTurns(turns)...)
	m.cache.Set(id.String(), model.TrimHistory(history, m.opts.maxHistory), cache.DefaultExpiration)
	return nil
}

func (m *Memory) Delete(ctx context.Context, id model.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Delete(id.String())
	return nil
}

func (m *Memory) Lock(ctx context.Context, id model.SessionID) (func(), error) {
	return m.locks.Lock(ctx, id.String())
}

// keyedMutex hands out one lock per key and forgets keys nobody holds or waits on.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) acquireRef(key string) *keyedLock {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *keyedMutex) releaseRef(key string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

func (k *keyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	l := k.acquireRef(key)

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		k.releaseRef(key, l)
		return nil, goerr.Wrap(ctx.Err(), "waiting for session lock", goerr.V(model.SessionIDKey, key))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			k.releaseRef(key, l)
		})
	}, nil
}
