package memory

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

const sweepInterval = time.Minute

type entry struct {
	value     string
	expiresAt time.Time
}

// CodeStore is an in-process expiring map for single-instance deployments and tests.
// Expired entries stay visible to TTL for the retention window and are then evicted
// by a background sweep.
type CodeStore struct {
	mu        sync.Mutex
	entries   map[string]entry
	retention time.Duration
	now       func() time.Time
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a CodeStore.
type Option func(*CodeStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *CodeStore) { s.now = now }
}

// NewCodeStore starts the background sweep; call Close to stop it.
func NewCodeStore(retention time.Duration, opts ...Option) *CodeStore {
	s := &CodeStore{
		entries:   make(map[string]entry),
		retention: retention,
		now:       time.Now,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.sweepLoop()
	return s
}

// Close stops the background sweep. It is safe to call more than once.
func (s *CodeStore) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *CodeStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *CodeStore) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return 0, false, nil
	}
	return e.expiresAt.Sub(s.now()), true, nil
}

func (s *CodeStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok || !s.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *CodeStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookup(key)
	delete(s.entries, key)
	return ok, nil
}

func (s *CodeStore) Consume(_ context.Context, key, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok || !s.now().Before(e.expiresAt) {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(e.value), []byte(expected)) != 1 {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// Len returns the number of retained entries, expired ones included.
func (s *CodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// lookup must be called with mu held. Entries past their retention window are
// treated as absent even before the sweep removes them.
func (s *CodeStore) lookup(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok || s.evictable(e) {
		return entry{}, false
	}
	return e, true
}

func (s *CodeStore) evictable(e entry) bool {
	return s.now().After(e.expiresAt.Add(s.retention))
}

func (s *CodeStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *CodeStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if s.evictable(e) {
			delete(s.entries, k)
		}
	}
}
