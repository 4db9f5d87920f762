package tokencache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sagarc03/docgate"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubFetcher issues tokens numbered by call, each valid for ttl.
type stubFetcher struct {
	clock   *fakeClock
	ttl     time.Duration
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (f *stubFetcher) Fetch(ctx context.Context) (docgate.ScopedToken, error) {
	n := f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return docgate.ScopedToken{}, ctx.Err()
		}
	}
	if f.err != nil {
		return docgate.ScopedToken{}, f.err
	}
	now := f.clock.Now()
	return docgate.ScopedToken{
		ID:        "par-" + string(rune('0'+n)),
		AccessURI: "/p/secret-" + string(rune('0'+n)) + "/n/ns/b/docs/o/",
		IssuedAt:  now,
		ExpiresAt: now.Add(f.ttl),
	}, nil
}

type memStore struct {
	mu      sync.Mutex
	tokens  map[string]docgate.ScopedToken
	saveErr error
	saves   int
}

func newMemStore() *memStore {
	return &memStore{tokens: make(map[string]docgate.ScopedToken)}
}

func (s *memStore) Load(_ context.Context, key string) (docgate.ScopedToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[key]
	if !ok {
		return docgate.ScopedToken{}, docgate.ErrNotFound
	}
	return t, nil
}

func (s *memStore) Save(_ context.Context, key string, t docgate.ScopedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.tokens[key] = t
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, key)
	return nil
}
