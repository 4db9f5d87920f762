package tokencache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sagarc03/docgate"
	"github.com/sagarc03/docgate/tokencache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, fetcher tokencache.Fetcher, clock *fakeClock, store docgate.TokenStore) *tokencache.Cache {
	t.Helper()
	c, err := tokencache.New(tokencache.Config{
		Fetcher:       fetcher,
		Store:         store,
		StoreKey:      "ns/docs",
		RefreshBefore: 5 * time.Minute,
		FetchTimeout:  time.Second,
		Now:           clock.Now,
	})
	require.NoError(t, err)
	return c
}

func TestCache_ConcurrentColdCallersShareOneFetch(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	fetcher := &stubFetcher{clock: clock, ttl: time.Hour, release: make(chan struct{})}
	cache := newCache(t, fetcher, clock, nil)

	const callers = 50
	tokens := make([]docgate.ScopedToken, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], errs[i] = cache.Get(context.Background(), false)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, tokens[0], tokens[i])
	}
}

func TestCache_HitAndExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	fetcher := &stubFetcher{clock: clock, ttl: time.Hour}
	cache := newCache(t, fetcher, clock, nil)

	first, err := cache.Get(context.Background(), false)
	require.NoError(t, err)

	clock.Advance(50 * time.Minute)
	again, err := cache.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	// Inside the refresh margin.
	clock.Advance(6 * time.Minute)
	refreshed, err := cache.Get(context.Background(), false)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, refreshed.ID)
	assert.Equal(t, int32(2), fetcher.calls.Load())
	assert.True(t, clock.Now().Before(refreshed.ExpiresAt))
}

func TestCache_ForceRefresh(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	fetcher := &stubFetcher{clock: clock, ttl: time.Hour}
	cache := newCache(t, fetcher, clock, nil)

	first, err := cache.Get(context.Background(), false)
	require.NoError(t, err)

	second, err := cache.Get(context.Background(), true)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int32(2), fetcher.calls.Load())

	current, ok := cache.Current()
	require.True(t, ok)
	assert.Equal(t, second, current)
}

func TestCache_ExpiredTokenNeverReturned(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	fetcher := &stubFetcher{clock: clock, ttl: -time.Minute}
	cache := newCache(t, fetcher, clock, nil)

	token, err := cache.Get(context.Background(), false)
	assert.ErrorIs(t, err, docgate.ErrSecretUnavailable)
	assert.True(t, token.IsZero())

	_, ok := cache.Current()
	assert.False(t, ok)
}

func TestCache_FailureLeavesCacheUnchanged(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	fetcher := &stubFetcher{clock: clock, ttl: time.Hour}
	cache := newCache(t, fetcher, clock, nil)

	first, err := cache.Get(context.Background(), false)
	require.NoError(t, err)

	fetcher.err = errors.New("backend unavailable")
	_, err = cache.Get(context.Background(), true)
	assert.ErrorIs(t, err, docgate.ErrSecretUnavailable)

	current, ok := cache.Current()
	require.True(t, ok)
	assert.Equal(t, first, current)
}

func TestCache_CallerCancellationDoesNotCancelFetch(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	fetcher := &stubFetcher{clock: clock, ttl: time.Hour, release: make(chan struct{})}
	cache := newCache(t, fetcher, clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	impatient := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctx, false)
		impatient <- err
	}()

	patient := make(chan docgate.ScopedToken, 1)
	go func() {
		tok, _ := cache.Get(context.Background(), false)
		patient <- tok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-impatient, context.Canceled)

	close(fetcher.release)
	tok := <-patient
	assert.False(t, tok.IsZero())
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestCache_Invalidate(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	fetcher := &stubFetcher{clock: clock, ttl: time.Hour}
	store := newMemStore()
	cache := newCache(t, fetcher, clock, store)

	first, err := cache.Get(context.Background(), false)
	require.NoError(t, err)

	// A token that is no longer current is ignored.
	cache.Invalidate(docgate.ScopedToken{ID: "par-old", AccessURI: "/p/old/"})
	current, ok := cache.Current()
	require.True(t, ok)
	assert.Equal(t, first, current)

	cache.Invalidate(first)
	_, ok = cache.Current()
	assert.False(t, ok)
	_, err = store.Load(context.Background(), "ns/docs")
	assert.ErrorIs(t, err, docgate.ErrNotFound)

	second, err := cache.Get(context.Background(), false)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCache_Store(t *testing.T) {
	t.Parallel()

	t.Run("saves fetched token", func(t *testing.T) {
		clock := newFakeClock()
		fetcher := &stubFetcher{clock: clock, ttl: time.Hour}
		store := newMemStore()
		cache := newCache(t, fetcher, clock, store)

		tok, err := cache.Get(context.Background(), false)
		require.NoError(t, err)

		stored, err := store.Load(context.Background(), "ns/docs")
		require.NoError(t, err)
		assert.Equal(t, tok, stored)
	})

	t.Run("reuses stored token", func(t *testing.T) {
		clock := newFakeClock()
		fetcher := &stubFetcher{clock: clock, ttl: time.Hour}
		store := newMemStore()
		saved := docgate.ScopedToken{ID: "par-stored", AccessURI: "/p/stored/", ExpiresAt: clock.Now().Add(time.Hour)}
		require.NoError(t, store.Save(context.Background(), "ns/docs", saved))

		cache := newCache(t, fetcher, clock, store)
		tok, err := cache.Get(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, saved, tok)
		assert.Zero(t, fetcher.calls.Load())
	})

	t.Run("ignores stale stored token", func(t *testing.T) {
		clock := newFakeClock()
		fetcher := &stubFetcher{clock: clock, ttl: time.Hour}
		store := newMemStore()
		stale := docgate.ScopedToken{ID: "par-stale", AccessURI: "/p/stale/", ExpiresAt: clock.Now().Add(time.Minute)}
		require.NoError(t, store.Save(context.Background(), "ns/docs", stale))

		cache := newCache(t, fetcher, clock, store)
		tok, err := cache.Get(context.Background(), false)
		require.NoError(t, err)
		assert.NotEqual(t, stale.ID, tok.ID)
		assert.Equal(t, int32(1), fetcher.calls.Load())
	})

	t.Run("save failure is not fatal", func(t *testing.T) {
		clock := newFakeClock()
		fetcher := &stubFetcher{clock: clock, ttl: time.Hour}
		store := newMemStore()
		store.saveErr = errors.New("disk full")

		cache := newCache(t, fetcher, clock, store)
		tok, err := cache.Get(context.Background(), false)
		require.NoError(t, err)
		assert.False(t, tok.IsZero())
		assert.Equal(t, 1, store.saves)
	})
}

func TestNew_RequiresFetcher(t *testing.T) {
	_, err := tokencache.New(tokencache.Config{})
	assert.ErrorIs(t, err, docgate.ErrMisconfigured)
}
