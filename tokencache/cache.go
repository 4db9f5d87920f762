package tokencache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sagarc03/docgate"
)

const (
	DefaultRefreshBefore = 5 * time.Minute

	refreshKey = "token"
)

// Fetch outcomes reported to Config.Observer.
const (
	OutcomeHit      = "hit"
	OutcomeStoreHit = "store_hit"
	OutcomeFetched  = "fetched"
	OutcomeFailed   = "failed"
)

// Fetcher obtains a new scoped token. PARFetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context) (docgate.ScopedToken, error)
}

// Config holds configuration options for Cache.
type Config struct {
	Fetcher Fetcher
	// Store is an optional second level shared between processes.
	Store docgate.TokenStore
	// StoreKey names the token in Store; usually the bucket.
	StoreKey      string
	RefreshBefore time.Duration // Refresh this long before expiry (default: 5m)
	FetchTimeout  time.Duration // Bound on a shared refresh (default: 30s)
	Now           func() time.Time
	Observer      func(outcome string)
}

// Cache holds the current scoped token.
//
// A token is handed out only while now < ExpiresAt - RefreshBefore. Any
// other Get triggers a refresh; concurrent callers share one fetch. The
// fetch runs detached from the caller that started it, so one caller
// giving up does not fail the others.
type Cache struct {
	fetcher       Fetcher
	store         docgate.TokenStore
	storeKey      string
	refreshBefore time.Duration
	fetchTimeout  time.Duration
	now           func() time.Time
	observe       func(outcome string)

	mu    sync.RWMutex
	token *docgate.ScopedToken

	group singleflight.Group
}

func New(cfg Config) (*Cache, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("new token cache: fetcher is required: %w", docgate.ErrMisconfigured)
	}

	c := &Cache{
		fetcher:       cfg.Fetcher,
		store:         cfg.Store,
		storeKey:      cfg.StoreKey,
		refreshBefore: cfg.RefreshBefore,
		fetchTimeout:  cfg.FetchTimeout,
		now:           cfg.Now,
		observe:       cfg.Observer,
	}
	if c.refreshBefore <= 0 {
		c.refreshBefore = DefaultRefreshBefore
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = DefaultFetchTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.observe == nil {
		c.observe = func(string) {}
	}
	if c.storeKey == "" {
		c.storeKey = "default"
	}

	return c, nil
}

// Get returns a token valid for at least RefreshBefore. With forceRefresh
// the cached token is ignored and a new one is fetched.
//
// A failed refresh leaves the cached state unchanged and returns an error
// wrapping docgate.ErrSecretUnavailable. If ctx ends first, Get returns
// ctx's error while the shared refresh carries on.
func (c *Cache) Get(ctx context.Context, forceRefresh bool) (docgate.ScopedToken, error) {
	if !forceRefresh {
		if t, ok := c.current(); ok {
			c.observe(OutcomeHit)
			return t, nil
		}
	}

	ch := c.group.DoChan(refreshKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.refresh(fetchCtx, forceRefresh)
	})

	select {
	case <-ctx.Done():
		return docgate.ScopedToken{}, fmt.Errorf("get scoped token: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return docgate.ScopedToken{}, res.Err
		}
		return res.Val.(docgate.ScopedToken), nil
	}
}

// Current returns the cached token without refreshing.
func (c *Cache) Current() (docgate.ScopedToken, bool) {
	return c.current()
}

// Invalidate drops token if it is still the cached one. A token that was
// already replaced is left alone.
func (c *Cache) Invalidate(token docgate.ScopedToken) {
	c.mu.Lock()
	if c.token == nil || !sameToken(*c.token, token) {
		c.mu.Unlock()
		return
	}
	c.token = nil
	c.mu.Unlock()

	slog.Info("scoped token invalidated", "token_id", token.ID)

	if c.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	stored, err := c.store.Load(ctx, c.storeKey)
	if err != nil || !sameToken(stored, token) {
		return
	}
	if err := c.store.Delete(ctx, c.storeKey); err != nil {
		slog.Warn("failed to delete invalidated token from store", "token_id", token.ID, "err", err)
	}
}

func (c *Cache) current() (docgate.ScopedToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == nil || !c.token.ValidAt(c.now(), c.refreshBefore) {
		return docgate.ScopedToken{}, false
	}
	return *c.token, true
}

func (c *Cache) set(t docgate.ScopedToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = &t
}

func (c *Cache) refresh(ctx context.Context, force bool) (docgate.ScopedToken, error) {
	if !force {
		// Another refresh may have completed since the caller's check.
		if t, ok := c.current(); ok {
			return t, nil
		}
		if t, ok := c.loadFromStore(ctx); ok {
			c.set(t)
			c.observe(OutcomeStoreHit)
			return t, nil
		}
	}

	t, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.observe(OutcomeFailed)
		slog.Error("scoped token refresh failed", "err", err)
		if !errors.Is(err, docgate.ErrSecretUnavailable) {
			err = fmt.Errorf("%w: %w", docgate.ErrSecretUnavailable, err)
		}
		return docgate.ScopedToken{}, err
	}

	if t.IsZero() || t.Expired(c.now()) {
		c.observe(OutcomeFailed)
		return docgate.ScopedToken{}, fmt.Errorf("%w: fetched token already expired", docgate.ErrSecretUnavailable)
	}

	c.set(t)
	c.observe(OutcomeFetched)
	slog.Info("scoped token refreshed", "token_id", t.ID, "expires_at", t.ExpiresAt)

	if c.store != nil {
		if err := c.store.Save(ctx, c.storeKey, t); err != nil {
			slog.Warn("failed to persist scoped token", "token_id", t.ID, "err", err)
		}
	}

	return t, nil
}

func (c *Cache) loadFromStore(ctx context.Context) (docgate.ScopedToken, bool) {
	if c.store == nil {
		return docgate.ScopedToken{}, false
	}

	t, err := c.store.Load(ctx, c.storeKey)
	if err != nil {
		if !errors.Is(err, docgate.ErrNotFound) {
			slog.Warn("failed to load scoped token from store", "err", err)
		}
		return docgate.ScopedToken{}, false
	}

	if !t.ValidAt(c.now(), c.refreshBefore) {
		return docgate.ScopedToken{}, false
	}

	return t, true
}

func sameToken(a, b docgate.ScopedToken) bool {
	return a.ID == b.ID && a.AccessURI == b.AccessURI
}
