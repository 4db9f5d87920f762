package credential

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sagarc03/docgate"
)

// Chain tries providers in order and returns the first credential found.
// Credentials are never merged across providers.
type Chain struct {
	providers []Provider
	timeout   time.Duration
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// WithTimeout returns a copy of the chain that bounds each resolution by d.
func (c *Chain) WithTimeout(d time.Duration) *Chain {
	cp := *c
	cp.timeout = d
	return &cp
}

// Providers returns the provider names in resolution order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve implements docgate.CredentialResolver.
func (c *Chain) Resolve(ctx context.Context) (docgate.Credential, error) {
	cred, _, err := c.ResolveWithSource(ctx)
	return cred, err
}

// ResolveWithSource resolves a credential and names the provider that
// supplied it.
//
// Error types returned:
//   - docgate.ErrProvider: a provider failed; the chain stops there
//   - docgate.ErrNoCredentialFound: every provider reported absent
//   - context errors when ctx ends between attempts
func (c *Chain) ResolveWithSource(ctx context.Context) (docgate.Credential, string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return docgate.Credential{}, "", fmt.Errorf("resolve credential: %w", err)
		}

		cred, found, err := p.Resolve(ctx)
		if err != nil {
			return docgate.Credential{}, "", fmt.Errorf("%w: %s: %w", docgate.ErrProvider, p.Name(), err)
		}
		if found {
			return cred, p.Name(), nil
		}
	}

	return docgate.Credential{}, "", docgate.ErrNoCredentialFound
}

// CachedResolver remembers the first credential resolved and serves it for
// the lifetime of the process. Failures are not cached. Concurrent misses
// share one resolution, which runs detached from the caller that started it.
type CachedResolver struct {
	resolver docgate.CredentialResolver

	mu   sync.RWMutex
	cred *docgate.Credential

	group singleflight.Group
}

func NewCachedResolver(resolver docgate.CredentialResolver) *CachedResolver {
	return &CachedResolver{resolver: resolver}
}

func (c *CachedResolver) Resolve(ctx context.Context) (docgate.Credential, error) {
	if cred, ok := c.cached(); ok {
		return cred, nil
	}

	ch := c.group.DoChan("credential", func() (any, error) {
		if cred, ok := c.cached(); ok {
			return cred, nil
		}

		cred, err := c.resolver.Resolve(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cred = &cred
		c.mu.Unlock()
		return cred, nil
	})

	select {
	case <-ctx.Done():
		return docgate.Credential{}, fmt.Errorf("resolve credential: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return docgate.Credential{}, res.Err
		}
		return res.Val.(docgate.Credential), nil
	}
}

func (c *CachedResolver) cached() (docgate.Credential, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cred == nil {
		return docgate.Credential{}, false
	}
	return *c.cred, true
}
