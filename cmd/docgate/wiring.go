package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sagarc03/docgate"
	"github.com/sagarc03/docgate/config"
	"github.com/sagarc03/docgate/credential"
	"github.com/sagarc03/docgate/database"
	"github.com/sagarc03/docgate/metrics"
	"github.com/sagarc03/docgate/tokencache"
)

// newHTTPClient returns the shared outbound client. Per-call deadlines come
// from the request context, so the client itself has no timeout.
func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.MaxIdleConnsPerHost = 32
	transport.ResponseHeaderTimeout = 0

	return &http.Client{Transport: transport}
}

func newSigner(cfg *config.Config) *docgate.RequestSigner {
	return docgate.NewRequestSigner(docgate.SignerConfig{
		Headers:     cfg.Signing.Headers,
		BodyHeaders: cfg.Signing.BodyHeaders,
	})
}

func credentialObserver(m *metrics.Metrics) credential.Observer {
	if m == nil {
		return nil
	}
	return m.ObserveCredential
}

func tokenObserver(m *metrics.Metrics) func(string) {
	if m == nil {
		return nil
	}
	return m.ObserveTokenFetch
}

// backendDeps are the pieces every outbound path needs.
type backendDeps struct {
	bucket   docgate.Bucket
	resolver docgate.CredentialResolver
	chain    *credential.Chain
	signer   *docgate.RequestSigner
	client   *http.Client
}

func buildBackendDeps(cfg *config.Config, m *metrics.Metrics) (backendDeps, error) {
	bucket := cfg.Backend.ToBucket()
	if err := bucket.Validate(); err != nil {
		return backendDeps{}, fmt.Errorf("backend: %w", err)
	}

	resolver, chain, err := credential.NewResolver(cfg.Credentials, credentialObserver(m))
	if err != nil {
		return backendDeps{}, fmt.Errorf("credentials: %w", err)
	}

	return backendDeps{
		bucket:   bucket,
		resolver: resolver,
		chain:    chain,
		signer:   newSigner(cfg),
		client:   newHTTPClient(),
	}, nil
}

// buildTokenCache wires the PAR fetcher, the optional token store and the
// cache. The returned cleanup closes the store.
func buildTokenCache(ctx context.Context, cfg *config.Config, deps backendDeps, m *metrics.Metrics) (*tokencache.Cache, func(), error) {
	store, closeStore, err := database.Open(ctx, cfg.TokenStore)
	if err != nil {
		return nil, nil, fmt.Errorf("token store: %w", err)
	}
	if store != nil {
		slog.Info("scoped token store ready", "type", cfg.TokenStore.Type, "table", cfg.TokenStore.Tables.Tokens)
	}

	fetcher, err := tokencache.NewPARFetcher(tokencache.FetcherConfig{
		Bucket:     deps.bucket,
		Resolver:   deps.resolver,
		Signer:     deps.signer,
		Client:     deps.client,
		TTL:        cfg.ScopedToken.TTL,
		AccessType: cfg.ScopedToken.AccessType,
		NamePrefix: cfg.ScopedToken.NamePrefix,
		Timeout:    cfg.ScopedToken.FetchTimeout,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	cache, err := tokencache.New(tokencache.Config{
		Fetcher:       fetcher,
		Store:         store,
		StoreKey:      deps.bucket.String(),
		RefreshBefore: cfg.ScopedToken.RefreshBefore,
		FetchTimeout:  cfg.ScopedToken.FetchTimeout,
		Observer:      tokenObserver(m),
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	return cache, closeStore, nil
}

// buildGateway assembles the gateway for the configured strategy.
func buildGateway(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*docgate.Gateway, func(), error) {
	deps, err := buildBackendDeps(cfg, m)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("credential chain configured", "providers", deps.chain.Providers(), "cache", cfg.Credentials.Cache)

	cleanup := func() {}

	var strategy docgate.Strategy
	switch cfg.Signing.Strategy {
	case config.StrategyScoped:
		cache, closeStore, err := buildTokenCache(ctx, cfg, deps, m)
		if err != nil {
			return nil, nil, err
		}
		cleanup = closeStore

		strategy, err = docgate.NewScopedTokenStrategy(deps.bucket, cache)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	default:
		strategy, err = docgate.NewDirectStrategy(deps.bucket, deps.resolver, deps.signer)
		if err != nil {
			return nil, nil, err
		}
	}

	gw, err := docgate.NewGateway(strategy, deps.client, docgate.GatewayConfig{Timeout: cfg.Backend.Timeout})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return gw, cleanup, nil
}
