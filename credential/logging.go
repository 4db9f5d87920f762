package credential

import (
	"context"
	"log/slog"

	"github.com/sagarc03/docgate"
)

// Outcome is the result of one provider attempt.
type Outcome string

const (
	OutcomeFound  Outcome = "found"
	OutcomeAbsent Outcome = "absent"
	OutcomeError  Outcome = "error"
)

// Observer receives the outcome of every provider attempt.
type Observer func(provider string, outcome Outcome)

// LoggingProvider wraps a Provider and logs each attempt. It never changes
// the wrapped provider's result.
type LoggingProvider struct {
	inner    Provider
	observer Observer
}

func NewLoggingProvider(inner Provider, observer Observer) *LoggingProvider {
	return &LoggingProvider{inner: inner, observer: observer}
}

func (p *LoggingProvider) Name() string { return p.inner.Name() }

func (p *LoggingProvider) Resolve(ctx context.Context) (docgate.Credential, bool, error) {
	name := p.inner.Name()
	slog.Debug("credential provider attempting", "provider", name)

	cred, found, err := p.inner.Resolve(ctx)

	var outcome Outcome
	switch {
	case err != nil:
		outcome = OutcomeError
		slog.Error("credential provider failed", "provider", name, "err", err)
	case found:
		outcome = OutcomeFound
		slog.Info("credential found", "provider", name, "user", cred.UserID, "fingerprint", cred.Fingerprint)
	default:
		outcome = OutcomeAbsent
		slog.Debug("credential absent", "provider", name)
	}

	if p.observer != nil {
		p.observer(name, outcome)
	}

	return cred, found, err
}
