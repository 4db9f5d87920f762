package credential

import (
	"fmt"
	"time"

	"github.com/sagarc03/docgate"
)

// Source types accepted in configuration.
const (
	SourceEnv    = "env"
	SourceFile   = "file"
	SourceStatic = "static"
)

// Config holds credential resolution configuration.
type Config struct {
	Cache   bool           `mapstructure:"cache"`
	Timeout time.Duration  `mapstructure:"timeout" validate:"min=0"`
	Sources []SourceConfig `mapstructure:"sources" validate:"required,min=1,dive"`
}

// SourceConfig configures one provider. Which fields apply depends on Type.
type SourceConfig struct {
	Type        string `mapstructure:"type" validate:"required,oneof=env file static"`
	Prefix      string `mapstructure:"prefix"`      // env
	Path        string `mapstructure:"path"`        // file
	Profile     string `mapstructure:"profile"`     // file
	Tenancy     string `mapstructure:"tenancy"`     // static
	User        string `mapstructure:"user"`        // static
	Fingerprint string `mapstructure:"fingerprint"` // static
	KeyFile     string `mapstructure:"key_file"`    // static
	Region      string `mapstructure:"region"`      // static
}

// NewProvider builds the provider described by src.
func NewProvider(src SourceConfig) (Provider, error) {
	switch src.Type {
	case SourceEnv:
		return NewEnvProvider(src.Prefix), nil
	case SourceFile:
		return NewFileProvider(src.Path, src.Profile), nil
	case SourceStatic:
		return &StaticProvider{
			Credential: docgate.Credential{
				TenancyID:   src.Tenancy,
				UserID:      src.User,
				Fingerprint: src.Fingerprint,
				Region:      src.Region,
			},
			KeyFile: src.KeyFile,
		}, nil
	default:
		return nil, fmt.Errorf("new provider: unknown source type %q: %w", src.Type, docgate.ErrInvalidInput)
	}
}

// NewChainFromConfig builds a chain from cfg, wrapping every provider in a
// LoggingProvider reporting to observer (may be nil).
func NewChainFromConfig(cfg Config, observer Observer) (*Chain, error) {
	providers := make([]Provider, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		p, err := NewProvider(src)
		if err != nil {
			return nil, err
		}
		providers = append(providers, NewLoggingProvider(p, observer))
	}

	return NewChain(providers...).WithTimeout(cfg.Timeout), nil
}

// NewResolver builds the resolver the gateway uses: the chain from cfg,
// cached when cfg.Cache is set.
func NewResolver(cfg Config, observer Observer) (docgate.CredentialResolver, *Chain, error) {
	chain, err := NewChainFromConfig(cfg, observer)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Cache {
		return NewCachedResolver(chain), chain, nil
	}
	return chain, chain, nil
}
