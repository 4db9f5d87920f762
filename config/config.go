package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/docgate"
	"github.com/sagarc03/docgate/credential"
	"github.com/sagarc03/docgate/database"
	gatewayhttp "github.com/sagarc03/docgate/http"
	"github.com/sagarc03/docgate/tokencache"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DOCGATE"

// Signing strategies.
const (
	StrategyDirect = "direct"
	StrategyScoped = "scoped"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for docgate.
type Config struct {
	Env         string                 `mapstructure:"env"`
	Server      ServerConfig           `mapstructure:"server"`
	Backend     BackendConfig          `mapstructure:"backend"`
	Signing     SigningConfig          `mapstructure:"signing"`
	ScopedToken ScopedTokenConfig      `mapstructure:"scoped_token"`
	Credentials credential.Config      `mapstructure:"credentials"`
	TokenStore  database.Config        `mapstructure:"token_store"`
	CORS        gatewayhttp.CORSConfig `mapstructure:"cors"`
	Metrics     MetricsConfig          `mapstructure:"metrics"`
	Log         LogConfig              `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
	// Token is the shared bearer token. Left empty, every gated request
	// is refused with 500.
	Token           string        `mapstructure:"token"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// BackendConfig identifies the bucket behind the gateway.
type BackendConfig struct {
	// Endpoint overrides the endpoint derived from Region.
	Endpoint  string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Region    string        `mapstructure:"region"`
	Namespace string        `mapstructure:"namespace"`
	Bucket    string        `mapstructure:"bucket"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"min=0"`
}

// ToBucket returns the configured bucket. It is not validated here; the
// serve path calls docgate.Bucket.Validate before use.
func (b BackendConfig) ToBucket() docgate.Bucket {
	if b.Endpoint != "" {
		return docgate.Bucket{Endpoint: b.Endpoint, Namespace: b.Namespace, Name: b.Bucket}
	}
	if b.Region == "" {
		return docgate.Bucket{Namespace: b.Namespace, Name: b.Bucket}
	}
	return docgate.BucketFromRegion(b.Region, b.Namespace, b.Bucket)
}

// SigningConfig selects how outbound requests are authenticated.
type SigningConfig struct {
	Strategy    string   `mapstructure:"strategy" validate:"required,oneof=direct scoped"`
	Headers     []string `mapstructure:"headers"`
	BodyHeaders []string `mapstructure:"body_headers"`
}

// ScopedTokenConfig holds pre-authenticated request settings.
type ScopedTokenConfig struct {
	TTL           time.Duration `mapstructure:"ttl" validate:"gt=0"`
	RefreshBefore time.Duration `mapstructure:"refresh_before" validate:"min=0,ltfield=TTL"`
	AccessType    string        `mapstructure:"access_type" validate:"required,oneof=ObjectRead AnyObjectRead"`
	NamePrefix    string        `mapstructure:"name_prefix" validate:"required"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout" validate:"min=0"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"omitempty,startswith=/"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":       "server.port",
	"token":      "server.token",
	"endpoint":   "backend.endpoint",
	"region":     "backend.region",
	"namespace":  "backend.namespace",
	"bucket":     "backend.bucket",
	"strategy":   "signing.strategy",
	"store-type": "token_store.type",
	"store-dsn":  "token_store.dsn",
	"log-level":  "log.level",
	"env":        "env",
	"metrics":    "metrics.enabled",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey, ok := flagToViperKey[f.Name]
		if !ok {
			return
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.token", "")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("backend.endpoint", "")
	v.SetDefault("backend.region", "")
	v.SetDefault("backend.namespace", "")
	v.SetDefault("backend.bucket", "")
	v.SetDefault("backend.timeout", docgate.DefaultBackendTimeout)

	v.SetDefault("signing.strategy", StrategyDirect)
	v.SetDefault("signing.headers", []string{})
	v.SetDefault("signing.body_headers", []string{})

	v.SetDefault("scoped_token.ttl", tokencache.DefaultTTL)
	v.SetDefault("scoped_token.refresh_before", tokencache.DefaultRefreshBefore)
	v.SetDefault("scoped_token.access_type", tokencache.DefaultAccessType)
	v.SetDefault("scoped_token.name_prefix", tokencache.DefaultNamePrefix)
	v.SetDefault("scoped_token.fetch_timeout", tokencache.DefaultFetchTimeout)

	v.SetDefault("credentials.cache", true)
	v.SetDefault("credentials.timeout", 10*time.Second)
	v.SetDefault("credentials.sources", []map[string]any{
		{"type": credential.SourceEnv},
		{"type": credential.SourceFile},
	})

	v.SetDefault("token_store.type", database.TypeNone)
	v.SetDefault("token_store.dsn", "")
	v.SetDefault("token_store.tables.tokens", "docgate_tokens")

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Length", "Content-Type"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("docgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags and the cross-field rules
// tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.TokenStore.Tables.Validate(); err != nil && cfg.TokenStore.Type != database.TypeNone {
		return fmt.Errorf("validate config: token_store.tables: %w", err)
	}

	for i, src := range cfg.Credentials.Sources {
		if src.Type == credential.SourceStatic && (src.Tenancy == "" || src.User == "" || src.Fingerprint == "" || src.KeyFile == "") {
			return fmt.Errorf("validate config: credentials.sources[%d]: static source needs tenancy, user, fingerprint and key_file: %w",
				i, docgate.ErrMisconfigured)
		}
	}

	return nil
}

// IsProd reports whether the configured environment is production.
func (c *Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}
