// Package config provides configuration loading and validation for docgate.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (DOCGATE_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"docgate.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with DOCGATE_ prefix:
//   - server.token → DOCGATE_SERVER_TOKEN
//   - backend.bucket → DOCGATE_BACKEND_BUCKET
//   - token_store.dsn → DOCGATE_TOKEN_STORE_DSN
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port, inbound bearer token and timeouts
//   - Backend: endpoint or region, namespace, bucket and outbound timeout
//   - Signing: direct or scoped strategy and signed header lists
//   - ScopedToken: pre-authenticated request lifetime and refresh margin
//   - Credentials: ordered credential sources (env, file, static)
//   - TokenStore: optional sqlite or postgres store for scoped tokens
//   - CORS, Metrics, Log
//
// Backend identifiers are not required here so that commands which never
// reach the bucket can load the same file; serve checks them.
package config
