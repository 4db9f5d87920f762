// Package credential resolves the credential docgate signs outbound
// requests with.
//
// Providers are consulted in order by a Chain. A provider either finds a
// credential, reports it absent, or fails; absence moves on to the next
// provider, failure stops the chain.
//
//   - EnvProvider: OCI_TENANCY, OCI_USER, OCI_FINGERPRINT, OCI_KEY_FILE (or OCI_KEY), OCI_REGION
//   - FileProvider: a named profile in a YAML credentials file
//   - StaticProvider: a credential taken from configuration
//
// Every provider built by NewChainFromConfig is wrapped in a LoggingProvider.
package credential
