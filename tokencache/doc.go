// Package tokencache obtains and caches pre-authenticated requests (PARs),
// the scoped tokens that let docgate read objects without signing each
// request.
//
// PARFetcher creates a PAR with one signed request. Cache hands out the
// current token, refreshing it ahead of expiry with at most one fetch in
// flight. An optional docgate.TokenStore shares tokens across restarts and
// replicas.
package tokencache
