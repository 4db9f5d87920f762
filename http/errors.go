package http

// Error codes written in the "error" field of JSON error bodies.
const (
	CodeUnauthorized       = "unauthorized"
	CodeMisconfigured      = "server_misconfigured"
	CodeInvalidKey         = "invalid_key"
	CodeInvalidLimit       = "invalid_limit"
	CodeNotFound           = "not_found"
	CodeBackendError       = "backend_error"
	CodeBackendUnreachable = "backend_unreachable"
	CodeCredentialError    = "credential_error"
	CodeSigningFailed      = "signing_failed"
	CodeTokenUnavailable   = "token_unavailable"
	CodeTimeout            = "gateway_timeout"
	CodeInternal           = "internal_error"
)
