package credential

import "errors"

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileExists   = errors.New("profile already exists")
)

// Errors returned by providers. Both stop a chain.
var (
	ErrIncompleteCredential = errors.New("incomplete credential")
	ErrKeyUnreadable        = errors.New("private key unreadable")
)
