package session

import "errors"

// Failure taxonomy. ErrStoreUnavailable means identity cannot be confirmed
// and is never to be conflated with an absent session: handshake callers
// fail closed on it, and eviction logic must not run.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExpired      = errors.New("session expired")
	ErrSessionUserMismatch = errors.New("session user mismatch")
	ErrStoreUnavailable    = errors.New("session store unavailable")
)
