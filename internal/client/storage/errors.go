package storage

import "errors"

// Common client storage errors
var (
	// ErrSessionNotFound indicates that the user is logged out
	ErrSessionNotFound = errors.New("session not found")
)
