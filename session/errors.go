package session

import "errors"

var (
	// ErrKeyNotFound is returned by Keychain implementations for absent keys.
	ErrKeyNotFound = errors.New("key not found")

	// ErrSessionSuperseded is returned by SignIn when the store was invalidated
	// (a 401-triggered clear or a sign-out) while the login call was in flight.
	// The sign-in result is discarded rather than resurrecting a dead session.
	ErrSessionSuperseded = errors.New("session superseded during sign-in")
)
