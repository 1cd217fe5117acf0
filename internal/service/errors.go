package service

import "errors"

var (
	ErrInvalidLogin       = errors.New("invalid email or password")
	ErrAccountNotVerified = errors.New("account not verified")
	ErrAlreadyVerified    = errors.New("account already verified")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAccountNotFound    = errors.New("account not found")
	ErrPasswordReuse      = errors.New("new password matches the current password")

	// ErrNoActiveSession is returned by Logout when nothing is cached.
	ErrNoActiveSession = errors.New("no active session")
	// ErrCorruptSession means the cached access token failed verification for a
	// reason other than expiry.
	ErrCorruptSession = errors.New("cached access token is corrupt")
	// ErrSessionContended means the refresh loop kept losing the cache race.
	ErrSessionContended = errors.New("session refresh contended")
)
