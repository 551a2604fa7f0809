package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no credential was presented at all.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials covers a wrong username/password pair, an unknown
	// bearer token and an unusable session. Callers must not tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrInvalidToken = fmt.Errorf("%w: unknown bearer token", ErrInvalidCredentials)
	ErrNoSession    = fmt.Errorf("%w: no valid session", ErrInvalidCredentials)
)
