package sessions

import (
	"context"
	"crypto/subtle"
	"errors"
)

// ErrCSRFMismatch is what callers report when Consume returns false.
var ErrCSRFMismatch = errors.New("csrf token missing or stale")

// CSRFGuard hands out single-use form tokens tied to a session.
type CSRFGuard struct {
	store Store
}

func NewCSRFGuard(store Store) *CSRFGuard {
	return &CSRFGuard{store: store}
}

// Issue generates a token and makes it the session's only valid one.
func (g *CSRFGuard) Issue(ctx context.Context, sessionID string) (string, error) {
	token, err := randomString()
	if err != nil {
		return "", err
	}
	if err := g.store.PutCSRF(ctx, sessionID, token); err != nil {
		return "", err
	}
	return token, nil
}

// Consume clears the pending token before comparing, so a token is
// accepted at most once whatever the outcome.
func (g *CSRFGuard) Consume(ctx context.Context, sessionID, supplied string) (bool, error) {
	pending, err := g.store.TakeCSRF(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if pending == "" || supplied == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(pending), []byte(supplied)) == 1, nil
}
