// Package sessions keeps browser sessions: the server side binding of a
// random session id to a user, the signed cookie that carries the id, and
// the one-shot CSRF slot attached to each session.
package sessions

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown, destroyed and expired sessions alike.
var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	ID        string
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// Store binds session ids to users. Implementations must be safe for
// concurrent use and update a single session atomically.
type Store interface {
	Create(ctx context.Context, userID uuid.UUID) (*Session, error)
	// Get returns the live session and extends its lifetime.
	Get(ctx context.Context, id string) (*Session, error)
	Destroy(ctx context.Context, id string) error
	// PutCSRF replaces the pending CSRF value of the session.
	PutCSRF(ctx context.Context, id, token string) error
	// TakeCSRF returns the pending CSRF value and clears it in the same step.
	// An empty string means nothing was pending.
	TakeCSRF(ctx context.Context, id string) (string, error)
}

const randomBytes = 32

// randomString returns 32 bytes from crypto/rand, URL-safe encoded.
func randomString() (string, error) {
	b := make([]byte, randomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("can't get random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
