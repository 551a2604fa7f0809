package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"acronym-restful/models"
	"acronym-restful/sessions"

	"gorm.io/gorm"
)

// Credentials is what a request presented, before any lookup.
type Credentials struct {
	Bearer           string
	HasBearer        bool
	SessionCookie    string
	HasSessionCookie bool
}

// ParseBearer extracts the token from an "Authorization: Bearer <token>"
// header value. Other schemes count as no bearer credential.
func ParseBearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	if !found {
		return "", true
	}
	return strings.TrimSpace(token), true
}

// CredentialsFromHeader reads the bearer token and the named session cookie.
func CredentialsFromHeader(h http.Header, cookieName string) Credentials {
	var c Credentials
	c.Bearer, c.HasBearer = ParseBearer(h.Get("Authorization"))

	r := http.Request{Header: http.Header{"Cookie": h.Values("Cookie")}}
	if cookie, err := r.Cookie(cookieName); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			c.SessionCookie, c.HasSessionCookie = value, true
		}
	}
	return c
}

// Identity is the resolved caller of a request.
type Identity struct {
	User *models.User
	// SessionID is set when the identity came from a session cookie.
	SessionID string
}

// CredentialSource resolves one kind of credential. presented reports
// whether the credential this source understands was in the request at all;
// a source that was not presented must return a nil error.
type CredentialSource interface {
	Resolve(ctx context.Context, creds Credentials) (identity *Identity, presented bool, err error)
}

// BearerSource resolves bearer tokens through the token store.
type BearerSource struct {
	tokens TokenStore
	users  UserFinder
}

func NewBearerSource(tokens TokenStore, users UserFinder) *BearerSource {
	return &BearerSource{tokens: tokens, users: users}
}

func (s *BearerSource) Resolve(ctx context.Context, creds Credentials) (*Identity, bool, error) {
	if !creds.HasBearer {
		return nil, false, nil
	}
	if creds.Bearer == "" {
		return nil, true, ErrInvalidToken
	}

	token, err := s.tokens.FindByValue(ctx, creds.Bearer)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, true, ErrInvalidToken
	}
	if err != nil {
		return nil, true, fmt.Errorf("failed to look up token: %w", err)
	}

	user, err := s.users.FindByID(ctx, token.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, true, ErrInvalidToken
	}
	if err != nil {
		return nil, true, fmt.Errorf("failed to look up token owner: %w", err)
	}
	return &Identity{User: user}, true, nil
}

// SessionSource resolves signed session cookies through the session store.
type SessionSource struct {
	store sessions.Store
	codec *sessions.CookieCodec
	users UserFinder
}

func NewSessionSource(store sessions.Store, codec *sessions.CookieCodec, users UserFinder) *SessionSource {
	return &SessionSource{store: store, codec: codec, users: users}
}

func (s *SessionSource) Resolve(ctx context.Context, creds Credentials) (*Identity, bool, error) {
	if !creds.HasSessionCookie {
		return nil, false, nil
	}

	sessionID, err := s.codec.Decode(creds.SessionCookie)
	if err != nil {
		return nil, true, ErrNoSession
	}
	session, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, sessions.ErrSessionNotFound) {
		return nil, true, ErrNoSession
	}
	if err != nil {
		return nil, true, fmt.Errorf("failed to look up session: %w", err)
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, true, ErrNoSession
	}
	if err != nil {
		return nil, true, fmt.Errorf("failed to look up session owner: %w", err)
	}
	return &Identity{User: user, SessionID: session.ID}, true, nil
}

// Authenticator is the single answer to "who is calling". Sources are
// consulted in order and the first one whose credential was presented
// decides the outcome.
type Authenticator struct {
	sources    []CredentialSource
	cookieName string
}

func NewAuthenticator(cookieName string, sources ...CredentialSource) *Authenticator {
	return &Authenticator{sources: sources, cookieName: cookieName}
}

// Credentials extracts the credentials this authenticator understands from h.
func (a *Authenticator) Credentials(h http.Header) Credentials {
	return CredentialsFromHeader(h, a.cookieName)
}

// ResolveIdentity returns ErrUnauthenticated when no source was presented,
// ErrInvalidToken or ErrNoSession when the deciding credential is unusable,
// and any other error for storage failures.
func (a *Authenticator) ResolveIdentity(ctx context.Context, creds Credentials) (*Identity, error) {
	for _, source := range a.sources {
		identity, presented, err := source.Resolve(ctx, creds)
		if !presented {
			continue
		}
		if err != nil {
			return nil, err
		}
		return identity, nil
	}
	return nil, ErrUnauthenticated
}

// RequireIdentity is ResolveIdentity with the mechanism hidden: every
// credential failure becomes ErrInvalidCredentials.
func (a *Authenticator) RequireIdentity(ctx context.Context, creds Credentials) (*Identity, error) {
	identity, err := a.ResolveIdentity(ctx, creds)
	switch {
	case err == nil:
		return identity, nil
	case errors.Is(err, ErrUnauthenticated):
		return nil, ErrUnauthenticated
	case errors.Is(err, ErrInvalidCredentials):
		return nil, ErrInvalidCredentials
	default:
		return nil, err
	}
}

// IsAuthError reports whether err is a credential failure as opposed to an
// internal one.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrInvalidCredentials)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}
