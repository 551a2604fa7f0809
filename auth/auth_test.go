package auth

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"acronym-restful/models"
	"acronym-restful/sessions"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[uuid.UUID]*models.User{}}
}

func (f *fakeUsers) add(t *testing.T, username, password string) *models.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	user := &models.User{ID: uuid.New(), Name: username, Username: username, PasswordHash: hash}
	f.mu.Lock()
	f.users[user.ID] = user
	f.mu.Unlock()
	return user
}

func (f *fakeUsers) remove(id uuid.UUID) {
	f.mu.Lock()
	delete(f.users, id)
	f.mu.Unlock()
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeTokens struct {
	mu      sync.Mutex
	byValue map[string]*models.Token
	creates int
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byValue: map[string]*models.Token{}}
}

func (f *fakeTokens) Create(_ context.Context, token *models.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if _, exists := f.byValue[token.Value]; exists {
		return gorm.ErrDuplicatedKey
	}
	token.ID = uuid.New()
	f.byValue[token.Value] = token
	return nil
}

func (f *fakeTokens) FindByValue(_ context.Context, value string) (*models.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.byValue[value]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fixture struct {
	users  *fakeUsers
	tokens *fakeTokens
	store  *sessions.MemoryStore
	codec  *sessions.CookieCodec
	issuer *TokenIssuer
	authn  *Authenticator
}

func newFixture() *fixture {
	f := &fixture{
		users:  newFakeUsers(),
		tokens: newFakeTokens(),
		store:  sessions.NewMemoryStore(time.Hour, clockwork.NewFakeClock()),
		codec:  sessions.NewCookieCodec("acronyms_session", []byte("test-secret"), false, time.Hour),
	}
	f.issuer = NewTokenIssuer(f.tokens)
	f.authn = NewAuthenticator("acronyms_session",
		NewBearerSource(f.tokens, f.users),
		NewSessionSource(f.store, f.codec, f.users),
	)
	return f
}

func (f *fixture) sessionCookie(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	session, err := f.store.Create(context.Background(), userID)
	require.NoError(t, err)
	value, err := f.codec.Encode(session.ID)
	require.NoError(t, err)
	return value
}

func TestPasswordVerifier_Authenticate(t *testing.T) {
	users := newFakeUsers()
	alice := users.add(t, "alice", "correct horse")
	verifier := NewPasswordVerifier(users)
	ctx := context.Background()

	user, err := verifier.Authenticate(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	_, wrongPassword := verifier.Authenticate(ctx, "alice", "battery staple")
	_, unknownUser := verifier.Authenticate(ctx, "mallory", "correct horse")
	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error(), "failures must be indistinguishable")
}

func TestTokenIssuer_IssuedTokenResolvesToOwner(t *testing.T) {
	f := newFixture()
	alice := f.users.add(t, "alice", "pw")
	bob := f.users.add(t, "bob", "pw")
	ctx := context.Background()

	token, err := f.issuer.Issue(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, token.Value, 43, "32 random bytes, unpadded base64")

	other, err := f.issuer.Issue(ctx, bob.ID)
	require.NoError(t, err)
	assert.NotEqual(t, token.Value, other.Value)

	identity, err := f.authn.ResolveIdentity(ctx, Credentials{Bearer: token.Value, HasBearer: true})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, identity.User.ID)
	assert.Empty(t, identity.SessionID)
}

func TestTokenIssuer_RetriesCollision(t *testing.T) {
	tokens := newFakeTokens()
	issuer := NewTokenIssuer(tokens)
	first := bytes.Repeat([]byte{1}, tokenBytes)
	second := bytes.Repeat([]byte{2}, tokenBytes)
	issuer.random = bytes.NewReader(append(append(first, first...), second...))
	ctx := context.Background()

	a, err := issuer.Issue(ctx, uuid.New())
	require.NoError(t, err)
	b, err := issuer.Issue(ctx, uuid.New())
	require.NoError(t, err)

	assert.NotEqual(t, a.Value, b.Value)
	assert.Equal(t, 3, tokens.creates)
}

func TestTokenIssuer_GivesUpAfterRepeatedCollisions(t *testing.T) {
	tokens := newFakeTokens()
	issuer := NewTokenIssuer(tokens)
	issuer.random = bytes.NewReader(bytes.Repeat([]byte{7}, tokenBytes*(maxIssueAttempts+1)))
	ctx := context.Background()

	_, err := issuer.Issue(ctx, uuid.New())
	require.NoError(t, err)
	_, err = issuer.Issue(ctx, uuid.New())
	assert.ErrorContains(t, err, "unique token")
}

func TestAuthenticator_ResolutionOrder(t *testing.T) {
	f := newFixture()
	alice := f.users.add(t, "alice", "pw")
	bob := f.users.add(t, "bob", "pw")
	ctx := context.Background()

	token, err := f.issuer.Issue(ctx, alice.ID)
	require.NoError(t, err)
	bobCookie := f.sessionCookie(t, bob.ID)

	tests := []struct {
		name    string
		creds   Credentials
		wantID  uuid.UUID
		wantErr error
	}{
		{
			name:    "nothing presented",
			creds:   Credentials{},
			wantErr: ErrUnauthenticated,
		},
		{
			name:   "bearer wins over session",
			creds:  Credentials{Bearer: token.Value, HasBearer: true, SessionCookie: bobCookie, HasSessionCookie: true},
			wantID: alice.ID,
		},
		{
			name:    "unknown bearer fails even with a valid session",
			creds:   Credentials{Bearer: "unknown", HasBearer: true, SessionCookie: bobCookie, HasSessionCookie: true},
			wantErr: ErrInvalidToken,
		},
		{
			name:    "empty bearer",
			creds:   Credentials{HasBearer: true},
			wantErr: ErrInvalidToken,
		},
		{
			name:   "session only",
			creds:  Credentials{SessionCookie: bobCookie, HasSessionCookie: true},
			wantID: bob.ID,
		},
		{
			name:    "tampered cookie",
			creds:   Credentials{SessionCookie: bobCookie + "x", HasSessionCookie: true},
			wantErr: ErrNoSession,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := f.authn.ResolveIdentity(ctx, tt.creds)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, identity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, identity.User.ID)
		})
	}
}

func TestSessionSource_RejectsDestroyedAndOrphanedSessions(t *testing.T) {
	f := newFixture()
	alice := f.users.add(t, "alice", "pw")
	ctx := context.Background()

	session, err := f.store.Create(ctx, alice.ID)
	require.NoError(t, err)
	cookie, err := f.codec.Encode(session.ID)
	require.NoError(t, err)
	creds := Credentials{SessionCookie: cookie, HasSessionCookie: true}

	identity, err := f.authn.ResolveIdentity(ctx, creds)
	require.NoError(t, err)
	assert.Equal(t, session.ID, identity.SessionID)

	f.users.remove(alice.ID)
	_, err = f.authn.ResolveIdentity(ctx, creds)
	assert.ErrorIs(t, err, ErrNoSession)

	f.users.users[alice.ID] = alice
	require.NoError(t, f.store.Destroy(ctx, session.ID))
	_, err = f.authn.ResolveIdentity(ctx, creds)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRequireIdentity_HidesMechanism(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, tokenErr := f.authn.RequireIdentity(ctx, Credentials{Bearer: "nope", HasBearer: true})
	_, sessionErr := f.authn.RequireIdentity(ctx, Credentials{SessionCookie: "nope", HasSessionCookie: true})
	assert.Equal(t, ErrInvalidCredentials, tokenErr)
	assert.Equal(t, ErrInvalidCredentials, sessionErr)

	_, noneErr := f.authn.RequireIdentity(ctx, Credentials{})
	assert.Equal(t, ErrUnauthenticated, noneErr)
}

func TestCredentialsFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "bearer abc")
	h.Add("Cookie", "other=1; acronyms_session=cookie-value")

	creds := CredentialsFromHeader(h, "acronyms_session")
	assert.Equal(t, Credentials{Bearer: "abc", HasBearer: true, SessionCookie: "cookie-value", HasSessionCookie: true}, creds)

	h = http.Header{}
	h.Set("Authorization", "Basic YWxpY2U6cHc=")
	creds = CredentialsFromHeader(h, "acronyms_session")
	assert.False(t, creds.HasBearer)
	assert.False(t, creds.HasSessionCookie)
}

func TestAuthFilter(t *testing.T) {
	f := newFixture()
	alice := f.users.add(t, "alice", "pw")
	token, err := f.issuer.Issue(context.Background(), alice.ID)
	require.NoError(t, err)

	filters := NewFilters(f.authn, zap.NewNop())
	ws := new(restful.WebService)
	ws.Path("/protected").Produces(restful.MIME_JSON)
	ws.Route(ws.GET("").Filter(filters.AuthFilter()).To(func(req *restful.Request, resp *restful.Response) {
		identity, ok := IdentityFrom(req)
		require.True(t, ok)
		_ = resp.WriteAsJson(map[string]string{"username": identity.User.Username})
	}))
	container := restful.NewContainer()
	container.Add(ws)

	rec := httptest.NewRecorder()
	container.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	container.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token.Value)
	rec = httptest.NewRecorder()
	container.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"alice"}`, rec.Body.String())
}
