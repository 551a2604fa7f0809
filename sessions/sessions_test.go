package sessions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"acronym-restful/config"
	"acronym-restful/database"
	"acronym-restful/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type storeFactory func(t *testing.T, clock clockwork.Clock) (Store, uuid.UUID)

func memoryFactory(t *testing.T, clock clockwork.Clock) (Store, uuid.UUID) {
	return NewMemoryStore(time.Hour, clock), uuid.New()
}

func databaseFactory(t *testing.T, clock clockwork.Clock) (Store, uuid.UUID) {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		URL:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, zap.NewNop(), false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	user := models.User{Name: "Alice", Username: "alice", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	return NewDatabaseStore(db, time.Hour, clock), user.ID
}

var factories = map[string]storeFactory{
	"memory":   memoryFactory,
	"database": databaseFactory,
}

func TestStore_Lifecycle(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, userID := factory(t, clockwork.NewFakeClock())

			session, err := store.Create(ctx, userID)
			require.NoError(t, err)
			assert.NotEmpty(t, session.ID)

			got, err := store.Get(ctx, session.ID)
			require.NoError(t, err)
			assert.Equal(t, userID, got.UserID)

			require.NoError(t, store.Destroy(ctx, session.ID))
			_, err = store.Get(ctx, session.ID)
			assert.ErrorIs(t, err, ErrSessionNotFound)

			_, err = store.Get(ctx, "never-issued")
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestStore_Expiry(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := clockwork.NewFakeClock()
			store, userID := factory(t, clock)

			session, err := store.Create(ctx, userID)
			require.NoError(t, err)

			// Each lookup extends the lifetime.
			clock.Advance(45 * time.Minute)
			_, err = store.Get(ctx, session.ID)
			require.NoError(t, err)
			clock.Advance(45 * time.Minute)
			_, err = store.Get(ctx, session.ID)
			require.NoError(t, err)

			clock.Advance(2 * time.Hour)
			_, err = store.Get(ctx, session.ID)
			assert.ErrorIs(t, err, ErrSessionNotFound)

			err = store.PutCSRF(ctx, session.ID, "token")
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestStore_TakeCSRFClears(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, userID := factory(t, clockwork.NewFakeClock())
			session, err := store.Create(ctx, userID)
			require.NoError(t, err)

			pending, err := store.TakeCSRF(ctx, session.ID)
			require.NoError(t, err)
			assert.Empty(t, pending)

			require.NoError(t, store.PutCSRF(ctx, session.ID, "first"))
			require.NoError(t, store.PutCSRF(ctx, session.ID, "second"))

			pending, err = store.TakeCSRF(ctx, session.ID)
			require.NoError(t, err)
			assert.Equal(t, "second", pending)

			pending, err = store.TakeCSRF(ctx, session.ID)
			require.NoError(t, err)
			assert.Empty(t, pending)
		})
	}
}

func TestCSRFGuard_ConsumeExactlyOnce(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, userID := factory(t, clockwork.NewFakeClock())
			guard := NewCSRFGuard(store)
			session, err := store.Create(ctx, userID)
			require.NoError(t, err)

			token, err := guard.Issue(ctx, session.ID)
			require.NoError(t, err)

			ok, err := guard.Consume(ctx, session.ID, token)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = guard.Consume(ctx, session.ID, token)
			require.NoError(t, err)
			assert.False(t, ok, "a consumed token is never accepted again")
		})
	}
}

func TestCSRFGuard_MismatchStillClears(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, clockwork.NewFakeClock())
	guard := NewCSRFGuard(store)
	session, err := store.Create(ctx, uuid.New())
	require.NoError(t, err)

	token, err := guard.Issue(ctx, session.ID)
	require.NoError(t, err)

	ok, err := guard.Consume(ctx, session.ID, "forged")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = guard.Consume(ctx, session.ID, token)
	require.NoError(t, err)
	assert.False(t, ok, "the real token died with the failed attempt")
}

func TestCSRFGuard_OnlyLatestIssueIsValid(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, clockwork.NewFakeClock())
	guard := NewCSRFGuard(store)
	session, err := store.Create(ctx, uuid.New())
	require.NoError(t, err)

	older, err := guard.Issue(ctx, session.ID)
	require.NoError(t, err)
	newer, err := guard.Issue(ctx, session.ID)
	require.NoError(t, err)

	ok, err := guard.Consume(ctx, session.ID, older)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = guard.Issue(ctx, session.ID)
	require.NoError(t, err)
	ok, err = guard.Consume(ctx, session.ID, newer)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCSRFGuard_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, clockwork.NewFakeClock())
	guard := NewCSRFGuard(store)
	session, err := store.Create(ctx, uuid.New())
	require.NoError(t, err)
	token, err := guard.Issue(ctx, session.ID)
	require.NoError(t, err)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := guard.Consume(ctx, session.ID, token); ok {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), accepted.Load())
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(time.Minute, clock)

	_, err := store.Create(ctx, uuid.New())
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)
	_, err = store.Create(ctx, uuid.New())
	require.NoError(t, err)

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestCookieCodec_RoundTripAndTamper(t *testing.T) {
	codec := NewCookieCodec("acronyms_session", []byte("secret"), false, time.Hour)

	rec := httptest.NewRecorder()
	require.NoError(t, codec.Write(rec, "session-id"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	raw, ok := codec.Read(req)
	require.True(t, ok)

	id, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "session-id", id)

	_, err = codec.Decode(raw + "x")
	assert.ErrorIs(t, err, ErrInvalidCookie)

	other := NewCookieCodec("acronyms_session", []byte("other-secret"), false, time.Hour)
	_, err = other.Decode(raw)
	assert.ErrorIs(t, err, ErrInvalidCookie)

	_, err = codec.Decode("session-id")
	assert.ErrorIs(t, err, ErrInvalidCookie)
}

func TestCookieCodec_Clear(t *testing.T) {
	codec := NewCookieCodec("acronyms_session", []byte("secret"), true, time.Hour)
	rec := httptest.NewRecorder()
	codec.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.True(t, cookies[0].Secure)
	assert.Empty(t, cookies[0].Value)
}
