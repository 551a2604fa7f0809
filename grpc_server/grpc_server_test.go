package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"acronym-restful/auth"
	"acronym-restful/config"
	"acronym-restful/database"
	"acronym-restful/registry"
	"acronym-restful/repositories"
	"acronym-restful/services"
	"acronym-restful/sessions"

	"github.com/google/uuid"
	consulapi "github.com/hashicorp/consul/api"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeRegistry struct {
	addrs map[string][]string
}

func (f *fakeRegistry) Register(context.Context, registry.Instance, *consulapi.AgentServiceCheck) error {
	return nil
}

func (f *fakeRegistry) Deregister(context.Context, string) error { return nil }

func (f *fakeRegistry) Discover(_ context.Context, name, _ string) ([]string, error) {
	addrs, ok := f.addrs[name]
	if !ok {
		return nil, registry.ErrNoInstances
	}
	return addrs, nil
}

func (f *fakeRegistry) List(context.Context) (map[string][]string, error) {
	out := map[string][]string{}
	for name := range f.addrs {
		out[name] = nil
	}
	return out, nil
}

type testEnv struct {
	conn     *grpc.ClientConn
	client   *Client
	acronyms services.AcronymService
	ownerID  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		URL:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, logger, false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	repos := repositories.New(db)
	users := services.NewUserService(repos, auth.NewPasswordVerifier(repos.Users), auth.NewTokenIssuer(repos.Tokens))
	acronyms := services.NewAcronymService(repos, logger)
	store := sessions.NewMemoryStore(time.Hour, clockwork.NewFakeClock())
	codec := sessions.NewCookieCodec("acronyms_session", []byte("test-secret"), false, time.Hour)
	authenticator := auth.NewAuthenticator("acronyms_session",
		auth.NewBearerSource(repos.Tokens, repos.Users),
		auth.NewSessionSource(store, codec, repos.Users),
	)

	owner, err := users.CreateUser(context.Background(), &services.CreateUserInput{Name: "Admin", Username: "admin", Password: "password"})
	require.NoError(t, err)

	srv, _ := NewServer(Deps{
		Users:         users,
		Acronyms:      acronyms,
		Authenticator: authenticator,
		Registry:      &fakeRegistry{addrs: map[string][]string{"acronym-center": {"10.0.0.1:8080"}}},
	}, logger)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{conn: conn, client: NewClient(conn), acronyms: acronyms, ownerID: owner.ID}
}

func TestAuthService_LoginAndWhoAmI(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.WhoAmI(ctx)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, _, err = env.client.Login(ctx, "admin", "wrong")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, _, err = env.client.Login(ctx, "", "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	token, userID, err := env.client.Login(ctx, "admin", "password")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, env.ownerID.String(), userID)

	me, err := env.client.WhoAmI(WithBearer(ctx, token))
	require.NoError(t, err)
	assert.Equal(t, "admin", me.GetFields()["username"].GetStringValue())
	assert.NotContains(t, me.GetFields(), "passwordHash")

	_, err = env.client.WhoAmI(WithBearer(ctx, "bogus"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestAcronymService_SearchAndCategories(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	categories := []string{"Chat", "Funny"}
	acronym, err := env.acronyms.Create(ctx, env.ownerID, &services.AcronymInput{Short: "LOL", Long: "Laugh Out Loud", Categories: &categories})
	require.NoError(t, err)

	found, err := env.client.Search(ctx, "LOL")
	require.NoError(t, err)
	require.Len(t, found.GetValues(), 1)
	assert.Equal(t, "Laugh Out Loud", found.GetValues()[0].GetStructValue().GetFields()["long"].GetStringValue())

	_, err = env.client.Search(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	names, err := env.client.Categories(ctx, acronym.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"Chat", "Funny"}, names.AsSlice())

	_, err = env.client.Categories(ctx, 9999)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestUserService_Directory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.client.GetUser(ctx, env.ownerID.String())
	require.NoError(t, err)
	assert.Equal(t, "Admin", user.GetFields()["name"].GetStringValue())

	_, err = env.client.GetUser(ctx, "not-a-uuid")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = env.client.GetUser(ctx, uuid.NewString())
	assert.Equal(t, codes.NotFound, status.Code(err))

	list, err := env.client.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, list.GetValues(), 1)

	owned, err := env.client.UserAcronyms(ctx, env.ownerID.String())
	require.NoError(t, err)
	assert.Empty(t, owned.GetValues())
}

func TestRegistryService_Discover(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	addrs, err := env.client.Discover(ctx, "acronym-center")
	require.NoError(t, err)
	assert.Equal(t, []any{"10.0.0.1:8080"}, addrs.AsSlice())

	_, err = env.client.Discover(ctx, "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = env.client.Discover(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealthService(t *testing.T) {
	env := newTestEnv(t)

	resp, err := healthpb.NewHealthClient(env.conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
