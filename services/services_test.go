package services

import (
	"context"
	"testing"

	"acronym-restful/auth"
	"acronym-restful/config"
	"acronym-restful/database"
	"acronym-restful/models"
	"acronym-restful/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type testEnv struct {
	db         *gorm.DB
	repos      *repositories.Repositories
	users      UserService
	acronyms   AcronymService
	categories CategoryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		URL:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, zap.NewNop(), false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	repos := repositories.New(db)
	return &testEnv{
		db:         db,
		repos:      repos,
		users:      NewUserService(repos, auth.NewPasswordVerifier(repos.Users), auth.NewTokenIssuer(repos.Tokens)),
		acronyms:   NewAcronymService(repos, zap.NewNop()),
		categories: NewCategoryService(repos),
	}
}

func (e *testEnv) user(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := e.users.CreateUser(context.Background(), &CreateUserInput{
		Name: username, Username: username, Password: "password",
	})
	require.NoError(t, err)
	return user
}

func categoriesOf(t *testing.T, e *testEnv, id uint) []string {
	t.Helper()
	categories, err := e.acronyms.Categories(context.Background(), id)
	require.NoError(t, err)
	return models.CategoryNames(categories)
}

func names(n ...string) *[]string { return &n }

func TestUserService_CreateAndLogin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")

	_, err := e.users.CreateUser(ctx, &CreateUserInput{Name: "Alice 2", Username: "alice", Password: "x"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = e.users.CreateUser(ctx, &CreateUserInput{Username: "bob"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	token, err := e.users.Login(ctx, "alice", "password")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, token.UserID)

	_, wrong := e.users.Login(ctx, "alice", "nope")
	_, unknown := e.users.Login(ctx, "nobody", "password")
	assert.ErrorIs(t, wrong, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, unknown, auth.ErrInvalidCredentials)
	assert.Equal(t, wrong, unknown)
}

func TestAcronymService_CreateWithCategories(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")

	acronym, err := e.acronyms.Create(ctx, alice.ID, &AcronymInput{
		Short: "OMG", Long: "Oh My God", Categories: names("Funny", "Teenager"),
	})
	require.NoError(t, err)
	assert.NotZero(t, acronym.ID)
	assert.Equal(t, alice.ID, acronym.UserID)
	assert.ElementsMatch(t, []string{"Funny", "Teenager"}, categoriesOf(t, e, acronym.ID))

	plain, err := e.acronyms.Create(ctx, alice.ID, &AcronymInput{Short: "AFK", Long: "Away From Keyboard"})
	require.NoError(t, err)
	assert.Empty(t, categoriesOf(t, e, plain.ID))

	_, err = e.acronyms.Create(ctx, alice.ID, &AcronymInput{Short: "", Long: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAcronymService_ReconcileFailureRetriesThenRollsBack(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.user(t, "alice")

	core, logs := observer.New(zap.WarnLevel)
	acronyms := NewAcronymService(e.repos, zap.New(core))

	// every reconcile attempt now fails at the storage layer
	require.NoError(t, e.db.Migrator().DropTable(&models.AcronymCategory{}))

	_, err := acronyms.Create(ctx, owner.ID, &AcronymInput{Short: "BRB", Long: "Be Right Back", Categories: names("Chat")})
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, reconcileAttempts, logs.FilterMessage("Category reconciliation failed").Len())

	var count int64
	require.NoError(t, e.db.Model(&models.Acronym{}).Count(&count).Error)
	assert.Zero(t, count, "the acronym row is rolled back with the failed reconcile")
}

func TestAcronymService_UpdateAbsentVersusEmptyCategories(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")

	acronym, err := e.acronyms.Create(ctx, alice.ID, &AcronymInput{
		Short: "OMG", Long: "Oh My God", Categories: names("a", "b"),
	})
	require.NoError(t, err)

	// absent: tags unchanged, owner becomes the editor
	updated, err := e.acronyms.Update(ctx, acronym.ID, bob.ID, &AcronymInput{Short: "OMG", Long: "Oh My Gosh"})
	require.NoError(t, err)
	assert.Equal(t, "Oh My Gosh", updated.Long)
	assert.Equal(t, bob.ID, updated.UserID)
	assert.ElementsMatch(t, []string{"a", "b"}, categoriesOf(t, e, acronym.ID))

	owner, err := e.acronyms.Owner(ctx, acronym.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", owner.Username)

	// present: reconciled
	_, err = e.acronyms.Update(ctx, acronym.ID, bob.ID, &AcronymInput{Short: "OMG", Long: "Oh My Gosh", Categories: names("b", "c")})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, categoriesOf(t, e, acronym.ID))

	// present and empty: cleared
	_, err = e.acronyms.Update(ctx, acronym.ID, bob.ID, &AcronymInput{Short: "OMG", Long: "Oh My Gosh", Categories: names()})
	require.NoError(t, err)
	assert.Empty(t, categoriesOf(t, e, acronym.ID))

	all, err := e.categories.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, models.CategoryNames(all), "categories are never deleted")

	_, err = e.acronyms.Update(ctx, 9999, bob.ID, &AcronymInput{Short: "X", Long: "Y"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAcronymService_DeleteKeepsCategories(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")

	acronym, err := e.acronyms.Create(ctx, alice.ID, &AcronymInput{Short: "OMG", Long: "Oh My God", Categories: names("lonely")})
	require.NoError(t, err)

	require.NoError(t, e.acronyms.Delete(ctx, acronym.ID))
	assert.ErrorIs(t, e.acronyms.Delete(ctx, acronym.ID), ErrNotFound)

	var pivots int64
	require.NoError(t, e.db.Model(&models.AcronymCategory{}).Count(&pivots).Error)
	assert.Zero(t, pivots)

	all, err := e.categories.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lonely"}, models.CategoryNames(all))
}

func TestAcronymService_AddRemoveCategory(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")

	acronym, err := e.acronyms.Create(ctx, alice.ID, &AcronymInput{Short: "OMG", Long: "Oh My God"})
	require.NoError(t, err)
	category, err := e.categories.Create(ctx, &CreateCategoryInput{Name: "Funny"})
	require.NoError(t, err)

	require.NoError(t, e.acronyms.AddCategory(ctx, acronym.ID, category.ID))
	require.NoError(t, e.acronyms.AddCategory(ctx, acronym.ID, category.ID))
	assert.Equal(t, []string{"Funny"}, categoriesOf(t, e, acronym.ID))

	tagged, err := e.categories.Acronyms(ctx, category.ID)
	require.NoError(t, err)
	require.Len(t, tagged, 1)

	require.NoError(t, e.acronyms.RemoveCategory(ctx, acronym.ID, category.ID))
	assert.Empty(t, categoriesOf(t, e, acronym.ID))

	assert.ErrorIs(t, e.acronyms.AddCategory(ctx, acronym.ID, 9999), ErrNotFound)
	assert.ErrorIs(t, e.acronyms.AddCategory(ctx, 9999, category.ID), ErrNotFound)
}

func TestAcronymService_Queries(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")

	_, err := e.acronyms.First(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	for _, in := range []AcronymInput{
		{Short: "OMG", Long: "Oh My God"},
		{Short: "BRB", Long: "Be Right Back"},
	} {
		_, err := e.acronyms.Create(ctx, alice.ID, &in)
		require.NoError(t, err)
	}

	found, err := e.acronyms.Search(ctx, "Be Right Back")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "BRB", found[0].Short)

	_, err = e.acronyms.Search(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	sorted, err := e.acronyms.Sorted(ctx)
	require.NoError(t, err)
	assert.Equal(t, "BRB", sorted[0].Short)

	first, err := e.acronyms.First(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OMG", first.Short)

	owned, err := e.users.UserAcronyms(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	_, err = e.users.UserAcronyms(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCategoryService_DuplicateNameConflicts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.categories.Create(ctx, &CreateCategoryInput{Name: "Funny"})
	require.NoError(t, err)
	_, err = e.categories.Create(ctx, &CreateCategoryInput{Name: "Funny"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = e.categories.Create(ctx, &CreateCategoryInput{Name: "funny"})
	assert.NoError(t, err, "names are case sensitive")
}
