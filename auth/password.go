package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"acronym-restful/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserFinder is the slice of the user repository the auth package needs.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// dummyHash is compared against when the username is unknown, so that both
// failure paths pay for one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("cannot create dummy bcrypt hash: %v", err))
	}
	return hash
})

// HashPassword returns the bcrypt hash stored for a new user.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hash), nil
}

// PasswordVerifier checks username/password pairs against the credential store.
type PasswordVerifier struct {
	users UserFinder
}

func NewPasswordVerifier(users UserFinder) *PasswordVerifier {
	return &PasswordVerifier{users: users}
}

// Authenticate returns the user owning username when password matches.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
func (v *PasswordVerifier) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := v.users.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
