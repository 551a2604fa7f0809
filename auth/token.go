package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"acronym-restful/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	tokenBytes       = 32
	maxIssueAttempts = 3
)

// TokenStore persists bearer tokens.
type TokenStore interface {
	Create(ctx context.Context, token *models.Token) error
	FindByValue(ctx context.Context, value string) (*models.Token, error)
}

// TokenIssuer mints opaque bearer tokens. A token carries no user data;
// it is only meaningful as a key into the token store.
type TokenIssuer struct {
	tokens TokenStore
	random io.Reader
}

func NewTokenIssuer(tokens TokenStore) *TokenIssuer {
	return &TokenIssuer{tokens: tokens, random: rand.Reader}
}

// Issue generates and stores a new token for userID. A value collision
// is retried with fresh randomness.
func (i *TokenIssuer) Issue(ctx context.Context, userID uuid.UUID) (*models.Token, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		value, err := i.generate()
		if err != nil {
			return nil, err
		}
		token := &models.Token{Value: value, UserID: userID}
		err = i.tokens.Create(ctx, token)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("failed to store token: %w", err)
		}
	}
	return nil, errors.New("could not generate a unique token")
}

func (i *TokenIssuer) generate() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(i.random, b); err != nil {
		return "", fmt.Errorf("can't get random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
