package repositories

import (
	"context"

	"acronym-restful/models"

	"gorm.io/gorm"
)

// TokenRepository persists bearer tokens.
type TokenRepository interface {
	Create(ctx context.Context, token *models.Token) error
	FindByValue(ctx context.Context, value string) (*models.Token, error)
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

// Create stores the token. A value collision yields gorm.ErrDuplicatedKey.
func (r *tokenRepository) Create(ctx context.Context, token *models.Token) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *tokenRepository) FindByValue(ctx context.Context, value string) (*models.Token, error) {
	var token models.Token
	if err := r.db.WithContext(ctx).Where("value = ?", value).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}
