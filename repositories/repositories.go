package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Repositories bundles every repository over a single *gorm.DB so that a
// service can run several of them inside one transaction.
type Repositories struct {
	db         *gorm.DB
	Users      UserRepository
	Acronyms   AcronymRepository
	Categories CategoryRepository
	Tokens     TokenRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:         db,
		Users:      NewUserRepository(db),
		Acronyms:   NewAcronymRepository(db),
		Categories: NewCategoryRepository(db),
		Tokens:     NewTokenRepository(db),
	}
}

// Transaction runs fn with repositories bound to a transaction. It commits
// when fn returns nil and rolls back otherwise. Calling Transaction on the
// repositories handed to fn opens a savepoint.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}
