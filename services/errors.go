package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden is reserved for ownership checks; nothing returns it today.
	ErrForbidden = errors.New("forbidden")
	ErrInternal  = errors.New("internal error")
)

// storageError maps repository errors onto the service taxonomy.
func storageError(what string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, ErrConflict)
	default:
		return fmt.Errorf("%s: %w: %w", what, ErrInternal, err)
	}
}
