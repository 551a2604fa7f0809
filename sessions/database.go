package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"acronym-restful/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

var _ Store = (*DatabaseStore)(nil)

// DatabaseStore keeps sessions in the sessions table so that they survive
// restarts and are shared between instances.
type DatabaseStore struct {
	db      *gorm.DB
	timeout time.Duration
	clock   clockwork.Clock
}

func NewDatabaseStore(db *gorm.DB, timeout time.Duration, clock clockwork.Clock) *DatabaseStore {
	if timeout <= 0 {
		timeout = time.Hour
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DatabaseStore{db: db, timeout: timeout, clock: clock}
}

// now is UTC so that stored timestamps compare consistently in SQL.
func (s *DatabaseStore) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *DatabaseStore) Create(ctx context.Context, userID uuid.UUID) (*Session, error) {
	id, err := randomString()
	if err != nil {
		return nil, err
	}
	row := models.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: s.now().Add(s.timeout),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &Session{ID: row.ID, UserID: row.UserID, ExpiresAt: row.ExpiresAt}, nil
}

func (s *DatabaseStore) Get(ctx context.Context, id string) (*Session, error) {
	now := s.now()
	var row models.Session
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if now.After(row.ExpiresAt) {
		if err := s.Destroy(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}

	row.ExpiresAt = now.Add(s.timeout)
	err = s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", id).
		Update("expires_at", row.ExpiresAt).Error
	if err != nil {
		return nil, fmt.Errorf("failed to extend session: %w", err)
	}
	return &Session{ID: row.ID, UserID: row.UserID, ExpiresAt: row.ExpiresAt}, nil
}

func (s *DatabaseStore) Destroy(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Session{}).Error; err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

func (s *DatabaseStore) PutCSRF(ctx context.Context, id, token string) error {
	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND expires_at > ?", id, s.now()).
		Update("csrf_token", token)
	if result.Error != nil {
		return fmt.Errorf("failed to store csrf token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// TakeCSRF reads the pending value and clears it with a compare-and-swap
// update, so of two concurrent takes at most one observes the value.
func (s *DatabaseStore) TakeCSRF(ctx context.Context, id string) (string, error) {
	var row models.Session
	err := s.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, s.now()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	if row.CSRFToken == "" {
		return "", nil
	}

	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND csrf_token = ?", id, row.CSRFToken).
		Update("csrf_token", "")
	if result.Error != nil {
		return "", fmt.Errorf("failed to clear csrf token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// consumed concurrently
		return "", nil
	}
	return row.CSRFToken, nil
}

// Sweep deletes expired rows.
func (s *DatabaseStore) Sweep(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
