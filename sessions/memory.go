package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var _ Store = (*MemoryStore)(nil)

type memoryRecord struct {
	userID    uuid.UUID
	csrf      string
	expiresAt time.Time
}

// MemoryStore holds sessions in RAM. Sessions are lost on restart, which
// is acceptable for a single instance deployment. Expired sessions are
// dropped when looked up and by Sweep.
type MemoryStore struct {
	timeout time.Duration
	clock   clockwork.Clock

	// mu guards records and every field of every record.
	mu      sync.Mutex
	records map[string]*memoryRecord
}

func NewMemoryStore(timeout time.Duration, clock clockwork.Clock) *MemoryStore {
	if timeout <= 0 {
		timeout = time.Hour
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		timeout: timeout,
		clock:   clock,
		records: map[string]*memoryRecord{},
	}
}

func (s *MemoryStore) Create(_ context.Context, userID uuid.UUID) (*Session, error) {
	id, err := randomString()
	if err != nil {
		return nil, err
	}
	expiresAt := s.clock.Now().Add(s.timeout)

	s.mu.Lock()
	s.records[id] = &memoryRecord{userID: userID, expiresAt: expiresAt}
	s.mu.Unlock()

	return &Session{ID: id, UserID: userID, ExpiresAt: expiresAt}, nil
}

// live returns the record for id if it has not expired. Callers hold mu.
func (s *MemoryStore) live(id string) (*memoryRecord, bool) {
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	if s.clock.Now().After(rec.expiresAt) {
		delete(s.records, id)
		return nil, false
	}
	return rec, true
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	rec.expiresAt = s.clock.Now().Add(s.timeout)
	return &Session{ID: id, UserID: rec.userID, ExpiresAt: rec.expiresAt}, nil
}

func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PutCSRF(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(id)
	if !ok {
		return ErrSessionNotFound
	}
	rec.csrf = token
	return nil
}

func (s *MemoryStore) TakeCSRF(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(id)
	if !ok {
		return "", ErrSessionNotFound
	}
	token := rec.csrf
	rec.csrf = ""
	return token, nil
}

// Sweep removes every expired session and reports how many were removed.
func (s *MemoryStore) Sweep(context.Context) (int64, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, rec := range s.records {
		if now.After(rec.expiresAt) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of sessions currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
