package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*TokenRecord
}

// NewMemoryStore returns an in-memory Store for tests and single-binary
// deployments.
func NewMemoryStore() Store {
	return &memoryStore{records: make(map[uuid.UUID]*TokenRecord)}
}

func (s *memoryStore) CreateToken(_ context.Context, record *TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.ID] = cloneRecord(record)
	return nil
}

func (s *memoryStore) GetToken(_ context.Context, id uuid.UUID) (*TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, ErrUnknownToken
	}
	return cloneRecord(record), nil
}

func (s *memoryStore) RevokeToken(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return ErrUnknownToken
	}
	if record.RevokedAt == nil {
		revokedAt := at
		record.RevokedAt = &revokedAt
	}
	return nil
}

func (s *memoryStore) RotateToken(_ context.Context, oldID uuid.UUID, replacement *TokenRecord, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[oldID]
	if !ok {
		return ErrUnknownToken
	}
	if old.RevokedAt != nil {
		return ErrRevokedToken
	}

	s.records[replacement.ID] = cloneRecord(replacement)
	revokedAt := at
	old.RevokedAt = &revokedAt
	replacedBy := replacement.ID
	old.ReplacedBy = &replacedBy
	return nil
}

func cloneRecord(r *TokenRecord) *TokenRecord {
	clone := *r
	if r.RevokedAt != nil {
		at := *r.RevokedAt
		clone.RevokedAt = &at
	}
	if r.ReplacedBy != nil {
		id := *r.ReplacedBy
		clone.ReplacedBy = &id
	}
	return &clone
}
