package user

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*User
	byEmail map[string]uuid.UUID
}

// NewMemoryStore returns an in-memory Store for tests and single-binary
// deployments.
func NewMemoryStore() Store {
	return &memoryStore{
		byID:    make(map[uuid.UUID]*User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *memoryStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[u.Email]; exists {
		return ErrEmailTaken
	}
	stored := cloneUser(u)
	s.byID[stored.ID] = stored
	s.byEmail[stored.Email] = stored.ID
	return nil
}

func (s *memoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *memoryStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *memoryStore) ActivateUser(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Active = true
	return nil
}

func (s *memoryStore) SetNotificationChannel(_ context.Context, id uuid.UUID, channel *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	if channel == nil {
		u.NotificationChannel = nil
		return nil
	}
	value := *channel
	u.NotificationChannel = &value
	return nil
}

func cloneUser(u *User) *User {
	clone := *u
	clone.PasswordHash = append([]byte(nil), u.PasswordHash...)
	if u.NotificationChannel != nil {
		channel := *u.NotificationChannel
		clone.NotificationChannel = &channel
	}
	return &clone
}
