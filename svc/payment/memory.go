package payment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore is an in-memory Store used in tests and local development.
type memoryStore struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*Payment
	byTx map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory payment store.
func NewMemoryStore() Store {
	return &memoryStore{
		byID: make(map[uuid.UUID]*Payment),
		byTx: make(map[string]uuid.UUID),
	}
}

func (s *memoryStore) CreatePayment(_ context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byTx[p.TransactionID]; ok {
		return ErrDuplicateTransaction
	}
	s.byID[p.ID] = clonePayment(p)
	s.byTx[p.TransactionID] = p.ID
	return nil
}

func (s *memoryStore) GetPayment(_ context.Context, id uuid.UUID) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return clonePayment(p), nil
}

func (s *memoryStore) GetByTransactionID(_ context.Context, transactionID string) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byTx[transactionID]
	if !ok {
		return nil, ErrUnknownTransaction
	}
	return clonePayment(s.byID[id]), nil
}

func (s *memoryStore) ListForUser(_ context.Context, userID uuid.UUID) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Payment
	for _, p := range s.byID {
		if p.UserID == userID {
			out = append(out, *clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TransactionID > out[j].TransactionID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memoryStore) FinalizePayment(_ context.Context, id uuid.UUID, status Status, gatewayTransactionID *string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return ErrPaymentNotFound
	}
	if p.Status != StatusPending {
		return ErrAlreadyFinalized
	}

	p.Status = status
	if gatewayTransactionID != nil {
		gtx := *gatewayTransactionID
		p.GatewayTransactionID = &gtx
	}
	finalized := at
	p.FinalizedAt = &finalized
	return nil
}

func clonePayment(p *Payment) *Payment {
	c := *p
	if p.GatewayTransactionID != nil {
		gtx := *p.GatewayTransactionID
		c.GatewayTransactionID = &gtx
	}
	if p.TempPassword != nil {
		pw := *p.TempPassword
		c.TempPassword = &pw
	}
	if p.FinalizedAt != nil {
		t := *p.FinalizedAt
		c.FinalizedAt = &t
	}
	return &c
}
