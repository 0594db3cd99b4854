package store

import (
	"context"
	"sync"
	"time"

	"github.com/getchainhub/chainhub/db/models"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// MemoryStore is a mutex-guarded in-memory Store. It is the default when no
// DATABASE_URI is configured and the store used by the test suites.
type MemoryStore struct {
	mu       sync.RWMutex
	invoices map[string]*models.Invoice
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{invoices: make(map[string]*models.Invoice)}
}

func (s *MemoryStore) Insert(ctx context.Context, invoice *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[invoice.ID]; ok {
		return ErrDuplicateID
	}
	clone := *invoice
	s.invoices[invoice.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invoice, ok := s.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *invoice
	return &clone, nil
}

func (s *MemoryStore) ListByState(ctx context.Context, state string) ([]models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []models.Invoice{}
	for _, invoice := range s.invoices {
		if invoice.State == state {
			result = append(result, *invoice)
		}
	}
	return result, nil
}

func (s *MemoryStore) CompareAndSetState(ctx context.Context, id, expected, next string, mutate func(*models.Invoice)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	invoice, ok := s.invoices[id]
	if !ok {
		return false, ErrNotFound
	}
	if invoice.State != expected {
		return false, nil
	}
	invoice.State = next
	if mutate != nil {
		mutate(invoice)
	}
	invoice.UpdatedAt = bun.NullTime{Time: time.Now()}
	return true, nil
}

func (s *MemoryStore) UpdateObserved(ctx context.Context, id string, balance decimal.Decimal, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	invoice, ok := s.invoices[id]
	if !ok {
		return ErrNotFound
	}
	invoice.ObservedBalance = balance
	invoice.LastCheckedAt = bun.NullTime{Time: checkedAt}
	return nil
}
