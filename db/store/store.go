package store

import (
	"context"
	"errors"
	"time"

	"github.com/getchainhub/chainhub/db/models"
	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateID = errors.New("invoice id already exists")
	ErrNotFound    = errors.New("invoice not found")
)

// Store is the single source of truth for invoice lifecycle state.
//
// Every state transition goes through CompareAndSetState so that concurrent
// pollers and forwarders perform at most one transition per state edge.
// Invoices are never deleted; they are retained for audit.
type Store interface {
	Insert(ctx context.Context, invoice *models.Invoice) error
	Get(ctx context.Context, id string) (*models.Invoice, error)
	ListByState(ctx context.Context, state string) ([]models.Invoice, error)
	// CompareAndSetState atomically moves the invoice from expected to next
	// and applies mutate (if non-nil) to the record in the same step. It
	// returns false without error when the invoice is no longer in the
	// expected state.
	CompareAndSetState(ctx context.Context, id, expected, next string, mutate func(*models.Invoice)) (bool, error)
	// UpdateObserved records the result of a successful balance poll. It
	// never touches the lifecycle state.
	UpdateObserved(ctx context.Context, id string, balance decimal.Decimal, checkedAt time.Time) error
}
