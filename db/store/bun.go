package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/getchainhub/chainhub/db/models"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// BunStore persists invoices through a bun DB connection. The compare-and-set
// is a conditional UPDATE: rows-affected tells us whether we won the edge.
type BunStore struct {
	DB *bun.DB
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{DB: db}
}

func (s *BunStore) Insert(ctx context.Context, invoice *models.Invoice) error {
	_, err := s.DB.NewInsert().Model(invoice).Exec(ctx)
	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return ErrDuplicateID
		}
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

func (s *BunStore) Get(ctx context.Context, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.DB.NewSelect().Model(&invoice).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func (s *BunStore) ListByState(ctx context.Context, state string) ([]models.Invoice, error) {
	invoices := []models.Invoice{}
	err := s.DB.NewSelect().Model(&invoices).Where("state = ?", state).Order("created_at ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *BunStore) CompareAndSetState(ctx context.Context, id, expected, next string, mutate func(*models.Invoice)) (bool, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if invoice.State != expected {
		return false, nil
	}
	invoice.State = next
	if mutate != nil {
		mutate(invoice)
	}
	res, err := s.DB.NewUpdate().Model(invoice).
		WherePK().
		Where("state = ?", expected).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *BunStore) UpdateObserved(ctx context.Context, id string, balance decimal.Decimal, checkedAt time.Time) error {
	res, err := s.DB.NewUpdate().Model((*models.Invoice)(nil)).
		Set("observed_balance = ?", balance).
		Set("last_checked_at = ?", checkedAt).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
