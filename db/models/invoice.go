package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Invoice : Invoice Model
//
// The custody key is the only sensitive field. It is excluded from JSON and
// must never be logged or returned through the HTTP layer; only the sweep
// path reads it.
type Invoice struct {
	ID              string          `json:"invoice_id" bun:",pk"`
	Currency        string          `json:"currency" validate:"required"`
	TargetAmount    decimal.Decimal `json:"target_amount" bun:"type:numeric"`
	Address         string          `json:"address"`
	CustodyKey      string          `json:"-" bun:",nullzero"`
	State           string          `json:"state" bun:",default:'pending'"`
	ObservedBalance decimal.Decimal `json:"observed_balance" bun:"type:numeric"`
	SweepTxRef      string          `json:"sweep_tx_ref,omitempty" bun:",nullzero"`
	CreatedAt       time.Time       `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	LastCheckedAt   bun.NullTime    `json:"last_checked_at"`
	PaidAt          bun.NullTime    `json:"paid_at"`
	ForwardedAt     bun.NullTime    `json:"forwarded_at"`
	UpdatedAt       bun.NullTime    `json:"updated_at"`
}

func (i *Invoice) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		i.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Invoice)(nil)
