package chain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable is a transient transport/RPC failure, including
	// timeouts. Callers retry; it never mutates invoice state.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrRejected means the backend explicitly refused the operation.
	ErrRejected = errors.New("provider rejected request")
	// ErrNoFunds means there is nothing spendable left at the address.
	ErrNoFunds = errors.New("no funds to sweep")
	// ErrInsufficientReserve means the balance does not cover the asset's
	// reserve (gas, rent exemption, ledger reserve) plus fees.
	ErrInsufficientReserve = errors.New("balance below sweepable reserve")
)

// CustodyExternal marks addresses whose keys are held by an external
// node or processor rather than stored on the invoice.
const CustodyExternal = "external"

// Address is a freshly derived receiving address together with the material
// needed to later move funds away from it.
type Address struct {
	Address    string
	CustodyKey string
}

// Provider is the capability set every chain backend exposes.
//
// ReceivedBalance returns the amount in the asset's native unit at full
// precision and must distinguish "confirmed zero" from "could not query"
// (the latter is ErrUnavailable). Sweep consolidates everything spendable at
// the address into one transaction to destination, subtracting network fees
// and reserves from the swept amount, and is idempotent: sweeping an empty
// address returns ErrNoFunds.
type Provider interface {
	NewAddress(ctx context.Context, label string) (*Address, error)
	ReceivedBalance(ctx context.Context, address string) (decimal.Decimal, error)
	Sweep(ctx context.Context, address, custodyKey, destination string) (txRef string, err error)
}
