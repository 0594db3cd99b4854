package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/getchainhub/chainhub/chain"
	"github.com/getchainhub/chainhub/common"
	"github.com/getchainhub/chainhub/db/models"
)

// CreateInvoice provisions a fresh receiving address for the requested amount
// and persists the invoice in pending. The returned invoice never carries the
// custody key; the model strips it from JSON and callers must not read it.
func (svc *ChainhubService) CreateInvoice(ctx context.Context, amount decimal.Decimal, currency string) (*models.Invoice, error) {
	currency = strings.ToUpper(currency)
	if !common.IsSupportedCurrency(currency) {
		return nil, ErrUnsupportedCurrency
	}
	provider, ok := svc.ProviderFor(currency)
	if !ok {
		return nil, ErrUnsupportedCurrency
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	id := svc.GenerateInvoiceID(currency)
	addr, err := provider.NewAddress(ctx, id)
	if err != nil {
		svc.Logger.Errorf("Could not issue address currency:%s invoice_id:%s error:%v", currency, id, err)
		return nil, err
	}

	invoice := &models.Invoice{
		ID:              id,
		Currency:        currency,
		TargetAmount:    amount,
		Address:         addr.Address,
		CustodyKey:      addr.CustodyKey,
		State:           common.InvoiceStatePending,
		ObservedBalance: decimal.Zero,
		CreatedAt:       time.Now(),
	}
	if err := svc.Store.Insert(ctx, invoice); err != nil {
		return nil, err
	}
	svc.Logger.Infof("Created invoice: invoice_id:%s currency:%s amount:%s address:%s", id, currency, amount, addr.Address)
	return invoice, nil
}

// GetInvoice reads the current invoice record. Status freshness is bounded by
// the reconciliation poll interval: reads never trigger a provider call, the
// scheduler is the only component polling balances.
func (svc *ChainhubService) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	return svc.Store.Get(ctx, id)
}

// RequestForward sweeps a paid invoice to the collection wallet on demand.
// The paid->forwarded edge goes through the store's compare-and-set, so a
// concurrent worker and caller perform at most one transition; the loser
// simply sees the already-forwarded record.
func (svc *ChainhubService) RequestForward(ctx context.Context, id string) (*models.Invoice, error) {
	invoice, err := svc.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.State != common.InvoiceStatePaid {
		return invoice, ErrNotReady
	}
	if err := svc.SweepInvoice(ctx, invoice); err != nil {
		return invoice, err
	}
	return svc.Store.Get(ctx, id)
}

// SweepInvoice performs one sweep attempt and, on success, moves the invoice
// paid->forwarded. ErrNoFunds leaves the invoice in paid for manual review.
func (svc *ChainhubService) SweepInvoice(ctx context.Context, invoice *models.Invoice) error {
	provider, ok := svc.ProviderFor(invoice.Currency)
	if !ok {
		return ErrUnsupportedCurrency
	}
	destination := svc.CollectionWallets[invoice.Currency]

	timeoutCtx, cancel := context.WithTimeout(ctx, svc.providerTimeout())
	defer cancel()
	txRef, err := provider.Sweep(timeoutCtx, invoice.Address, invoice.CustodyKey, destination)
	if err != nil {
		if errors.Is(err, chain.ErrNoFunds) {
			svc.Logger.Warnf("Nothing to sweep, leaving invoice for manual review: invoice_id:%s address:%s", invoice.ID, invoice.Address)
		}
		return err
	}

	transitioned, err := svc.Store.CompareAndSetState(ctx, invoice.ID, common.InvoiceStatePaid, common.InvoiceStateForwarded, func(inv *models.Invoice) {
		inv.SweepTxRef = txRef
		inv.ForwardedAt = bun.NullTime{Time: time.Now()}
	})
	if err != nil {
		return err
	}
	if !transitioned {
		// another sweeper won the edge; the provider already treats a
		// second sweep of an empty address as ErrNoFunds
		svc.Logger.Infof("Invoice already forwarded: invoice_id:%s", invoice.ID)
		return nil
	}
	svc.Logger.Infof("Forwarded invoice: invoice_id:%s tx:%s", invoice.ID, txRef)

	if forwarded, err := svc.Store.Get(ctx, invoice.ID); err == nil {
		svc.InvoicePubSub.Publish(common.InvoiceStateForwarded, *forwarded)
		svc.InvoicePubSub.Publish(invoiceEventsTopic, *forwarded)
	}
	return nil
}

// SubscribeInvoiceEvents delivers every paid and forwarded transition on one
// channel, for export by the rabbitmq publisher. A single topic keeps the
// transitions in commit order: an invoice's paid event is always delivered
// before its forwarded event.
func (svc *ChainhubService) SubscribeInvoiceEvents(ctx context.Context) (chan models.Invoice, func()) {
	events := make(chan models.Invoice, 64)
	subId := svc.InvoicePubSub.Subscribe(invoiceEventsTopic, events)
	return events, func() {
		svc.InvoicePubSub.Unsubscribe(subId, invoiceEventsTopic)
	}
}

func (svc *ChainhubService) providerTimeout() time.Duration {
	return svc.ProviderCallTimeout
}
