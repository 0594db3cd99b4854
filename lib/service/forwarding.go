package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/getchainhub/chainhub/chain"
	"github.com/getchainhub/chainhub/common"
	"github.com/getchainhub/chainhub/db/models"
)

// StartForwardingRoutine sweeps invoices as they transition into paid. The
// trigger is edge-based: the reconciliation path publishes each paid invoice
// exactly once. On startup every invoice already sitting in paid is
// re-enqueued, covering transitions that fired before a restart.
func (svc *ChainhubService) StartForwardingRoutine(ctx context.Context) error {
	paidInvoices := make(chan models.Invoice, 64)
	subId := svc.InvoicePubSub.Subscribe(common.InvoiceStatePaid, paidInvoices)
	defer svc.InvoicePubSub.Unsubscribe(subId, common.InvoiceStatePaid)

	stuck, err := svc.Store.ListByState(ctx, common.InvoiceStatePaid)
	if err != nil {
		return err
	}
	if len(stuck) > 0 {
		svc.Logger.Infof("Found %d paid invoices awaiting forwarding", len(stuck))
		go func() {
			for _, invoice := range stuck {
				select {
				case paidInvoices <- invoice:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case invoice := <-paidInvoices:
			svc.forwardWithRetry(ctx, &invoice)
		}
	}
}

// forwardWithRetry sweeps one paid invoice, retrying transient provider
// failures with exponential backoff. Definitive outcomes (nothing to sweep,
// backend refusal, reserve not met) stop the retry loop; the invoice stays
// in paid for a later RequestForward or manual intervention.
func (svc *ChainhubService) forwardWithRetry(ctx context.Context, invoice *models.Invoice) {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.MaxElapsedTime = time.Duration(svc.Config.ForwardMaxElapsed) * time.Second

	err := backoff.Retry(func() error {
		err := svc.SweepInvoice(ctx, invoice)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, chain.ErrNoFunds),
			errors.Is(err, chain.ErrInsufficientReserve),
			errors.Is(err, chain.ErrRejected):
			return backoff.Permanent(err)
		case errors.Is(err, context.Canceled):
			return backoff.Permanent(err)
		default:
			return err
		}
	}, backoff.WithContext(exponentialBackoff, ctx))
	if err != nil {
		svc.Logger.Errorf("Forwarding failed, invoice stays paid: invoice_id:%s error:%v", invoice.ID, err)
	}
}
