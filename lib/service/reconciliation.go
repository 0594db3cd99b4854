package service

import (
	"context"
	"sync"
	"time"

	"github.com/uptrace/bun"

	"github.com/getchainhub/chainhub/common"
	"github.com/getchainhub/chainhub/db/models"
)

// reconciliationState tracks per-invoice polling bookkeeping that does not
// belong in the invoice record: consecutive provider failures and the cycle
// countdown implementing the error backoff.
type reconciliationState struct {
	consecutiveFailures int
	skipCycles          int
}

// StartReconciliationRoutine drives balance checks for every pending invoice
// until the context is cancelled. One cycle runs every POLL_INTERVAL seconds;
// checks within a cycle run concurrently, bounded by RECONCILE_WORKERS.
func (svc *ChainhubService) StartReconciliationRoutine(ctx context.Context) error {
	interval := time.Duration(svc.Config.PollInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tracker := map[string]*reconciliationState{}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			svc.reconcileCycle(ctx, tracker)
		}
	}
}

func (svc *ChainhubService) reconcileCycle(ctx context.Context, tracker map[string]*reconciliationState) {
	pending, err := svc.Store.ListByState(ctx, common.InvoiceStatePending)
	if err != nil {
		svc.Logger.Errorf("Could not list pending invoices: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	svc.Logger.Infof("Reconciling %d pending invoices", len(pending))

	// drop bookkeeping for invoices that left pending
	alive := map[string]bool{}
	for _, invoice := range pending {
		alive[invoice.ID] = true
	}
	for id := range tracker {
		if !alive[id] {
			delete(tracker, id)
		}
	}

	sem := make(chan struct{}, svc.Config.ReconcileWorkers)
	var wg sync.WaitGroup
	for _, invoice := range pending {
		state := tracker[invoice.ID]
		if state == nil {
			state = &reconciliationState{}
			tracker[invoice.ID] = state
		}
		if state.skipCycles > 0 {
			state.skipCycles--
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(invoice models.Invoice, state *reconciliationState) {
			defer wg.Done()
			defer func() { <-sem }()
			err := svc.CheckPendingInvoice(ctx, &invoice)
			if err != nil {
				state.consecutiveFailures++
				// back off this invoice: skip cycles proportional to the
				// failure streak, capped so it keeps being retried
				skip := state.consecutiveFailures * (svc.Config.PollErrorBackoff - 1)
				if skip > 10 {
					skip = 10
				}
				state.skipCycles = skip
				svc.Logger.Warnf("Balance check failed: invoice_id:%s failures:%d error:%v", invoice.ID, state.consecutiveFailures, err)
				return
			}
			state.consecutiveFailures = 0
		}(invoice, state)
	}
	wg.Wait()
}

// CheckPendingInvoice performs one reconciliation step for a pending invoice:
// poll the provider, record the observed balance, and fire the pending->paid
// edge once the target is reached. Provider failures leave the invoice
// untouched; the next cycle retries.
func (svc *ChainhubService) CheckPendingInvoice(ctx context.Context, invoice *models.Invoice) error {
	if svc.expireIfStale(ctx, invoice) {
		return nil
	}
	provider, ok := svc.ProviderFor(invoice.Currency)
	if !ok {
		return ErrUnsupportedCurrency
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, svc.providerTimeout())
	defer cancel()
	balance, err := provider.ReceivedBalance(timeoutCtx, invoice.Address)
	if err != nil {
		return err
	}

	if err := svc.Store.UpdateObserved(ctx, invoice.ID, balance, time.Now()); err != nil {
		return err
	}
	// overpayment is accepted; the excess is external bookkeeping's problem
	if balance.LessThan(invoice.TargetAmount) {
		return nil
	}

	transitioned, err := svc.Store.CompareAndSetState(ctx, invoice.ID, common.InvoiceStatePending, common.InvoiceStatePaid, func(inv *models.Invoice) {
		inv.ObservedBalance = balance
		inv.PaidAt = bun.NullTime{Time: time.Now()}
	})
	if err != nil {
		return err
	}
	if !transitioned {
		// a concurrent check won the edge
		return nil
	}
	svc.Logger.Infof("Invoice paid: invoice_id:%s target:%s observed:%s", invoice.ID, invoice.TargetAmount, balance)

	if paid, err := svc.Store.Get(ctx, invoice.ID); err == nil {
		svc.InvoicePubSub.Publish(common.InvoiceStatePaid, *paid)
		svc.InvoicePubSub.Publish(invoiceEventsTopic, *paid)
	}
	return nil
}

// expireIfStale moves an over-TTL invoice to expired so polling and
// forwarding stop considering it. Returns true when the invoice is expired.
func (svc *ChainhubService) expireIfStale(ctx context.Context, invoice *models.Invoice) bool {
	if svc.Config.InvoiceTTL == 0 {
		return false
	}
	ttl := time.Duration(svc.Config.InvoiceTTL) * time.Second
	if time.Since(invoice.CreatedAt) < ttl {
		return false
	}
	transitioned, err := svc.Store.CompareAndSetState(ctx, invoice.ID, common.InvoiceStatePending, common.InvoiceStateExpired, nil)
	if err != nil {
		svc.Logger.Errorf("Could not expire invoice: invoice_id:%s error:%v", invoice.ID, err)
		return false
	}
	if transitioned {
		svc.Logger.Infof("Invoice expired: invoice_id:%s age:%s", invoice.ID, time.Since(invoice.CreatedAt))
	}
	return true
}
