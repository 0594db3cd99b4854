package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/ziflex/lecho/v3"

	"github.com/getchainhub/chainhub/chain"
	"github.com/getchainhub/chainhub/common"
	"github.com/getchainhub/chainhub/db/store"
)

// mockProvider is an in-memory chain.Provider: balances are set by the test,
// sweeps drain the address.
type mockProvider struct {
	mu         sync.Mutex
	issued     int
	balances   map[string]decimal.Decimal
	addressErr error
	balanceErr error
	sweepErr   error
	sweepCalls int
}

func newMockProvider() *mockProvider {
	return &mockProvider{balances: map[string]decimal.Decimal{}}
}

func (m *mockProvider) NewAddress(ctx context.Context, label string) (*chain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addressErr != nil {
		return nil, m.addressErr
	}
	m.issued++
	return &chain.Address{
		Address:    fmt.Sprintf("mockaddr%d", m.issued),
		CustodyKey: fmt.Sprintf("mockkey%d", m.issued),
	}, nil
}

func (m *mockProvider) ReceivedBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balanceErr != nil {
		return decimal.Zero, m.balanceErr
	}
	return m.balances[address], nil
}

func (m *mockProvider) Sweep(ctx context.Context, address, custodyKey, destination string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepCalls++
	if m.sweepErr != nil {
		return "", m.sweepErr
	}
	if m.balances[address].IsZero() {
		return "", chain.ErrNoFunds
	}
	m.balances[address] = decimal.Zero
	return "mocktx_" + address, nil
}

func (m *mockProvider) setBalance(address string, balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] = balance
}

func newTestService(provider chain.Provider) *ChainhubService {
	return &ChainhubService{
		Config: &Config{
			PollInterval:      1,
			PollErrorBackoff:  2,
			ReconcileWorkers:  4,
			ForwardMaxElapsed: 1,
		},
		Store: store.NewMemoryStore(),
		Providers: map[string]chain.Provider{
			common.CurrencyBTC: provider,
		},
		CollectionWallets: map[string]string{
			common.CurrencyBTC: "bc1qh34k6k6lj2w55h8tzwxv6qyuqsxexj3tg7vr0p",
		},
		ProviderCallTimeout: time.Second,
		Logger:              lecho.New(io.Discard),
		InvoicePubSub:       NewPubsub(),
	}
}

func TestCreateInvoice(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockProvider())

	invoice, err := svc.CreateInvoice(ctx, decimal.RequireFromString("0.01"), "btc")
	assert.NoError(t, err)
	assert.Equal(t, common.CurrencyBTC, invoice.Currency)
	assert.Equal(t, common.InvoiceStatePending, invoice.State)
	assert.True(t, strings.HasPrefix(invoice.ID, "btc_"))
	assert.Len(t, invoice.ID, len("btc_")+8)
	assert.NotEmpty(t, invoice.Address)
	assert.True(t, invoice.ObservedBalance.IsZero())
}

func TestCreateInvoiceUniqueAddresses(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockProvider())

	first, err := svc.CreateInvoice(ctx, decimal.RequireFromString("0.01"), "BTC")
	assert.NoError(t, err)
	second, err := svc.CreateInvoice(ctx, decimal.RequireFromString("0.02"), "BTC")
	assert.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.Address, second.Address)
}

func TestCreateInvoiceValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockProvider())

	_, err := svc.CreateInvoice(ctx, decimal.RequireFromString("1"), "DOGE")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)

	// supported currency without a configured provider
	_, err = svc.CreateInvoice(ctx, decimal.RequireFromString("1"), "ETH")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)

	_, err = svc.CreateInvoice(ctx, decimal.Zero, "BTC")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreateInvoice(ctx, decimal.RequireFromString("-0.5"), "BTC")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreateInvoiceProviderFailure(t *testing.T) {
	ctx := context.Background()
	provider := newMockProvider()
	provider.addressErr = chain.ErrUnavailable
	svc := newTestService(provider)

	_, err := svc.CreateInvoice(ctx, decimal.RequireFromString("0.01"), "BTC")
	assert.ErrorIs(t, err, chain.ErrUnavailable)
}

func TestCustodyKeyNotSerialized(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockProvider())

	invoice, err := svc.CreateInvoice(ctx, decimal.RequireFromString("0.01"), "BTC")
	assert.NoError(t, err)
	assert.NotEmpty(t, invoice.CustodyKey)

	serialized, err := json.Marshal(invoice)
	assert.NoError(t, err)
	assert.NotContains(t, string(serialized), invoice.CustodyKey)
	assert.NotContains(t, string(serialized), "custody")
}

func TestRequestForwardNotReady(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMockProvider())

	invoice, err := svc.CreateInvoice(ctx, decimal.RequireFromString("0.01"), "BTC")
	assert.NoError(t, err)

	_, err = svc.RequestForward(ctx, invoice.ID)
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = svc.RequestForward(ctx, "btc_missing1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRequestForward(t *testing.T) {
	ctx := context.Background()
	provider := newMockProvider()
	svc := newTestService(provider)

	invoice, err := svc.CreateInvoice(ctx, decimal.RequireFromString("0.01"), "BTC")
	assert.NoError(t, err)

	provider.setBalance(invoice.Address, decimal.RequireFromString("0.01"))
	assert.NoError(t, svc.CheckPendingInvoice(ctx, invoice))

	forwarded, err := svc.RequestForward(ctx, invoice.ID)
	assert.NoError(t, err)
	assert.Equal(t, common.InvoiceStateForwarded, forwarded.State)
	assert.Equal(t, "mocktx_"+invoice.Address, forwarded.SweepTxRef)
	assert.False(t, forwarded.ForwardedAt.IsZero())

	// the edge already fired
	_, err = svc.RequestForward(ctx, invoice.ID)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestRequestForwardNoFundsStaysPaid(t *testing.T) {
	ctx := context.Background()
	provider := newMockProvider()
	svc := newTestService(provider)

	invoice, err := svc.CreateInvoice(ctx, decimal.RequireFromString("0.01"), "BTC")
	assert.NoError(t, err)
	provider.setBalance(invoice.Address, decimal.RequireFromString("0.01"))
	assert.NoError(t, svc.CheckPendingInvoice(ctx, invoice))

	provider.setBalance(invoice.Address, decimal.Zero)
	_, err = svc.RequestForward(ctx, invoice.ID)
	assert.ErrorIs(t, err, chain.ErrNoFunds)

	stored, err := svc.GetInvoice(ctx, invoice.ID)
	assert.NoError(t, err)
	assert.Equal(t, common.InvoiceStatePaid, stored.State)
}

func TestSubscribeInvoiceEvents(t *testing.T) {
	ctx := context.Background()
	provider := newMockProvider()
	svc := newTestService(provider)

	events, unsubscribe := svc.SubscribeInvoiceEvents(ctx)
	defer unsubscribe()

	// both events sit queued before anything is read; delivery must still be
	// paid before forwarded for every invoice
	for i := 0; i < 5; i++ {
		invoice, err := svc.CreateInvoice(ctx, decimal.RequireFromString("0.01"), "BTC")
		assert.NoError(t, err)

		provider.setBalance(invoice.Address, decimal.RequireFromString("0.01"))
		assert.NoError(t, svc.CheckPendingInvoice(ctx, invoice))
		_, err = svc.RequestForward(ctx, invoice.ID)
		assert.NoError(t, err)

		paid := <-events
		assert.Equal(t, invoice.ID, paid.ID)
		assert.Equal(t, common.InvoiceStatePaid, paid.State)
		forwarded := <-events
		assert.Equal(t, invoice.ID, forwarded.ID)
		assert.Equal(t, common.InvoiceStateForwarded, forwarded.State)
	}
}

// invoices that cannot be swept must not block invoices that can
func TestSweepFailureDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	provider := newMockProvider()
	svc := newTestService(provider)

	broken, err := svc.CreateInvoice(ctx, decimal.RequireFromString("0.01"), "BTC")
	assert.NoError(t, err)
	healthy, err := svc.CreateInvoice(ctx, decimal.RequireFromString("0.02"), "BTC")
	assert.NoError(t, err)

	provider.setBalance(broken.Address, decimal.RequireFromString("0.01"))
	provider.setBalance(healthy.Address, decimal.RequireFromString("0.02"))
	assert.NoError(t, svc.CheckPendingInvoice(ctx, broken))
	assert.NoError(t, svc.CheckPendingInvoice(ctx, healthy))

	provider.setBalance(broken.Address, decimal.Zero)
	_, err = svc.RequestForward(ctx, broken.ID)
	assert.Error(t, err)

	forwarded, err := svc.RequestForward(ctx, healthy.ID)
	assert.NoError(t, err)
	assert.Equal(t, common.InvoiceStateForwarded, forwarded.State)
}
