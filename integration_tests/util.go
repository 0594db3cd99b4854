package integration_tests

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/ziflex/lecho/v3"

	"github.com/getchainhub/chainhub/chain"
	"github.com/getchainhub/chainhub/common"
	"github.com/getchainhub/chainhub/db/store"
	"github.com/getchainhub/chainhub/lib"
	"github.com/getchainhub/chainhub/lib/responses"
	"github.com/getchainhub/chainhub/lib/service"
)

// mockChainProvider is the test double for a settlement backend: balances are
// scripted by the test and sweeping drains the address.
type mockChainProvider struct {
	mu       sync.Mutex
	issued   int
	balances map[string]decimal.Decimal
}

func newMockChainProvider() *mockChainProvider {
	return &mockChainProvider{balances: map[string]decimal.Decimal{}}
}

func (m *mockChainProvider) NewAddress(ctx context.Context, label string) (*chain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
	return &chain.Address{
		Address:    fmt.Sprintf("mockaddr%d", m.issued),
		CustodyKey: fmt.Sprintf("mockkey%d", m.issued),
	}, nil
}

func (m *mockChainProvider) ReceivedBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[address], nil
}

func (m *mockChainProvider) Sweep(ctx context.Context, address, custodyKey, destination string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[address].IsZero() {
		return "", chain.ErrNoFunds
	}
	m.balances[address] = decimal.Zero
	return "mocktx_" + address, nil
}

func (m *mockChainProvider) pay(address string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] = amount
}

// chainhubTestServiceInit builds a service on the in-memory store with the
// given provider wired for BTC.
func chainhubTestServiceInit(provider chain.Provider) *service.ChainhubService {
	return &service.ChainhubService{
		Config: &service.Config{
			PollInterval:      1,
			PollErrorBackoff:  2,
			ReconcileWorkers:  4,
			ForwardMaxElapsed: 5,
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
		InvoicePubSub:       service.NewPubsub(),
	}
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = responses.HTTPErrorHandler
	e.Validator = &lib.CustomValidator{Validator: validator.New()}
	return e
}
