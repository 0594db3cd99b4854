package service

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/gommon/random"
	"github.com/ziflex/lecho/v3"

	"github.com/getchainhub/chainhub/chain"
	"github.com/getchainhub/chainhub/db/store"
)

var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrNotReady            = errors.New("invoice is not paid")
)

const idSuffixBytes = random.Lowercase + random.Numeric

// invoiceEventsTopic carries every lifecycle transition on one topic, in
// commit order. The per-state topics fan out to interested workers; exporters
// that need paid-before-forwarded ordering subscribe here instead.
const invoiceEventsTopic = "invoice_events"

type ChainhubService struct {
	Config            *Config
	Store             store.Store
	Providers         map[string]chain.Provider
	CollectionWallets map[string]string
	// ProviderCallTimeout bounds every provider call made by the
	// reconciliation and forwarding paths.
	ProviderCallTimeout time.Duration
	Logger              *lecho.Logger
	InvoicePubSub       *Pubsub
}

func (svc *ChainhubService) ProviderFor(currency string) (chain.Provider, bool) {
	provider, ok := svc.Providers[currency]
	return provider, ok
}

// GenerateInvoiceID builds the public invoice identifier: the lowercased
// currency plus a random 8-character suffix.
func (svc *ChainhubService) GenerateInvoiceID(currency string) string {
	return strings.ToLower(currency) + "_" + random.String(8, idSuffixBytes)
}
