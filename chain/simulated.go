package chain

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SimulatedProvider settles every address a fixed delay after creation. It
// exists for assets without a usable settlement API and for local testing,
// and sits behind the same Provider interface as the real backends so the
// service never has to know the difference.
type SimulatedProvider struct {
	settleDelay  time.Duration
	settleAmount decimal.Decimal

	mu        sync.Mutex
	createdAt map[string]time.Time
	swept     map[string]bool
}

func NewSimulatedProvider(settleDelay time.Duration, settleAmount decimal.Decimal) *SimulatedProvider {
	return &SimulatedProvider{
		settleDelay:  settleDelay,
		settleAmount: settleAmount,
		createdAt:    make(map[string]time.Time),
		swept:        make(map[string]bool),
	}
}

func (p *SimulatedProvider) NewAddress(ctx context.Context, label string) (*Address, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	address := "sim1" + hex.EncodeToString(buf)
	p.mu.Lock()
	p.createdAt[address] = time.Now()
	p.mu.Unlock()
	return &Address{Address: address, CustodyKey: CustodyExternal}, nil
}

func (p *SimulatedProvider) ReceivedBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	created, ok := p.createdAt[address]
	if !ok || p.swept[address] || time.Since(created) < p.settleDelay {
		return decimal.Zero, nil
	}
	return p.settleAmount, nil
}

func (p *SimulatedProvider) Sweep(ctx context.Context, address, custodyKey, destination string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	created, ok := p.createdAt[address]
	if !ok || p.swept[address] || time.Since(created) < p.settleDelay {
		return "", ErrNoFunds
	}
	p.swept[address] = true
	return "simulated:" + address, nil
}

var _ Provider = (*SimulatedProvider)(nil)
