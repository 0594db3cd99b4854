package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GatewayProvider delegates the whole deposit lifecycle to a hosted payment
// processor: the processor issues a hosted payment URL instead of a raw chain
// address, reports how much has been paid against the charge, and collects
// settled funds into the merchant account on its own side. Custody therefore
// stays external for every gateway invoice.
type GatewayProvider struct {
	baseUrl       string
	accessToken   string
	accountNumber string
	httpClient    *http.Client
}

func NewGatewayProvider(baseUrl, accessToken, accountNumber string, timeout time.Duration) *GatewayProvider {
	return &GatewayProvider{
		baseUrl:       strings.TrimRight(baseUrl, "/"),
		accessToken:   accessToken,
		accountNumber: accountNumber,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

type gatewayCharge struct {
	ID                  string          `json:"id"`
	HostedUrl           string          `json:"hosted_url"`
	AmountPaid          decimal.Decimal `json:"amount_paid"`
	Status              string          `json:"status"`
	SettlementReference string          `json:"settlement_reference"`
}

func (p *GatewayProvider) NewAddress(ctx context.Context, label string) (*Address, error) {
	var charge gatewayCharge
	err := p.request(ctx, http.MethodPost, "/charges", map[string]interface{}{
		"account_number":  p.accountNumber,
		"description":     label,
		"idempotency_key": uuid.NewString(),
	}, &charge)
	if err != nil {
		return nil, err
	}
	return &Address{Address: charge.HostedUrl, CustodyKey: CustodyExternal}, nil
}

func (p *GatewayProvider) ReceivedBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var charge gatewayCharge
	err := p.request(ctx, http.MethodGet, "/charges/"+chargeID(address), nil, &charge)
	if err != nil {
		return decimal.Zero, err
	}
	return charge.AmountPaid, nil
}

func (p *GatewayProvider) Sweep(ctx context.Context, address, custodyKey, destination string) (string, error) {
	var charge gatewayCharge
	err := p.request(ctx, http.MethodGet, "/charges/"+chargeID(address), nil, &charge)
	if err != nil {
		return "", err
	}
	// the processor collects settled charges itself; forwarding just records
	// its settlement reference
	if charge.SettlementReference == "" {
		return "", ErrNoFunds
	}
	return charge.SettlementReference, nil
}

// chargeID extracts the charge identifier from the hosted payment URL the
// invoice stores as its address.
func chargeID(address string) string {
	parts := strings.Split(strings.TrimRight(address, "/"), "/")
	return parts[len(parts)-1]
}

func (p *GatewayProvider) request(ctx context.Context, method, endpoint string, body interface{}, response interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(encoded)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, p.baseUrl+endpoint, reqBody)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: gateway returned %d: %s", ErrRejected, resp.StatusCode, payload)
	}
	return json.NewDecoder(resp.Body).Decode(response)
}

var _ Provider = (*GatewayProvider)(nil)
