package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var dropDivisor = decimal.New(1, 6)

// XrpProvider drives a rippled node over its JSON-RPC interface. Address
// issuance uses wallet_propose and sweeping submits a server-signed Payment,
// so the node acts as signer; the invoice stores the account seed.
type XrpProvider struct {
	rpcUrl     string
	httpClient *http.Client
}

func NewXrpProvider(rpcUrl string, timeout time.Duration) *XrpProvider {
	return &XrpProvider{
		rpcUrl:     rpcUrl,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *XrpProvider) NewAddress(ctx context.Context, label string) (*Address, error) {
	var result struct {
		AccountID  string `json:"account_id"`
		MasterSeed string `json:"master_seed"`
	}
	if err := p.rpcCall(ctx, "wallet_propose", map[string]interface{}{}, &result); err != nil {
		return nil, err
	}
	return &Address{Address: result.AccountID, CustodyKey: result.MasterSeed}, nil
}

func (p *XrpProvider) ReceivedBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	drops, err := p.accountDrops(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(drops).Div(dropDivisor), nil
}

func (p *XrpProvider) Sweep(ctx context.Context, address, custodyKey, destination string) (string, error) {
	drops, err := p.accountDrops(ctx, address)
	if err != nil {
		return "", err
	}
	if drops == 0 {
		return "", ErrNoFunds
	}
	reserve, err := p.baseReserveDrops(ctx)
	if err != nil {
		return "", err
	}
	const feeDrops = 12
	amount := drops - reserve - feeDrops
	if amount <= 0 {
		return "", fmt.Errorf("%w: balance %d drops below ledger reserve %d", ErrInsufficientReserve, drops, reserve)
	}

	var result struct {
		EngineResult string `json:"engine_result"`
		TxJson       struct {
			Hash string `json:"hash"`
		} `json:"tx_json"`
	}
	err = p.rpcCall(ctx, "submit", map[string]interface{}{
		"secret": custodyKey,
		"tx_json": map[string]interface{}{
			"TransactionType": "Payment",
			"Account":         address,
			"Destination":     destination,
			"Amount":          strconv.FormatInt(amount, 10),
		},
	}, &result)
	if err != nil {
		return "", err
	}
	if result.EngineResult != "tesSUCCESS" {
		return "", fmt.Errorf("%w: submit returned %s", ErrRejected, result.EngineResult)
	}
	return result.TxJson.Hash, nil
}

// accountDrops returns the account balance in drops. An account the ledger
// has never seen is an unfunded deposit address, which is a confirmed zero
// balance rather than a query failure.
func (p *XrpProvider) accountDrops(ctx context.Context, address string) (int64, error) {
	var result struct {
		AccountData struct {
			Balance string `json:"Balance"`
		} `json:"account_data"`
		Error string `json:"error"`
	}
	err := p.rpcCall(ctx, "account_info", map[string]interface{}{
		"account":      address,
		"ledger_index": "validated",
	}, &result)
	if err != nil {
		if strings.Contains(err.Error(), "actNotFound") {
			return 0, nil
		}
		return 0, err
	}
	if result.Error == "actNotFound" {
		return 0, nil
	}
	if result.Error != "" {
		return 0, fmt.Errorf("%w: account_info error %s", ErrRejected, result.Error)
	}
	drops, err := strconv.ParseInt(result.AccountData.Balance, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad balance %q", ErrUnavailable, result.AccountData.Balance)
	}
	return drops, nil
}

func (p *XrpProvider) baseReserveDrops(ctx context.Context) (int64, error) {
	var result struct {
		Info struct {
			ValidatedLedger struct {
				ReserveBaseXrp float64 `json:"reserve_base_xrp"`
			} `json:"validated_ledger"`
		} `json:"info"`
	}
	if err := p.rpcCall(ctx, "server_info", map[string]interface{}{}, &result); err != nil {
		return 0, err
	}
	if result.Info.ValidatedLedger.ReserveBaseXrp == 0 {
		// rippled default
		return 10_000_000, nil
	}
	return int64(result.Info.ValidatedLedger.ReserveBaseXrp * 1e6), nil
}

func (p *XrpProvider) rpcCall(ctx context.Context, method string, params map[string]interface{}, result interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"method": method,
		"params": []interface{}{params},
	})
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.rpcUrl, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: rippled returned %d", ErrUnavailable, resp.StatusCode)
	}
	var rpcResp struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(rpcResp.Result, &status); err == nil && status.Status == "error" && status.Error != "actNotFound" {
		return fmt.Errorf("%w: rippled error %s", ErrRejected, status.Error)
	}
	return json.Unmarshal(rpcResp.Result, result)
}

var _ Provider = (*XrpProvider)(nil)
