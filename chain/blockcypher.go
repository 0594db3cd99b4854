package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/shopspring/decimal"
)

// satoshi per coin, shared by BTC and LTC
var satDivisor = decimal.New(1, 8)

// BlockCypherProvider serves the UTXO assets (BTC, LTC) through the
// BlockCypher REST API. Address keys are generated by the API and stored on
// the invoice; sweeping uses the two-step tx skeleton flow with local signing
// so the private key never leaves the service.
type BlockCypherProvider struct {
	baseUrl    string
	coin       string // "btc" or "ltc"
	token      string
	httpClient *http.Client
}

func NewBlockCypherProvider(baseUrl, coin, token string, timeout time.Duration) *BlockCypherProvider {
	return &BlockCypherProvider{
		baseUrl:    strings.TrimRight(baseUrl, "/"),
		coin:       coin,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type blockCypherAddress struct {
	Address string `json:"address"`
	Private string `json:"private"`
	Public  string `json:"public"`
}

type blockCypherBalance struct {
	FinalBalance       int64 `json:"final_balance"`
	UnconfirmedBalance int64 `json:"unconfirmed_balance"`
}

type blockCypherTxSkeleton struct {
	Tx struct {
		Hash string `json:"hash"`
	} `json:"tx"`
	ToSign     []string `json:"tosign"`
	Signatures []string `json:"signatures"`
	PubKeys    []string `json:"pubkeys"`
	Errors     []struct {
		Error string `json:"error"`
	} `json:"errors"`
}

func (p *BlockCypherProvider) NewAddress(ctx context.Context, label string) (*Address, error) {
	var addr blockCypherAddress
	err := p.request(ctx, http.MethodPost, "/addrs", nil, &addr)
	if err != nil {
		return nil, err
	}
	return &Address{Address: addr.Address, CustodyKey: addr.Private}, nil
}

func (p *BlockCypherProvider) ReceivedBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var balance blockCypherBalance
	err := p.request(ctx, http.MethodGet, fmt.Sprintf("/addrs/%s/balance", address), nil, &balance)
	if err != nil {
		return decimal.Zero, err
	}
	// unconfirmed outputs count towards payment detection
	sats := balance.FinalBalance + balance.UnconfirmedBalance
	return decimal.NewFromInt(sats).Div(satDivisor), nil
}

func (p *BlockCypherProvider) Sweep(ctx context.Context, address, custodyKey, destination string) (string, error) {
	keyBytes, err := hex.DecodeString(custodyKey)
	if err != nil {
		return "", fmt.Errorf("malformed custody key: %w", err)
	}
	privKey, pubKey := btcec.PrivKeyFromBytes(keyBytes)

	// value -1 asks the API to build a sweep of every spendable output at
	// the address, with the network fee taken out of the swept amount
	newTx := map[string]interface{}{
		"inputs":  []map[string]interface{}{{"addresses": []string{address}}},
		"outputs": []map[string]interface{}{{"addresses": []string{destination}, "value": -1}},
	}
	var skeleton blockCypherTxSkeleton
	err = p.request(ctx, http.MethodPost, "/txs/new", newTx, &skeleton)
	if err != nil {
		return "", err
	}
	if len(skeleton.ToSign) == 0 {
		return "", ErrNoFunds
	}

	pubKeyHex := hex.EncodeToString(pubKey.SerializeCompressed())
	for _, toSign := range skeleton.ToSign {
		digest, err := hex.DecodeString(toSign)
		if err != nil {
			return "", fmt.Errorf("malformed tosign data: %w", err)
		}
		sig := ecdsa.Sign(privKey, digest)
		skeleton.Signatures = append(skeleton.Signatures, hex.EncodeToString(sig.Serialize()))
		skeleton.PubKeys = append(skeleton.PubKeys, pubKeyHex)
	}

	var sent blockCypherTxSkeleton
	err = p.request(ctx, http.MethodPost, "/txs/send", &skeleton, &sent)
	if err != nil {
		return "", err
	}
	return sent.Tx.Hash, nil
}

func (p *BlockCypherProvider) request(ctx context.Context, method, endpoint string, body interface{}, response interface{}) error {
	url := fmt.Sprintf("%s/%s/main%s", p.baseUrl, p.coin, endpoint)
	if p.token != "" {
		url += "?token=" + p.token
	}
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(encoded)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: blockcypher returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		if isInsufficientFunds(payload) {
			return ErrNoFunds
		}
		return fmt.Errorf("%w: blockcypher returned %d: %s", ErrRejected, resp.StatusCode, payload)
	}
	if err := json.Unmarshal(payload, response); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if skeleton, ok := response.(*blockCypherTxSkeleton); ok {
		for _, e := range skeleton.Errors {
			if isInsufficientFunds([]byte(e.Error)) {
				return ErrNoFunds
			}
			return fmt.Errorf("%w: %s", ErrRejected, e.Error)
		}
	}
	return nil
}

func isInsufficientFunds(payload []byte) bool {
	msg := strings.ToLower(string(payload))
	return strings.Contains(msg, "insufficient") || strings.Contains(msg, "not enough funds") ||
		strings.Contains(msg, "no spendable outputs")
}

var _ Provider = (*BlockCypherProvider)(nil)
