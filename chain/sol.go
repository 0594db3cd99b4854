package chain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/shopspring/decimal"
)

var lamportDivisor = decimal.New(1, 9)

const solSystemProgram = "11111111111111111111111111111111"

// SolProvider talks directly to a solana cluster's JSON-RPC endpoint.
// The transfer transaction for sweeping is assembled and signed locally:
// a legacy message with a single system-program transfer instruction.
type SolProvider struct {
	rpcUrl     string
	httpClient *http.Client
}

func NewSolProvider(rpcUrl string, timeout time.Duration) *SolProvider {
	return &SolProvider{
		rpcUrl:     rpcUrl,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *SolProvider) NewAddress(ctx context.Context, label string) (*Address, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return &Address{
		Address:    base58.Encode(pub),
		CustodyKey: hex.EncodeToString(priv.Seed()),
	}, nil
}

func (p *SolProvider) ReceivedBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var result struct {
		Value int64 `json:"value"`
	}
	err := p.rpcCall(ctx, "getBalance", []interface{}{address}, &result)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(result.Value).Div(lamportDivisor), nil
}

func (p *SolProvider) Sweep(ctx context.Context, address, custodyKey, destination string) (string, error) {
	seed, err := hex.DecodeString(custodyKey)
	if err != nil || len(seed) != ed25519.SeedSize {
		return "", fmt.Errorf("malformed custody key")
	}
	priv := ed25519.NewKeyFromSeed(seed)

	var balance struct {
		Value int64 `json:"value"`
	}
	if err := p.rpcCall(ctx, "getBalance", []interface{}{address}, &balance); err != nil {
		return "", err
	}
	if balance.Value == 0 {
		return "", ErrNoFunds
	}
	// a system account must keep the rent-exempt minimum, and the transfer
	// itself pays the base signature fee
	var rentExempt int64
	if err := p.rpcCall(ctx, "getMinimumBalanceForRentExemption", []interface{}{0}, &rentExempt); err != nil {
		return "", err
	}
	const signatureFee = 5000
	lamports := balance.Value - rentExempt - signatureFee
	if lamports <= 0 {
		return "", fmt.Errorf("%w: balance %d below rent-exempt minimum %d", ErrInsufficientReserve, balance.Value, rentExempt)
	}

	var blockhash struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := p.rpcCall(ctx, "getLatestBlockhash", []interface{}{}, &blockhash); err != nil {
		return "", err
	}

	message := buildSolTransferMessage(address, destination, blockhash.Value.Blockhash, uint64(lamports))
	signature := ed25519.Sign(priv, message)

	var tx bytes.Buffer
	tx.WriteByte(1) // one signature
	tx.Write(signature)
	tx.Write(message)

	var txSig string
	err = p.rpcCall(ctx, "sendTransaction",
		[]interface{}{base64.StdEncoding.EncodeToString(tx.Bytes()), map[string]string{"encoding": "base64"}}, &txSig)
	if err != nil {
		return "", err
	}
	return txSig, nil
}

// buildSolTransferMessage assembles a legacy message with one system-program
// transfer instruction. Counts all fit in one byte so the compact-u16
// encodings degenerate to single bytes.
func buildSolTransferMessage(from, to, recentBlockhash string, lamports uint64) []byte {
	var msg bytes.Buffer
	// header: 1 required signature, 0 readonly signed, 1 readonly unsigned
	msg.Write([]byte{1, 0, 1})
	msg.WriteByte(3) // account keys
	msg.Write(base58.Decode(from))
	msg.Write(base58.Decode(to))
	msg.Write(base58.Decode(solSystemProgram))
	msg.Write(base58.Decode(recentBlockhash))
	msg.WriteByte(1) // instructions
	msg.WriteByte(2) // program id index: system program
	msg.Write([]byte{2, 0, 1})
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2) // SystemInstruction::Transfer
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	msg.WriteByte(byte(len(data)))
	msg.Write(data)
	return msg.Bytes()
}

type solRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (p *SolProvider) rpcCall(ctx context.Context, method string, params []interface{}, result interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
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
		return fmt.Errorf("%w: solana rpc returned %d", ErrUnavailable, resp.StatusCode)
	}
	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *solRPCError    `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%w: solana rpc error %d: %s", ErrRejected, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

var _ Provider = (*SolProvider)(nil)
