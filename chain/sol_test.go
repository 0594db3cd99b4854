package chain

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type solRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

func solResult(w http.ResponseWriter, result interface{}) {
	json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": result})
}

func TestSolNewAddress(t *testing.T) {
	provider := NewSolProvider("http://localhost:1", time.Second)
	addr, err := provider.NewAddress(context.Background(), "sol_aaaa1111")
	assert.NoError(t, err)

	// address is the base58 public key, custody key the hex seed
	assert.Len(t, base58.Decode(addr.Address), ed25519.PublicKeySize)
	seed, err := hex.DecodeString(addr.CustodyKey)
	assert.NoError(t, err)
	assert.Len(t, seed, ed25519.SeedSize)
	assert.Equal(t, addr.Address, base58.Encode(ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)))
}

func TestSolReceivedBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req solRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getBalance", req.Method)
		solResult(w, map[string]interface{}{"value": 2500000000})
	}))
	defer server.Close()

	provider := NewSolProvider(server.URL, time.Second)
	balance, err := provider.ReceivedBalance(context.Background(), "8xJhZZuW6VJxU9byVjtR91vPospbaujEtW6M4EPNXo6B")
	assert.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("2.5")))
}

func TestSolSweep(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)
	from := base58.Encode(pub)
	custodyKey := hex.EncodeToString(priv.Seed())
	destination := "8xJhZZuW6VJxU9byVjtR91vPospbaujEtW6M4EPNXo6B"
	blockhash := base58.Encode(make([]byte, 32))

	var sentTx []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req solRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Method {
		case "getBalance":
			solResult(w, map[string]interface{}{"value": 1000000000})
		case "getMinimumBalanceForRentExemption":
			solResult(w, 890880)
		case "getLatestBlockhash":
			solResult(w, map[string]interface{}{"value": map[string]interface{}{"blockhash": blockhash}})
		case "sendTransaction":
			sentTx, _ = base64.StdEncoding.DecodeString(req.Params[0].(string))
			solResult(w, "5sigSignature")
		default:
			t.Errorf("unexpected method %s", req.Method)
		}
	}))
	defer server.Close()

	provider := NewSolProvider(server.URL, time.Second)
	txRef, err := provider.Sweep(context.Background(), from, custodyKey, destination)
	assert.NoError(t, err)
	assert.Equal(t, "5sigSignature", txRef)

	// wire format: signature count, signature, then the message
	assert.Equal(t, byte(1), sentTx[0])
	signature := sentTx[1 : 1+ed25519.SignatureSize]
	message := sentTx[1+ed25519.SignatureSize:]
	assert.True(t, ed25519.Verify(pub, message, signature))

	expected := buildSolTransferMessage(from, destination, blockhash, 1000000000-890880-5000)
	assert.Equal(t, expected, message)
}

func TestSolSweepEmptyAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		solResult(w, map[string]interface{}{"value": 0})
	}))
	defer server.Close()

	pub, priv, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)

	provider := NewSolProvider(server.URL, time.Second)
	_, err = provider.Sweep(context.Background(), base58.Encode(pub), hex.EncodeToString(priv.Seed()), "8xJhZZuW6VJxU9byVjtR91vPospbaujEtW6M4EPNXo6B")
	assert.ErrorIs(t, err, ErrNoFunds)
}

func TestBuildSolTransferMessage(t *testing.T) {
	from := base58.Encode(bytesOf(1, 32))
	to := base58.Encode(bytesOf(2, 32))
	blockhash := base58.Encode(bytesOf(3, 32))

	message := buildSolTransferMessage(from, to, blockhash, 123456789)

	// header, key count, 3 keys, blockhash, instruction count, program index,
	// account indexes, data length, 12 bytes of data
	assert.Len(t, message, 3+1+3*32+32+1+1+3+1+12)
	assert.Equal(t, []byte{1, 0, 1}, message[0:3])
	assert.Equal(t, byte(3), message[3])
	assert.Equal(t, bytesOf(1, 32), message[4:36])
	assert.Equal(t, bytesOf(2, 32), message[36:68])
	assert.Equal(t, base58.Decode(solSystemProgram), message[68:100])

	data := message[len(message)-12:]
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint64(123456789), binary.LittleEndian.Uint64(data[4:12]))
}

func bytesOf(b byte, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return buf
}
