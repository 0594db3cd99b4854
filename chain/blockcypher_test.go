package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

const testCustodyKey = "1111111111111111111111111111111111111111111111111111111111111111"

func TestBlockCypherNewAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/btc/main/addrs", r.URL.Path)
		assert.Equal(t, "testtoken", r.URL.Query().Get("token"))
		json.NewEncoder(w).Encode(blockCypherAddress{
			Address: "bc1qh34k6k6lj2w55h8tzwxv6qyuqsxexj3tg7vr0p",
			Private: testCustodyKey,
		})
	}))
	defer server.Close()

	provider := NewBlockCypherProvider(server.URL, "btc", "testtoken", time.Second)
	addr, err := provider.NewAddress(context.Background(), "btc_aaaa1111")
	assert.NoError(t, err)
	assert.Equal(t, "bc1qh34k6k6lj2w55h8tzwxv6qyuqsxexj3tg7vr0p", addr.Address)
	assert.Equal(t, testCustodyKey, addr.CustodyKey)
}

func TestBlockCypherReceivedBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ltc/main/addrs/someaddress/balance", r.URL.Path)
		json.NewEncoder(w).Encode(blockCypherBalance{
			FinalBalance:       100000000,
			UnconfirmedBalance: 50000000,
		})
	}))
	defer server.Close()

	provider := NewBlockCypherProvider(server.URL, "ltc", "", time.Second)
	balance, err := provider.ReceivedBalance(context.Background(), "someaddress")
	assert.NoError(t, err)
	// unconfirmed sats count towards the total
	assert.True(t, balance.Equal(decimal.RequireFromString("1.5")))
}

func TestBlockCypherErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{"server error", http.StatusInternalServerError, `{"error": "oops"}`, ErrUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{"error": "limits reached"}`, ErrUnavailable},
		{"bad request", http.StatusBadRequest, `{"error": "invalid address"}`, ErrRejected},
		{"empty address", http.StatusBadRequest, `{"error": "Error building transaction: Insufficient funds."}`, ErrNoFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider := NewBlockCypherProvider(server.URL, "btc", "", time.Second)
			_, err := provider.ReceivedBalance(context.Background(), "someaddress")
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestBlockCypherSweep(t *testing.T) {
	var sent blockCypherTxSkeleton
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/btc/main/txs/new":
			var newTx map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&newTx))
			outputs := newTx["outputs"].([]interface{})[0].(map[string]interface{})
			// value -1 requests a sweep of everything at the address
			assert.Equal(t, float64(-1), outputs["value"])
			json.NewEncoder(w).Encode(blockCypherTxSkeleton{
				ToSign: []string{
					"32b81775a69e8e876474f2a71318efea4e9dcd60cf64f0d7bb41625bd3416e31",
					"c655f5b1b6b3b36e432b8a8a848d6e02b0b3b4c5d6e7f8091a2b3c4d5e6f7081",
				},
			})
		case "/btc/main/txs/send":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
			skeleton := blockCypherTxSkeleton{}
			skeleton.Tx.Hash = "f4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16"
			json.NewEncoder(w).Encode(skeleton)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	provider := NewBlockCypherProvider(server.URL, "btc", "", time.Second)
	txRef, err := provider.Sweep(context.Background(), "someaddress", testCustodyKey, "bc1qh34k6k6lj2w55h8tzwxv6qyuqsxexj3tg7vr0p")
	assert.NoError(t, err)
	assert.Equal(t, "f4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16", txRef)

	// one signature and one pubkey per tosign entry
	assert.Len(t, sent.Signatures, 2)
	assert.Len(t, sent.PubKeys, 2)
	assert.Equal(t, sent.PubKeys[0], sent.PubKeys[1])
}

func TestBlockCypherSweepNoFunds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(blockCypherTxSkeleton{})
	}))
	defer server.Close()

	provider := NewBlockCypherProvider(server.URL, "btc", "", time.Second)
	_, err := provider.Sweep(context.Background(), "someaddress", testCustodyKey, "bc1qh34k6k6lj2w55h8tzwxv6qyuqsxexj3tg7vr0p")
	assert.ErrorIs(t, err, ErrNoFunds)
}

func TestBlockCypherSweepBadKey(t *testing.T) {
	provider := NewBlockCypherProvider("http://localhost:1", "btc", "", time.Second)
	_, err := provider.Sweep(context.Background(), "someaddress", "not-hex", "bc1qh34k6k6lj2w55h8tzwxv6qyuqsxexj3tg7vr0p")
	assert.Error(t, err)
}
