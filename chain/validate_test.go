package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/getchainhub/chainhub/common"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		currency string
		address  string
		valid    bool
	}{
		{common.CurrencyBTC, "bc1qh34k6k6lj2w55h8tzwxv6qyuqsxexj3tg7vr0p", true},
		{common.CurrencyBTC, "bc1qh34k6k6lj2w55h8tzwxv6qyuqsxexj3tg7vr0q", false}, // bad checksum
		{common.CurrencyBTC, "ltc1qc4zrtukr6kn9yu7jvvvcfnh88mmw8d4m0g4s5u", false}, // wrong network
		{common.CurrencyBTC, "", false},
		{common.CurrencyLTC, "ltc1qc4zrtukr6kn9yu7jvvvcfnh88mmw8d4m0g4s5u", true},
		{common.CurrencyLTC, "bc1qh34k6k6lj2w55h8tzwxv6qyuqsxexj3tg7vr0p", false}, // wrong network
		{common.CurrencyETH, "0x2e289604653397ddc18800192e54365423e440c9", true},
		{common.CurrencyETH, "2e289604653397ddc18800192e54365423e440c9", true}, // 0x prefix optional
		{common.CurrencyETH, "0x2e28", false},
		{common.CurrencySOL, "8xJhZZuW6VJxU9byVjtR91vPospbaujEtW6M4EPNXo6B", true},
		{common.CurrencySOL, "notbase58!!", false},
		{common.CurrencySOL, "abc", false},
		{common.CurrencyXRP, "rnyo5DMAdnCTefv4BCjRzgGykP9f8id8sw", true},
		{common.CurrencyXRP, "xnyo5DMAdnCTefv4BCjRzgGykP9f8id8sw", false}, // must start with r
		{common.CurrencyXRP, "r0l", false},
		{common.CurrencyGateway, "https://pay.example.com/charges/abc123", true},
		{common.CurrencyGateway, "", false},
	}
	for _, tt := range tests {
		err := ValidateAddress(tt.currency, tt.address)
		if tt.valid {
			assert.NoError(t, err, "%s %s", tt.currency, tt.address)
		} else {
			assert.Error(t, err, "%s %s", tt.currency, tt.address)
		}
	}
}

func TestValidateAddressUnknownCurrency(t *testing.T) {
	assert.Error(t, ValidateAddress("DOGE", "anything"))
}
