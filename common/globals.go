package common

const (
	CurrencyBTC     = "BTC"
	CurrencyETH     = "ETH"
	CurrencyLTC     = "LTC"
	CurrencySOL     = "SOL"
	CurrencyXRP     = "XRP"
	CurrencyGateway = "GATEWAY"

	InvoiceStatePending   = "pending"
	InvoiceStatePaid      = "paid"
	InvoiceStateForwarded = "forwarded"
	InvoiceStateExpired   = "expired"
)

// Currencies lists every supported asset in the order we advertise them.
var Currencies = []string{
	CurrencyBTC,
	CurrencyETH,
	CurrencyLTC,
	CurrencySOL,
	CurrencyXRP,
	CurrencyGateway,
}

func IsSupportedCurrency(currency string) bool {
	for _, c := range Currencies {
		if c == currency {
			return true
		}
	}
	return false
}
