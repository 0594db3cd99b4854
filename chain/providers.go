package chain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ziflex/lecho/v3"

	"github.com/getchainhub/chainhub/common"
)

// InitProviders builds the provider set the configuration enables. Assets
// without a configured backend fall back to the simulated provider when
// SIMULATED_PROVIDER_ONLY is set, and are otherwise left unsupported so
// invoice creation for them fails with UnsupportedCurrency.
func InitProviders(c *Config, logger *lecho.Logger) (map[string]Provider, error) {
	if err := c.ValidateCollectionWallets(); err != nil {
		return nil, err
	}
	timeout := c.Timeout()
	providers := map[string]Provider{}

	if c.SimulatedProviderOnly {
		delay := time.Duration(c.SimulatedSettleDelay) * time.Second
		settleAmount, err := decimal.NewFromString(c.SimulatedSettleAmount)
		if err != nil {
			return nil, fmt.Errorf("malformed SIMULATED_SETTLE_AMOUNT: %w", err)
		}
		for _, currency := range common.Currencies {
			providers[currency] = NewSimulatedProvider(delay, settleAmount)
		}
		logger.Warn("All providers are simulated, no real settlement will happen")
		return providers, nil
	}

	providers[common.CurrencyBTC] = NewBlockCypherProvider(c.BlockCypherUrl, "btc", c.BlockCypherToken, timeout)
	providers[common.CurrencyLTC] = NewBlockCypherProvider(c.BlockCypherUrl, "ltc", c.BlockCypherToken, timeout)
	if c.EthRPCUrl != "" {
		providers[common.CurrencyETH] = NewEthProvider(c.EthRPCUrl)
	}
	if c.SolRPCUrl != "" {
		providers[common.CurrencySOL] = NewSolProvider(c.SolRPCUrl, timeout)
	}
	if c.XrpRPCUrl != "" {
		providers[common.CurrencyXRP] = NewXrpProvider(c.XrpRPCUrl, timeout)
	}
	if c.GatewayUrl != "" {
		providers[common.CurrencyGateway] = NewGatewayProvider(c.GatewayUrl, c.GatewayAccessToken, c.GatewayAccountNumber, timeout)
	}

	for currency := range providers {
		logger.Infof("Initialized %s provider", currency)
	}
	return providers, nil
}
