package chain

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/getchainhub/chainhub/common"
)

type Config struct {
	BlockCypherUrl        string `envconfig:"BLOCKCYPHER_URL" default:"https://api.blockcypher.com/v1"`
	BlockCypherToken      string `envconfig:"BLOCKCYPHER_TOKEN"`
	EthRPCUrl             string `envconfig:"ETH_RPC_URL"`
	SolRPCUrl             string `envconfig:"SOL_RPC_URL" default:"https://api.mainnet-beta.solana.com"`
	XrpRPCUrl             string `envconfig:"XRP_RPC_URL"`
	GatewayUrl            string `envconfig:"GATEWAY_URL"`
	GatewayAccessToken    string `envconfig:"GATEWAY_ACCESS_TOKEN"`
	GatewayAccountNumber  string `envconfig:"GATEWAY_ACCOUNT_NUMBER"`
	ProviderTimeout       int    `envconfig:"PROVIDER_TIMEOUT" default:"30"` // in seconds, per provider call
	CollectionWalletBTC   string `envconfig:"COLLECTION_WALLET_BTC"`
	CollectionWalletETH   string `envconfig:"COLLECTION_WALLET_ETH"`
	CollectionWalletLTC   string `envconfig:"COLLECTION_WALLET_LTC"`
	CollectionWalletSOL   string `envconfig:"COLLECTION_WALLET_SOL"`
	CollectionWalletXRP   string `envconfig:"COLLECTION_WALLET_XRP"`
	SimulatedSettleDelay  int    `envconfig:"SIMULATED_SETTLE_DELAY" default:"30"` // in seconds, simulated provider only
	SimulatedSettleAmount string `envconfig:"SIMULATED_SETTLE_AMOUNT" default:"1000000"`
	SimulatedProviderOnly bool   `envconfig:"SIMULATED_PROVIDER_ONLY" default:"false"`
}

func LoadConfig() (c *Config, err error) {
	c = &Config{}
	err = envconfig.Process("", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.ProviderTimeout) * time.Second
}

// CollectionWallets maps each configured currency to its collection wallet.
// Currencies without a wallet are skipped; the gateway processor collects on
// its own side and never needs one.
func (c *Config) CollectionWallets() map[string]string {
	wallets := map[string]string{}
	for currency, addr := range map[string]string{
		common.CurrencyBTC: c.CollectionWalletBTC,
		common.CurrencyETH: c.CollectionWalletETH,
		common.CurrencyLTC: c.CollectionWalletLTC,
		common.CurrencySOL: c.CollectionWalletSOL,
		common.CurrencyXRP: c.CollectionWalletXRP,
	} {
		if addr != "" {
			wallets[currency] = addr
		}
	}
	return wallets
}

// ValidateCollectionWallets fails fast on malformed destination addresses so
// a typo in the environment cannot silently burn swept funds.
func (c *Config) ValidateCollectionWallets() error {
	for currency, addr := range c.CollectionWallets() {
		if err := ValidateAddress(currency, addr); err != nil {
			return fmt.Errorf("collection wallet for %s: %w", currency, err)
		}
	}
	return nil
}
