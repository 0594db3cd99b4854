package chain

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/getchainhub/chainhub/common"
)

// Litecoin shares the bitcoin address machinery with different version bytes
// and a different bech32 prefix. Registering a dedicated Params lets
// btcutil.DecodeAddress handle LTC addresses directly.
var litecoinParams = func() *chaincfg.Params {
	params := chaincfg.MainNetParams
	params.Name = "litecoin"
	params.Net = 0xdbb6c0fb
	params.Bech32HRPSegwit = "ltc"
	params.PubKeyHashAddrID = 0x30
	params.ScriptHashAddrID = 0x32
	params.PrivateKeyID = 0xb0
	if err := chaincfg.Register(&params); err != nil {
		panic(fmt.Sprintf("register litecoin params: %v", err))
	}
	return &params
}()

const rippleAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

// ValidateAddress checks that an address is well formed for the given
// currency. Gateway references are opaque URLs issued by the processor and
// accepted as-is.
func ValidateAddress(currency, address string) error {
	switch currency {
	case common.CurrencyBTC:
		// DecodeAddress accepts any registered bech32 prefix, so the network
		// check has to be explicit or an ltc1 address slips through
		decoded, err := btcutil.DecodeAddress(address, &chaincfg.MainNetParams)
		if err != nil {
			return fmt.Errorf("invalid BTC address %q: %w", address, err)
		}
		if !decoded.IsForNet(&chaincfg.MainNetParams) {
			return fmt.Errorf("address %q is not a BTC address", address)
		}
	case common.CurrencyLTC:
		decoded, err := btcutil.DecodeAddress(address, litecoinParams)
		if err != nil {
			return fmt.Errorf("invalid LTC address %q: %w", address, err)
		}
		if !decoded.IsForNet(litecoinParams) {
			return fmt.Errorf("address %q is not an LTC address", address)
		}
	case common.CurrencyETH:
		if !ethcommon.IsHexAddress(address) {
			return fmt.Errorf("invalid ETH address %q", address)
		}
	case common.CurrencySOL:
		decoded := base58.Decode(address)
		if len(decoded) != 32 {
			return fmt.Errorf("invalid SOL address %q", address)
		}
	case common.CurrencyXRP:
		if !strings.HasPrefix(address, "r") || len(address) < 25 || len(address) > 35 {
			return fmt.Errorf("invalid XRP address %q", address)
		}
		for _, c := range address {
			if !strings.ContainsRune(rippleAlphabet, c) {
				return fmt.Errorf("invalid XRP address %q", address)
			}
		}
	case common.CurrencyGateway:
		if address == "" {
			return fmt.Errorf("empty gateway payment reference")
		}
	default:
		return fmt.Errorf("unknown currency %q", currency)
	}
	return nil
}
