package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

var weiDivisor = decimal.New(1, 18)

const ethTransferGas = 21000

// EthProvider talks to any ethereum JSON-RPC endpoint via go-ethereum's
// ethclient. Keys are generated locally; the sweepable amount is the balance
// minus the gas cost of a plain transfer at the current suggested price.
type EthProvider struct {
	rpcUrl string
	dial   func(ctx context.Context, rawurl string) (EthClient, error)
}

// EthClient is the ethclient surface the provider uses, extracted so tests
// can substitute a fake node.
type EthClient interface {
	BalanceAt(ctx context.Context, account ethcommon.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

func NewEthProvider(rpcUrl string) *EthProvider {
	return &EthProvider{
		rpcUrl: rpcUrl,
		dial: func(ctx context.Context, rawurl string) (EthClient, error) {
			return ethclient.DialContext(ctx, rawurl)
		},
	}
}

func (p *EthProvider) NewAddress(ctx context.Context, label string) (*Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Address{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		CustodyKey: hex.EncodeToString(crypto.FromECDSA(key)),
	}, nil
}

func (p *EthProvider) ReceivedBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	client, err := p.dial(ctx, p.rpcUrl)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer client.Close()

	wei, err := client.BalanceAt(ctx, ethcommon.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return decimal.NewFromBigInt(wei, 0).Div(weiDivisor), nil
}

func (p *EthProvider) Sweep(ctx context.Context, address, custodyKey, destination string) (string, error) {
	key, err := crypto.HexToECDSA(custodyKey)
	if err != nil {
		return "", fmt.Errorf("malformed custody key: %w", err)
	}
	client, err := p.dial(ctx, p.rpcUrl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer client.Close()

	from := ethcommon.HexToAddress(address)
	balance, err := client.BalanceAt(ctx, from, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if balance.Sign() == 0 {
		return "", ErrNoFunds
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	gasCost := new(big.Int).Mul(gasPrice, big.NewInt(ethTransferGas))
	amount := new(big.Int).Sub(balance, gasCost)
	if amount.Sign() <= 0 {
		return "", fmt.Errorf("%w: balance %s does not cover gas %s", ErrInsufficientReserve, balance, gasCost)
	}
	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	to := ethcommon.HexToAddress(destination)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      ethTransferGas,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), key)
	if err != nil {
		return "", err
	}
	err = client.SendTransaction(ctx, signed)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		// a node rejecting a well-formed transaction is not transient
		return "", fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return signed.Hash().Hex(), nil
}

var _ Provider = (*EthProvider)(nil)
