package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"dapp-core/pkg/errno"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrNoContractCode = errors.New("no contract code at address")
	// ErrReverted is returned by WaitConfirmed when the receipt status is 0.
	ErrReverted = errors.New("transaction reverted on chain")
)

// Addresses 预先配置的合约地址
type Addresses struct {
	Token common.Address
	Sale  common.Address
}

// Binding is the token + sale pair bound to one signer. It is only valid for
// the signer that created it; an account switch builds a new Binding.
type Binding struct {
	Token   *Token
	Sale    *Sale
	signer  Signer
	backend Backend
	chainID *big.Int

	// 等待回执的轮询间隔
	PollInterval time.Duration
}

// Binder creates a Binding. Bind is the production implementation; tests
// substitute their own.
type Binder func(ctx context.Context, backend Backend, signer Signer, chainID *big.Int, addrs Addresses) (*Binding, error)

var _ Binder = Bind

// Bind constructs both handles and probes token.symbol() and
// sale.tokenPriceInWei(). Any failure returns ContractInitFailed and no
// Binding, so callers never see a half-bound pair.
func Bind(ctx context.Context, backend Backend, signer Signer, chainID *big.Int, addrs Addresses) (*Binding, error) {
	if signer == nil {
		return nil, errno.ErrContractInitFailed.Wrap(errors.New("no signer"))
	}
	from := signer.Address()

	token := NewToken(addrs.Token, backend, from)
	sale := NewSale(addrs.Sale, backend, from)

	if _, err := token.Symbol(ctx); err != nil {
		return nil, errno.ErrContractInitFailed.Wrap(fmt.Errorf("token %s: %w", addrs.Token.Hex(), err))
	}
	if _, err := sale.TokenPriceInWei(ctx); err != nil {
		return nil, errno.ErrContractInitFailed.Wrap(fmt.Errorf("sale %s: %w", addrs.Sale.Hex(), err))
	}

	return &Binding{
		Token:        token,
		Sale:         sale,
		signer:       signer,
		backend:      backend,
		chainID:      new(big.Int).Set(chainID),
		PollInterval: time.Second,
	}, nil
}

func (b *Binding) Signer() Signer {
	return b.signer
}

func (b *Binding) Backend() Backend {
	return b.backend
}

func (b *Binding) ChainID() *big.Int {
	return new(big.Int).Set(b.chainID)
}

// EstimateGas estimates the call as sent from the bound signer.
func (b *Binding) EstimateGas(ctx context.Context, call Call) (uint64, error) {
	return b.backend.EstimateGas(ctx, call.msg(b.signer.Address()))
}

// Transact signs and broadcasts call with an explicit gas limit and returns
// as soon as the node accepts it.
func (b *Binding) Transact(ctx context.Context, call Call, gasLimit uint64) (*types.Transaction, error) {
	from := b.signer.Address()

	nonce, err := b.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := b.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	to := call.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    call.Value,
		Data:     call.Data,
	})

	signed, err := b.signer.SignTx(ctx, tx, b.chainID)
	if err != nil {
		return nil, err
	}
	if err := b.backend.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}

// WaitConfirmed blocks until the transaction has the given number of
// confirming blocks (inclusion counts as the first). A receipt with status
// 0 returns ErrReverted together with the receipt.
func (b *Binding) WaitConfirmed(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error) {
	if confirmations == 0 {
		confirmations = 1
	}
	interval := b.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var receipt *types.Receipt
	for {
		if receipt == nil {
			r, err := b.backend.TransactionReceipt(ctx, hash)
			switch {
			case err == nil:
				receipt = r
				if receipt.Status == types.ReceiptStatusFailed {
					return receipt, ErrReverted
				}
			case errors.Is(err, ethereum.NotFound):
				// 还在内存池
			default:
				return nil, fmt.Errorf("get receipt: %w", err)
			}
		}

		if receipt != nil {
			head, err := b.backend.BlockNumber(ctx)
			if err != nil {
				return nil, fmt.Errorf("get block number: %w", err)
			}
			included := receipt.BlockNumber.Uint64()
			if head >= included && head-included+1 >= confirmations {
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			return receipt, ctx.Err()
		case <-ticker.C:
		}
	}
}
