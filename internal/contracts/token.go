package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token is a typed handle to the MyToken ERC-20 contract.
type Token struct {
	c *boundContract
}

func NewToken(address common.Address, backend Backend, from common.Address) *Token {
	return &Token{c: &boundContract{address: address, abi: TokenABI(), backend: backend, from: from}}
}

func (t *Token) Address() common.Address {
	return t.c.address
}

func (t *Token) Name(ctx context.Context) (string, error) {
	res, err := t.c.call(ctx, "name")
	if err != nil {
		return "", err
	}
	return unpackOne[string](res, "name")
}

func (t *Token) Symbol(ctx context.Context) (string, error) {
	res, err := t.c.call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	return unpackOne[string](res, "symbol")
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	res, err := t.c.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	return unpackOne[uint8](res, "decimals")
}

func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	res, err := t.c.call(ctx, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return unpackOne[*big.Int](res, "balanceOf")
}

// TransferCall prepares transfer(recipient, amount).
func (t *Token) TransferCall(recipient common.Address, amount *big.Int) (Call, error) {
	return t.c.prepare("transfer", nil, recipient, amount)
}
