package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Sale is a typed handle to the TokenSale contract.
type Sale struct {
	c *boundContract
}

func NewSale(address common.Address, backend Backend, from common.Address) *Sale {
	return &Sale{c: &boundContract{address: address, abi: SaleABI(), backend: backend, from: from}}
}

func (s *Sale) Address() common.Address {
	return s.c.address
}

func (s *Sale) TokenPriceInWei(ctx context.Context) (*big.Int, error) {
	res, err := s.c.call(ctx, "tokenPriceInWei")
	if err != nil {
		return nil, err
	}
	return unpackOne[*big.Int](res, "tokenPriceInWei")
}

func (s *Sale) Owner(ctx context.Context) (common.Address, error) {
	res, err := s.c.call(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	return unpackOne[common.Address](res, "owner")
}

// EthBalance 合约持有的 ETH (可提现余额)
func (s *Sale) EthBalance(ctx context.Context) (*big.Int, error) {
	return s.c.backend.BalanceAt(ctx, s.c.address, nil)
}

// BuyTokensCall prepares the payable buyTokens() with value wei attached.
func (s *Sale) BuyTokensCall(value *big.Int) (Call, error) {
	return s.c.prepare("buyTokens", value)
}

// WithdrawEthCall prepares withdrawEth(amount).
func (s *Sale) WithdrawEthCall(amount *big.Int) (Call, error) {
	return s.c.prepare("withdrawEth", nil, amount)
}
