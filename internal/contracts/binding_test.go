package contracts_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"dapp-core/internal/contracts"
	"dapp-core/internal/wallet/wallettest"
	"dapp-core/pkg/errno"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindFake(t *testing.T, chain *wallettest.FakeChain) *contracts.Binding {
	t.Helper()
	signer, err := chain.Signer(chain.Accounts[0])
	require.NoError(t, err)
	b, err := contracts.Bind(context.Background(), chain, signer, chain.ChainIDValue, contracts.Addresses{
		Token: chain.TokenAddress,
		Sale:  chain.SaleAddress,
	})
	require.NoError(t, err)
	b.PollInterval = time.Millisecond
	return b
}

func TestBind(t *testing.T) {
	chain := wallettest.NewFakeChain(1)
	b := bindFake(t, chain)

	ctx := context.Background()
	symbol, err := b.Token.Symbol(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MTK", symbol)

	decimals, err := b.Token.Decimals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), decimals)

	price, err := b.Sale.TokenPriceInWei(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1e15), price)

	owner, err := b.Sale.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, chain.Accounts[0], owner)

	bal, err := b.Token.BalanceOf(ctx, chain.SaleAddress)
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Cmp(new(big.Int).Mul(big.NewInt(500000), big.NewInt(1e18))))
}

// 任意一个探测失败都不能返回半绑定的结果
func TestBindIsAtomic(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *wallettest.FakeChain)
	}{
		{"symbol 调用失败", func(c *wallettest.FakeChain) { c.SymbolErr = errors.New("execution reverted") }},
		{"price 调用失败", func(c *wallettest.FakeChain) { c.PriceErr = errors.New("execution reverted") }},
		{"token 地址无代码", func(c *wallettest.FakeChain) { c.TokenAddress = common.HexToAddress("0x01") }},
		{"sale 地址无代码", func(c *wallettest.FakeChain) { c.SaleAddress = common.HexToAddress("0x02") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := wallettest.NewFakeChain(1)
			tt.setup(chain)
			signer, err := chain.Signer(chain.Accounts[0])
			require.NoError(t, err)

			b, err := contracts.Bind(context.Background(), chain, signer, chain.ChainIDValue, contracts.Addresses{
				Token: wallettest.DefaultTokenAddress,
				Sale:  wallettest.DefaultSaleAddress,
			})
			assert.Nil(t, b)
			assert.ErrorIs(t, err, errno.ErrContractInitFailed)
		})
	}
}

func TestTransactAndWait(t *testing.T) {
	chain := wallettest.NewFakeChain(1)
	b := bindFake(t, chain)
	ctx := context.Background()

	value := big.NewInt(5e16)
	call, err := b.Sale.BuyTokensCall(value)
	require.NoError(t, err)

	est, err := b.EstimateGas(ctx, call)
	require.NoError(t, err)
	assert.Equal(t, uint64(100000), est)

	tx, err := b.Transact(ctx, call, 110000)
	require.NoError(t, err)
	assert.Equal(t, uint64(110000), tx.Gas())
	assert.Equal(t, value, tx.Value())
	assert.Equal(t, uint64(0), tx.Nonce())

	receipt, err := b.WaitConfirmed(ctx, tx.Hash(), 1)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), receipt.TxHash)

	saleBal, err := b.Sale.EthBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, value, saleBal)

	// 第二笔交易 nonce 递增
	tx2, err := b.Transact(ctx, call, 110000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tx2.Nonce())
}

func TestWaitConfirmedBlocks(t *testing.T) {
	chain := wallettest.NewFakeChain(1)
	b := bindFake(t, chain)

	call, err := b.Sale.WithdrawEthCall(big.NewInt(1))
	require.NoError(t, err)
	tx, err := b.Transact(context.Background(), call, 50000)
	require.NoError(t, err)

	// 需要 3 个确认，只出了 1 个块时应等待直到超时
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = b.WaitConfirmed(ctx, tx.Hash(), 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	chain.Mine(2)
	_, err = b.WaitConfirmed(context.Background(), tx.Hash(), 3)
	assert.NoError(t, err)
}

func TestWaitConfirmedReverted(t *testing.T) {
	chain := wallettest.NewFakeChain(1)
	chain.Revert = true
	b := bindFake(t, chain)

	call, err := b.Sale.WithdrawEthCall(big.NewInt(1))
	require.NoError(t, err)
	tx, err := b.Transact(context.Background(), call, 50000)
	require.NoError(t, err)

	receipt, err := b.WaitConfirmed(context.Background(), tx.Hash(), 1)
	assert.ErrorIs(t, err, contracts.ErrReverted)
	require.NotNil(t, receipt)
	assert.Equal(t, uint64(0), receipt.Status)
}
