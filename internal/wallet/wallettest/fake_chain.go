// Package wallettest provides an in-memory chain that implements
// wallet.Provider, for tests.
package wallettest

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"dapp-core/internal/contracts"
	"dapp-core/internal/wallet"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	DefaultTokenAddress = common.HexToAddress("0x0D57F96d8d9bDeE635DA05D46bafa39ea64a85b0")
	DefaultSaleAddress  = common.HexToAddress("0xB0C28560DAC0f33E1f3C4a4BDBA54a9B5F0d9dD5")
)

// FakeChain 模拟节点 + 已部署的 MyToken / TokenSale + 钱包
type FakeChain struct {
	wallet.Emitter

	mu sync.Mutex

	ChainIDValue *big.Int
	Accounts     []common.Address
	Keys         map[common.Address]*ecdsa.PrivateKey
	Approve      wallet.ApproveFunc
	RequestErr   error

	TokenAddress  common.Address
	SaleAddress   common.Address
	TokenName     string
	Symbol        string
	Decimals      uint8
	Price         *big.Int
	Owner         common.Address
	TokenBalances map[common.Address]*big.Int
	EthBalances   map[common.Address]*big.Int

	SymbolErr error
	PriceErr  error
	OwnerErr  error

	// EstimateGasFn overrides the default estimate (GasEstimate).
	EstimateGasFn func(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	GasEstimate   uint64
	// SendFn runs before a transaction is accepted; an error rejects it.
	SendFn func(ctx context.Context, tx *types.Transaction) error
	// Revert makes every mined receipt carry status 0.
	Revert bool

	Head     uint64
	Sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	nonces   map[common.Address]uint64

	Calls  map[string]int
	Closed bool
}

var _ wallet.Provider = (*FakeChain)(nil)

// NewFakeChain returns a chain on id 31337 with n funded accounts; the
// first account owns the sale.
func NewFakeChain(n int) *FakeChain {
	if n <= 0 {
		n = 1
	}
	f := &FakeChain{
		ChainIDValue:  big.NewInt(31337),
		Keys:          make(map[common.Address]*ecdsa.PrivateKey),
		TokenAddress:  DefaultTokenAddress,
		SaleAddress:   DefaultSaleAddress,
		TokenName:     "MyToken",
		Symbol:        "MTK",
		Decimals:      18,
		Price:         big.NewInt(1e15),
		TokenBalances: make(map[common.Address]*big.Int),
		EthBalances:   make(map[common.Address]*big.Int),
		GasEstimate:   100000,
		Head:          1,
		receipts:      make(map[common.Hash]*types.Receipt),
		nonces:        make(map[common.Address]uint64),
		Calls:         make(map[string]int),
	}
	for i := 0; i < n; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			panic(err)
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		f.Keys[addr] = key
		f.Accounts = append(f.Accounts, addr)
		f.EthBalances[addr] = new(big.Int).Mul(big.NewInt(10000), big.NewInt(1e18))
	}
	f.Owner = f.Accounts[0]
	f.TokenBalances[f.SaleAddress] = new(big.Int).Mul(big.NewInt(500000), big.NewInt(1e18))
	f.EthBalances[f.SaleAddress] = new(big.Int)
	return f
}

// CallCount returns how many times a contract method was read.
func (f *FakeChain) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

// SetSaleEthBalance sets the ether held by the sale contract.
func (f *FakeChain) SetSaleEthBalance(wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EthBalances[f.SaleAddress] = new(big.Int).Set(wei)
}

func (f *FakeChain) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// Mine advances the head by n blocks.
func (f *FakeChain) Mine(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Head += n
}

func (f *FakeChain) Name() string { return "fake" }

func (f *FakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.ChainIDValue), nil
}

func (f *FakeChain) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RequestErr != nil {
		return nil, f.RequestErr
	}
	if len(f.Accounts) == 0 {
		return nil, wallet.ErrNoAccounts
	}
	return append([]common.Address(nil), f.Accounts...), nil
}

func (f *FakeChain) Signer(account common.Address) (contracts.Signer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.Keys[account]
	if !ok {
		return nil, fmt.Errorf("%w %s", wallet.ErrNoKey, account.Hex())
	}
	return wallet.NewKeySigner(key, f.Approve), nil
}

func (f *FakeChain) Close() {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	f.RemoveAll()
}

func (f *FakeChain) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}

func (f *FakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var parsed abi.ABI
	switch *msg.To {
	case f.TokenAddress:
		parsed = contracts.TokenABI()
	case f.SaleAddress:
		parsed = contracts.SaleABI()
	default:
		// 没有部署合约
		return nil, nil
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, errors.New("execution reverted")
	}
	f.Calls[method.Name]++

	var out []interface{}
	switch {
	case *msg.To == f.TokenAddress && method.Name == "name":
		out = []interface{}{f.TokenName}
	case *msg.To == f.TokenAddress && method.Name == "symbol":
		if f.SymbolErr != nil {
			return nil, f.SymbolErr
		}
		out = []interface{}{f.Symbol}
	case *msg.To == f.TokenAddress && method.Name == "decimals":
		out = []interface{}{f.Decimals}
	case *msg.To == f.TokenAddress && method.Name == "balanceOf":
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		out = []interface{}{balanceOf(f.TokenBalances, args[0].(common.Address))}
	case method.Name == "owner":
		if f.OwnerErr != nil {
			return nil, f.OwnerErr
		}
		out = []interface{}{f.Owner}
	case method.Name == "tokenPriceInWei":
		if f.PriceErr != nil {
			return nil, f.PriceErr
		}
		out = []interface{}{new(big.Int).Set(f.Price)}
	case method.Name == "myToken":
		out = []interface{}{f.TokenAddress}
	default:
		return nil, fmt.Errorf("execution reverted: %s is not a view", method.Name)
	}
	return method.Outputs.Pack(out...)
}

func (f *FakeChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	fn := f.EstimateGasFn
	est := f.GasEstimate
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, msg)
	}
	return est, nil
}

func (f *FakeChain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return balanceOf(f.EthBalances, account), nil
}

func (f *FakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *FakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1e9), nil
}

// SendTransaction accepts tx, mines it into the next block and applies the
// sale's ether movements.
func (f *FakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	fn := f.SendFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, tx); err != nil {
			return err
		}
	}

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, tx)
	f.nonces[from]++
	f.Head++

	status := types.ReceiptStatusSuccessful
	if f.Revert {
		status = types.ReceiptStatusFailed
	} else if tx.To() != nil && *tx.To() == f.SaleAddress {
		f.applySale(tx)
	}
	f.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(f.Head),
		GasUsed:     tx.Gas(),
	}
	return nil
}

func (f *FakeChain) applySale(tx *types.Transaction) {
	sale := balanceOf(f.EthBalances, f.SaleAddress)
	if len(tx.Data()) < 4 {
		return
	}
	saleABI := contracts.SaleABI()
	method, err := saleABI.MethodById(tx.Data()[:4])
	if err != nil {
		return
	}
	switch method.Name {
	case "buyTokens":
		f.EthBalances[f.SaleAddress] = sale.Add(sale, tx.Value())
	case "withdrawEth":
		args, err := method.Inputs.Unpack(tx.Data()[4:])
		if err != nil {
			return
		}
		f.EthBalances[f.SaleAddress] = sale.Sub(sale, args[0].(*big.Int))
	}
}

func (f *FakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *FakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Head, nil
}

func balanceOf(m map[common.Address]*big.Int, addr common.Address) *big.Int {
	if b, ok := m[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Connector is a wallet.Connector returning a fixed provider or error.
type Connector struct {
	ConnectorName string
	Provider      wallet.Provider
	Err           error
	// Hook runs at the start of Connect; tests use it to block.
	Hook func(ctx context.Context) error
	// NotAvailable hides the connector from the selector.
	NotAvailable bool

	mu    sync.Mutex
	calls int
}

func (c *Connector) Name() string {
	if c.ConnectorName == "" {
		return "fake"
	}
	return c.ConnectorName
}

func (c *Connector) Available() bool { return !c.NotAvailable }

func (c *Connector) Connect(ctx context.Context) (wallet.Provider, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.Hook != nil {
		if err := c.Hook(ctx); err != nil {
			return nil, err
		}
	}
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Provider, nil
}

func (c *Connector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
