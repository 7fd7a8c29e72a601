package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dapp-core/internal/contracts"
	"dapp-core/internal/model"
	"dapp-core/internal/service/notify"
	"dapp-core/internal/service/session"
	"dapp-core/internal/wallet"
	"dapp-core/internal/wallet/wallettest"
	"dapp-core/pkg/cache"
	"dapp-core/pkg/config"
	"dapp-core/pkg/errno"
	"dapp-core/pkg/ethunit"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int32
}

func (r *countingRefresher) Refresh(ctx context.Context) (*model.Projection, error) {
	r.calls.Add(1)
	return &model.Projection{}, nil
}

type harness struct {
	chain     *wallettest.FakeChain
	sessions  *session.Manager
	hub       *notify.Hub
	txs       *TransactionService
	refresher *countingRefresher
}

func newHarness(t *testing.T, accounts int) *harness {
	t.Helper()
	chain := wallettest.NewFakeChain(accounts)
	chain.SetSaleEthBalance(ether("10"))
	hub := notify.NewHub(nil)
	mgr := session.NewManager(session.Options{
		Injected: &wallettest.Connector{Provider: chain},
		Addresses: contracts.Addresses{
			Token: chain.TokenAddress,
			Sale:  chain.SaleAddress,
		},
		Networks:            config.Default().Network,
		ReceiptPollInterval: time.Millisecond,
		Publisher:           hub,
	})
	refresher := &countingRefresher{}
	txs := NewTransactionService(mgr, refresher, hub, TxOptions{})
	mgr.OnReset(txs.Reset)
	mgr.OnBindingChanged(txs.DropStale)
	t.Cleanup(txs.Close)

	return &harness{chain: chain, sessions: mgr, hub: hub, txs: txs, refresher: refresher}
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, h.sessions.Connect(context.Background()))
}

func ether(s string) *big.Int {
	wei, err := ethunit.ParseEther(s)
	if err != nil {
		panic(err)
	}
	return wei
}

func waitFlight(t *testing.T, f *Flight) {
	t.Helper()
	select {
	case <-f.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("flight did not finish")
	}
}

// blockEstimate 让估算阻塞，直到 release 被关闭
func blockEstimate(chain *wallettest.FakeChain) (entered chan struct{}, release chan struct{}) {
	entered = make(chan struct{}, 4)
	release = make(chan struct{})
	chain.EstimateGasFn = func(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
		entered <- struct{}{}
		<-release
		return 100000, nil
	}
	return entered, release
}

func TestSubmitPreconditions(t *testing.T) {
	h := newHarness(t, 2)

	// 未连接优先于金额检查
	_, err := h.txs.Submit(context.Background(), model.TxKindBuy, "abc")
	assert.ErrorIs(t, err, errno.ErrNotConnected)

	h.connect(t)

	invalid := []string{"", "0", "-1", "abc", "1e18", "0.0000000000000000001", "1.2.3"}
	for _, amount := range invalid {
		_, err := h.txs.Submit(context.Background(), model.TxKindBuy, amount)
		assert.ErrorIs(t, err, errno.ErrInvalidAmount, "amount %q", amount)
	}

	_, err = h.txs.Submit(context.Background(), model.TxKind("swap"), "1")
	assert.ErrorIs(t, err, errno.ErrUnknownKind)

	// 被拒绝的请求没有副作用
	_, ok := h.txs.Outcome(model.TxKindBuy)
	assert.False(t, ok)
	assert.Empty(t, h.txs.Input(model.TxKindBuy))
	assert.Equal(t, 0, h.chain.SentCount())
}

func TestAcceptedRequestStartsPreparing(t *testing.T) {
	h := newHarness(t, 1)
	entered, release := blockEstimate(h.chain)
	defer close(release)
	h.connect(t)

	snaps, cancel := h.hub.Subscribe(16)
	defer cancel()

	f, err := h.txs.Submit(context.Background(), model.TxKindBuy, "0.1")
	require.NoError(t, err)
	<-entered

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-snaps:
			out, ok := s.Transactions[model.TxKindBuy]
			if !ok {
				continue
			}
			// 第一条发布就是 Preparing，Idle 不对外可见
			assert.Equal(t, model.TxStatePreparing, out.State)
			assert.Equal(t, f.Request().ID, out.RequestID)
			assert.Equal(t, "Preparing transaction...", out.Message)
			return
		case <-deadline:
			t.Fatal("no transaction outcome published")
		}
	}
}

func TestOwnerGating(t *testing.T) {
	h := newHarness(t, 2)
	h.connect(t)

	f, err := h.txs.Submit(context.Background(), model.TxKindWithdraw, "1")
	require.NoError(t, err)
	waitFlight(t, f)
	require.NoError(t, f.Err())

	require.NoError(t, h.sessions.OnAccountsChanged(context.Background(), []common.Address{h.chain.Accounts[1]}))

	// 非 owner: 授权检查优先于金额检查
	_, err = h.txs.Submit(context.Background(), model.TxKindWithdraw, "not-a-number")
	assert.ErrorIs(t, err, errno.ErrNotAuthorized)
	assert.Equal(t, 1, h.chain.SentCount())

	// buy 不受影响
	f, err = h.txs.Submit(context.Background(), model.TxKindBuy, "0.1")
	require.NoError(t, err)
	waitFlight(t, f)
	assert.NoError(t, f.Err())
}

func TestPendingAccountSwitchBlocksSubmit(t *testing.T) {
	h := newHarness(t, 2)
	h.connect(t)

	h.chain.SymbolErr = errors.New("execution reverted")
	err := h.sessions.OnAccountsChanged(context.Background(), []common.Address{h.chain.Accounts[1]})
	require.ErrorIs(t, err, errno.ErrAccountSwitchFailed)

	_, err = h.txs.Submit(context.Background(), model.TxKindBuy, "0.1")
	assert.ErrorIs(t, err, errno.ErrNotConnected)
}

func TestBuyAmountFidelity(t *testing.T) {
	tests := []struct {
		amount string
		wei    string
	}{
		{"0.1", "100000000000000000"},
		{"0.3", "300000000000000000"},
		{"1", "1000000000000000000"},
		{"0.000000000000000001", "1"},
		{"1.123456789012345678", "1123456789012345678"},
		{"123.456", "123456000000000000000"},
	}

	h := newHarness(t, 1)
	h.connect(t)

	for i, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			f, err := h.txs.Submit(context.Background(), model.TxKindBuy, tt.amount)
			require.NoError(t, err)
			waitFlight(t, f)
			require.NoError(t, f.Err())

			want, _ := new(big.Int).SetString(tt.wei, 10)
			require.Len(t, h.chain.Sent, i+1)
			assert.Equal(t, 0, want.Cmp(h.chain.Sent[i].Value()))
			assert.Equal(t, tt.wei, f.Request().AmountWei)
		})
	}
}

func TestGasBuffer(t *testing.T) {
	h := newHarness(t, 1)
	h.chain.GasEstimate = 123457
	h.connect(t)

	f, err := h.txs.Submit(context.Background(), model.TxKindBuy, "0.1")
	require.NoError(t, err)
	waitFlight(t, f)
	require.NoError(t, f.Err())

	req := f.Request()
	assert.Equal(t, uint64(123457), req.GasEstimate)
	assert.Equal(t, uint64(135802), req.GasLimit)
	assert.Equal(t, uint64(135802), h.chain.Sent[0].Gas())
	assert.Equal(t, h.chain.Sent[0].Hash().Hex(), req.TxHash)
}

func TestWithdrawBalanceGuard(t *testing.T) {
	h := newHarness(t, 1)
	h.chain.SetSaleEthBalance(ether("0.5"))
	var estimates atomic.Int32
	h.chain.EstimateGasFn = func(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
		estimates.Add(1)
		return 50000, nil
	}
	h.connect(t)

	f, err := h.txs.Submit(context.Background(), model.TxKindWithdraw, "1")
	require.NoError(t, err)
	waitFlight(t, f)

	assert.ErrorIs(t, f.Err(), errno.ErrInsufficientContractBalance)
	assert.Equal(t, int32(0), estimates.Load())
	assert.Equal(t, 0, h.chain.SentCount())
	o, ok := h.txs.Outcome(model.TxKindWithdraw)
	require.True(t, ok)
	assert.Equal(t, "Contract does not have enough ETH to withdraw", o.Message)
	assert.Equal(t, model.MessageError, o.Type)
	// 失败保留输入
	assert.Equal(t, "1", h.txs.Input(model.TxKindWithdraw))

	f, err = h.txs.Submit(context.Background(), model.TxKindWithdraw, "0.5")
	require.NoError(t, err)
	waitFlight(t, f)
	require.NoError(t, f.Err())
	assert.Equal(t, int32(1), estimates.Load())
	args, err := contracts.SaleABI().Methods["withdrawEth"].Inputs.Unpack(h.chain.Sent[0].Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, 0, ether("0.5").Cmp(args[0].(*big.Int)))

	bal, err := h.chain.BalanceAt(context.Background(), h.chain.SaleAddress, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Sign())
}

// 估算期间网络切换：结果必须被丢弃，不广播交易也不更新状态
func TestStaleGenerationDiscardedDuringEstimation(t *testing.T) {
	h := newHarness(t, 1)
	entered, release := blockEstimate(h.chain)
	h.connect(t)

	f, err := h.txs.Submit(context.Background(), model.TxKindBuy, "0.1")
	require.NoError(t, err)
	<-entered
	assert.Equal(t, model.TxStateEstimatingGas, f.Request().State)

	h.chain.EmitChainChanged("0x1")
	assert.Equal(t, uint64(1), h.sessions.Generation())

	close(release)
	waitFlight(t, f)

	assert.ErrorIs(t, f.Err(), ErrDiscarded)
	assert.Equal(t, model.TxStateEstimatingGas, f.Request().State)
	assert.Equal(t, 0, h.chain.SentCount())
	_, ok := h.txs.Outcome(model.TxKindBuy)
	assert.False(t, ok)
	assert.Empty(t, h.hub.Snapshot().Transactions)
	assert.Equal(t, int32(0), h.refresher.calls.Load())
}

// 估算期间切换账户：旧账户的绑定不能再签名广播
func TestAccountSwitchDiscardsInFlight(t *testing.T) {
	h := newHarness(t, 2)
	entered, release := blockEstimate(h.chain)
	h.connect(t)
	before := h.sessions.Current().Binding

	f, err := h.txs.Submit(context.Background(), model.TxKindWithdraw, "1")
	require.NoError(t, err)
	<-entered

	require.NoError(t, h.sessions.OnAccountsChanged(context.Background(), []common.Address{h.chain.Accounts[1]}))
	require.NotSame(t, before, h.sessions.Current().Binding)
	assert.Equal(t, uint64(0), h.sessions.Generation())

	close(release)
	waitFlight(t, f)

	assert.ErrorIs(t, f.Err(), ErrDiscarded)
	assert.Equal(t, 0, h.chain.SentCount())
	_, ok := h.txs.Outcome(model.TxKindWithdraw)
	assert.False(t, ok)
	assert.Nil(t, h.txs.Status(model.TxKindWithdraw).Active)

	// 新账户的交易用新绑定签名
	h.chain.EstimateGasFn = nil
	buy, err := h.txs.Submit(context.Background(), model.TxKindBuy, "0.1")
	require.NoError(t, err)
	waitFlight(t, buy)
	require.NoError(t, buy.Err())
	require.Equal(t, 1, h.chain.SentCount())
	from, err := types.Sender(types.LatestSignerForChainID(h.chain.ChainIDValue), h.chain.Sent[0])
	require.NoError(t, err)
	assert.Equal(t, h.chain.Accounts[1], from)
}

func TestDisconnectDiscardsInFlight(t *testing.T) {
	h := newHarness(t, 1)
	entered, release := blockEstimate(h.chain)
	h.connect(t)

	f, err := h.txs.Submit(context.Background(), model.TxKindBuy, "0.1")
	require.NoError(t, err)
	<-entered

	h.sessions.Disconnect(context.Background())
	close(release)
	waitFlight(t, f)

	assert.ErrorIs(t, f.Err(), ErrDiscarded)
	assert.Equal(t, 0, h.chain.SentCount())
	assert.Equal(t, int32(0), h.refresher.calls.Load())
}

func TestSingleInFlightPerKind(t *testing.T) {
	h := newHarness(t, 1)
	entered, release := blockEstimate(h.chain)
	h.connect(t)

	buy, err := h.txs.Submit(context.Background(), model.TxKindBuy, "0.1")
	require.NoError(t, err)
	<-entered

	_, err = h.txs.Submit(context.Background(), model.TxKindBuy, "0.2")
	assert.ErrorIs(t, err, errno.ErrAlreadyInFlight)
	// 第二次提交没有覆盖输入
	assert.Equal(t, "0.1", h.txs.Input(model.TxKindBuy))

	// 不同种类可以并行
	withdraw, err := h.txs.Submit(context.Background(), model.TxKindWithdraw, "1")
	require.NoError(t, err)
	<-entered

	status := h.txs.Status(model.TxKindBuy)
	require.NotNil(t, status.Active)
	assert.Equal(t, buy.Request().ID, status.Active.ID)

	close(release)
	waitFlight(t, buy)
	waitFlight(t, withdraw)
	require.NoError(t, buy.Err())
	require.NoError(t, withdraw.Err())
	assert.Equal(t, 2, h.chain.SentCount())

	// 完成后可以再次提交
	h.chain.EstimateGasFn = nil
	again, err := h.txs.Submit(context.Background(), model.TxKindBuy, "0.2")
	require.NoError(t, err)
	waitFlight(t, again)
	assert.NoError(t, again.Err())
}

func TestConcurrentSubmitsAdmitOne(t *testing.T) {
	h := newHarness(t, 1)
	_, release := blockEstimate(h.chain)
	h.connect(t)

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		rejected atomic.Int32
		flights  = make(chan *Flight, 10)
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := h.txs.Submit(context.Background(), model.TxKindBuy, "0.1")
			if err != nil {
				assert.ErrorIs(t, err, errno.ErrAlreadyInFlight)
				rejected.Add(1)
				return
			}
			accepted.Add(1)
			flights <- f
		}()
	}
	wg.Wait()
	close(release)

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(9), rejected.Load())
	waitFlight(t, <-flights)
	assert.Equal(t, 1, h.chain.SentCount())
}

// 连接 + 购买的完整流程：状态顺序正确，确认后恰好刷新一次
func TestEndToEndBuy(t *testing.T) {
	chain := wallettest.NewFakeChain(1)
	hub := notify.NewHub(nil)
	mgr := session.NewManager(session.Options{
		Injected:            &wallettest.Connector{Provider: chain},
		Addresses:           contracts.Addresses{Token: chain.TokenAddress, Sale: chain.SaleAddress},
		Networks:            config.Default().Network,
		ReceiptPollInterval: time.Millisecond,
		Publisher:           hub,
	})
	projection := NewProjectionService(mgr, mgr, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, hub)
	txs := NewTransactionService(mgr, projection, hub, TxOptions{})
	defer txs.Close()
	mgr.OnReset(txs.Reset)
	mgr.OnBindingChanged(txs.DropStale)
	mgr.OnReset(projection.Reset)

	snaps, cancel := hub.Subscribe(64)
	defer cancel()

	require.NoError(t, mgr.Connect(context.Background()))
	txs.SetInput(model.TxKindBuy, "0.05")

	f, err := txs.Submit(context.Background(), model.TxKindBuy, "")
	require.NoError(t, err)
	waitFlight(t, f)
	require.NoError(t, f.Err())

	assert.Equal(t, 1, projection.Refreshes())
	assert.Empty(t, txs.Input(model.TxKindBuy))

	o, ok := txs.Outcome(model.TxKindBuy)
	require.True(t, ok)
	assert.Equal(t, model.TxStateConfirmed, o.State)
	assert.Equal(t, model.MessageSuccess, o.Type)
	assert.Equal(t, "Successfully bought tokens! Tx: "+model.ShortHash(f.Request().TxHash), o.Message)

	var (
		sessionStates []model.SessionState
		txStates      []model.TxState
	)
	deadline := time.After(5 * time.Second)
collect:
	for {
		select {
		case s := <-snaps:
			if n := len(sessionStates); n == 0 || sessionStates[n-1] != s.Session.State {
				sessionStates = append(sessionStates, s.Session.State)
			}
			if out, ok := s.Transactions[model.TxKindBuy]; ok {
				if n := len(txStates); n == 0 || txStates[n-1] != out.State {
					txStates = append(txStates, out.State)
				}
			}
			if s.Projection != nil {
				break collect
			}
		case <-deadline:
			t.Fatal("no projection published")
		}
	}

	assert.Equal(t, []model.SessionState{
		model.SessionDisconnected,
		model.SessionConnecting,
		model.SessionConnected,
	}, sessionStates)
	assert.Equal(t, []model.TxState{
		model.TxStatePreparing,
		model.TxStateEstimatingGas,
		model.TxStateAwaitingConfirmation,
		model.TxStateSubmitted,
		model.TxStateConfirmed,
	}, txStates)

	p, ok := projection.Get()
	require.True(t, ok)
	assert.Equal(t, "0.0500", p.SaleEthBalance)
	assert.Equal(t, "MTK", p.TokenSymbol)
	assert.Equal(t, "0.001000", p.TokenPrice)
}

type revertDataError struct {
	data string
}

func (e *revertDataError) Error() string          { return "execution reverted" }
func (e *revertDataError) ErrorCode() int         { return 3 }
func (e *revertDataError) ErrorData() interface{} { return e.data }

func TestFailureClassification(t *testing.T) {
	// Error(string) "Not enough tokens"
	revertData := "0x08c379a0" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000011" +
		"4e6f7420656e6f75676820746f6b656e73000000000000000000000000000000"

	tests := []struct {
		name    string
		kind    model.TxKind
		setup   func(c *wallettest.FakeChain)
		want    errno.Errno
		message string
	}{
		{
			name: "估算失败",
			kind: model.TxKindBuy,
			setup: func(c *wallettest.FakeChain) {
				c.EstimateGasFn = func(context.Context, ethereum.CallMsg) (uint64, error) {
					return 0, errors.New("execution reverted: sale closed")
				}
			},
			want:    errno.ErrGasEstimationFailed,
			message: "Gas estimation failed. Please try again.",
		},
		{
			name: "用户拒绝签名",
			kind: model.TxKindBuy,
			setup: func(c *wallettest.FakeChain) {
				c.Approve = func(context.Context, common.Address, *types.Transaction) error {
					return wallet.ErrUserRejected
				}
			},
			want:    errno.ErrUserRejected,
			message: "Transaction cancelled by user",
		},
		{
			name: "余额不足",
			kind: model.TxKindBuy,
			setup: func(c *wallettest.FakeChain) {
				c.SendFn = func(context.Context, *types.Transaction) error {
					return errors.New("insufficient funds for gas * price + value")
				}
			},
			want:    errno.ErrInsufficientFunds,
			message: "Insufficient funds for transaction",
		},
		{
			name: "广播时 revert 带数据",
			kind: model.TxKindBuy,
			setup: func(c *wallettest.FakeChain) {
				c.SendFn = func(context.Context, *types.Transaction) error {
					return &revertDataError{data: revertData}
				}
			},
			want:    errno.ErrTransactionReverted,
			message: "Transaction failed: Not enough tokens",
		},
		{
			name:    "链上 revert",
			kind:    model.TxKindWithdraw,
			setup:   func(c *wallettest.FakeChain) { c.Revert = true },
			want:    errno.ErrTransactionReverted,
			message: "Withdrawal failed: reverted on chain",
		},
		{
			name: "未知错误",
			kind: model.TxKindWithdraw,
			setup: func(c *wallettest.FakeChain) {
				c.SendFn = func(context.Context, *types.Transaction) error {
					return errors.New("connection reset by peer")
				}
			},
			want:    errno.ErrUnknownFailure,
			message: "Failed to withdraw ETH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 1)
			tt.setup(h.chain)
			h.connect(t)

			f, err := h.txs.Submit(context.Background(), tt.kind, "0.1")
			require.NoError(t, err)
			waitFlight(t, f)

			assert.ErrorIs(t, f.Err(), tt.want)
			assert.Equal(t, model.TxStateFailed, f.Request().State)
			o, ok := h.txs.Outcome(tt.kind)
			require.True(t, ok)
			assert.Equal(t, tt.message, o.Message)
			assert.Equal(t, tt.want.Code, o.Code)
			assert.Equal(t, "0.1", h.txs.Input(tt.kind))
			assert.Equal(t, int32(0), h.refresher.calls.Load())
		})
	}
}

func TestClassifyTxError(t *testing.T) {
	tests := []struct {
		name  string
		kind  model.TxKind
		stage model.TxState
		err   error
		want  errno.Errno
	}{
		{"already classified", model.TxKindWithdraw, model.TxStatePreparing, errno.ErrInsufficientContractBalance, errno.ErrInsufficientContractBalance},
		{"rpc 4001", model.TxKindBuy, model.TxStateAwaitingConfirmation, wallet.ErrUserRejected, errno.ErrUserRejected},
		{"owner revert at estimation", model.TxKindWithdraw, model.TxStateEstimatingGas, errors.New("execution reverted: Ownable: caller is not the owner"), errno.ErrNotAuthorized},
		{"receipt status 0", model.TxKindBuy, model.TxStateSubmitted, contracts.ErrReverted, errno.ErrTransactionReverted},
		{"insufficient funds at estimation", model.TxKindBuy, model.TxStateEstimatingGas, errors.New("insufficient funds for transfer"), errno.ErrInsufficientFunds},
		{"context cancelled", model.TxKindBuy, model.TxStateSubmitted, context.Canceled, errno.ErrUnknownFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTxError(tt.kind, tt.stage, tt.err)
			assert.Equal(t, tt.want.Code, got.Code)
		})
	}
}

func TestSuccessMessageAutoClears(t *testing.T) {
	h := newHarness(t, 1)
	h.txs.opts.SuccessMessageTTL = 20 * time.Millisecond
	h.connect(t)

	f, err := h.txs.Submit(context.Background(), model.TxKindBuy, "0.1")
	require.NoError(t, err)
	waitFlight(t, f)
	require.NoError(t, f.Err())

	_, ok := h.txs.Outcome(model.TxKindBuy)
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		_, ok := h.txs.Outcome(model.TxKindBuy)
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), h.refresher.calls.Load())
}

func TestErrorMessagePersistsUntilNextSubmit(t *testing.T) {
	h := newHarness(t, 1)
	h.txs.opts.SuccessMessageTTL = 10 * time.Millisecond
	h.chain.SendFn = func(context.Context, *types.Transaction) error {
		return errors.New("insufficient funds")
	}
	h.connect(t)

	f, err := h.txs.Submit(context.Background(), model.TxKindBuy, "0.1")
	require.NoError(t, err)
	waitFlight(t, f)

	time.Sleep(30 * time.Millisecond)
	o, ok := h.txs.Outcome(model.TxKindBuy)
	require.True(t, ok)
	assert.Equal(t, model.MessageError, o.Type)

	h.chain.SendFn = nil
	f, err = h.txs.Submit(context.Background(), model.TxKindBuy, "")
	require.NoError(t, err)
	o, ok = h.txs.Outcome(model.TxKindBuy)
	require.True(t, ok)
	assert.NotEqual(t, model.MessageError, o.Type)
	waitFlight(t, f)
	assert.NoError(t, f.Err())
}
