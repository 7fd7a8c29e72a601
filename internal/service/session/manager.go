// Package session owns the single wallet session of the client: which
// provider is connected, which account signs, on which network, and the
// contract binding built for that signer.
package session

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"dapp-core/internal/contracts"
	"dapp-core/internal/model"
	"dapp-core/internal/wallet"
	"dapp-core/pkg/config"
	"dapp-core/pkg/errno"
	"dapp-core/pkg/logger"
	"dapp-core/pkg/monitor"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

var errNoAccountsFound = errno.ErrNoProviderFound.WithMessage("No accounts found. Please unlock your wallet.")

// Publisher receives every session change.
type Publisher interface {
	PublishSession(info model.SessionInfo)
}

// View is a read-only copy of the session. Binding is nil unless the session
// is connected and no account switch is pending.
type View struct {
	Info       model.SessionInfo
	Binding    *contracts.Binding
	Provider   wallet.Provider
	Account    common.Address
	Generation uint64
}

// Ready reports whether transactions may use this view.
func (v View) Ready() bool {
	return v.Info.State == model.SessionConnected && v.Binding != nil && v.Info.PendingAccount == ""
}

type Options struct {
	// Selector 多钱包选择器，可为 nil
	Selector wallet.CachingConnector
	// Injected 注入钱包，nil 视为 wallet.Unavailable
	Injected  wallet.Connector
	Binder    contracts.Binder
	Addresses contracts.Addresses
	Networks  config.NetworkConfig

	ConnectionTimeout time.Duration
	AutoReconnect     bool
	// ReceiptPollInterval is copied onto every Binding.
	ReceiptPollInterval time.Duration

	Publisher Publisher
}

type Manager struct {
	opts Options
	log  *zap.Logger

	mu         sync.Mutex
	state      model.SessionState
	connecting bool
	provider   wallet.Provider
	signer     contracts.Signer
	account    common.Address
	pending    common.Address
	chainID    *big.Int
	isOwner    bool
	binding    *contracts.Binding
	sub        wallet.Subscription
	generation uint64
	// teardowns 每次清空会话 +1，用来识别连接过程中发生的断开
	teardowns uint64
	// reconnect 连接过程中网络变化，当前连接结束后重新连接
	reconnect bool

	resetHooks   []func(generation uint64)
	bindingHooks []func()
}

func NewManager(opts Options) *Manager {
	if opts.Injected == nil {
		opts.Injected = wallet.Unavailable{}
	}
	if opts.Binder == nil {
		opts.Binder = contracts.Bind
	}
	if opts.ConnectionTimeout <= 0 {
		opts.ConnectionTimeout = 10 * time.Second
	}
	return &Manager{
		opts:  opts,
		log:   logger.Named("session"),
		state: model.SessionDisconnected,
	}
}

// OnReset registers fn to run after every network-change reinitialization,
// with the new generation.
func (m *Manager) OnReset(fn func(generation uint64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetHooks = append(m.resetHooks, fn)
}

// OnBindingChanged registers fn to run whenever the contract binding is
// replaced or cleared without a reinitialization: account switch, reconnect
// or disconnect.
func (m *Manager) OnBindingChanged(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindingHooks = append(m.bindingHooks, fn)
}

func (m *Manager) bindingChanged() {
	m.mu.Lock()
	hooks := append([]func(){}, m.bindingHooks...)
	m.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

func (m *Manager) Current() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := View{
		Info:       m.infoLocked(),
		Provider:   m.provider,
		Account:    m.account,
		Generation: m.generation,
	}
	if m.state == model.SessionConnected && m.pending == (common.Address{}) {
		v.Binding = m.binding
	}
	return v
}

func (m *Manager) infoLocked() model.SessionInfo {
	info := model.SessionInfo{
		State:      m.state,
		IsOwner:    m.isOwner,
		Generation: m.generation,
	}
	if m.provider != nil {
		info.Provider = m.provider.Name()
	}
	if m.account != (common.Address{}) {
		info.Account = model.NormalizeAddress(m.account.Hex())
	}
	if m.pending != (common.Address{}) {
		info.PendingAccount = model.NormalizeAddress(m.pending.Hex())
	}
	if m.chainID != nil {
		info.NetworkID = m.chainID.Int64()
		info.NetworkName, info.Supported = m.opts.Networks.Name(info.NetworkID)
		if !info.Supported {
			info.NetworkName = "Unknown Network"
		}
	}
	return info
}

func (m *Manager) publish() {
	if m.opts.Publisher == nil {
		return
	}
	m.mu.Lock()
	info := m.infoLocked()
	m.mu.Unlock()
	m.opts.Publisher.PublishSession(info)
}

// Connect opens a provider, binds the contracts and publishes the session.
// A call made while another connect is running returns nil immediately.
// When the network changes during the connect and AutoReconnect is on, the
// stale result is dropped and Connect runs once more for the new network.
func (m *Manager) Connect(ctx context.Context) error {
	again, err := m.connectOnce(ctx)
	for again {
		m.log.Info("reconnecting after network change")
		again, err = m.connectOnce(ctx)
	}
	return err
}

func (m *Manager) connectOnce(ctx context.Context) (again bool, err error) {
	m.mu.Lock()
	if m.connecting {
		m.mu.Unlock()
		m.log.Debug("connect ignored, already connecting")
		return false, nil
	}
	m.connecting = true
	prevState := m.state
	m.state = model.SessionConnecting
	gen, teardowns := m.generation, m.teardowns
	m.mu.Unlock()
	m.publish()

	defer func() {
		m.mu.Lock()
		m.connecting = false
		again = m.reconnect
		m.reconnect = false
		m.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, m.opts.ConnectionTimeout)
	defer cancel()

	c, err := m.connect(ctx)
	if err != nil {
		err = classifyConnect(ctx, err)
		m.log.Warn("connect failed", zap.Error(err))
		monitor.Business.ConnectAttempt("failed")

		m.mu.Lock()
		if prevState == model.SessionConnected && m.teardowns == teardowns {
			// 重连失败，清空旧会话
			m.teardownLocked()
		}
		m.state = model.SessionDisconnected
		if m.provider != nil {
			m.state = model.SessionConnected
		}
		m.mu.Unlock()
		m.publish()
		return false, err
	}

	m.mu.Lock()
	if m.generation != gen || m.teardowns != teardowns {
		// 连接期间网络变化或被断开，结果作废
		if m.provider == nil {
			m.state = model.SessionDisconnected
		}
		m.mu.Unlock()
		c.provider.Close()
		m.log.Info("discarding connect result from a previous session")
		return false, errno.ErrConnectFailed.WithMessage("Session changed while connecting. Please try again.")
	}

	if m.sub != nil {
		m.sub.Unsubscribe()
		m.sub = nil
	}
	if m.provider != nil && m.provider != c.provider {
		m.provider.Close()
	}
	rebound := m.binding != nil
	m.provider = c.provider
	m.signer = c.signer
	m.account = c.signer.Address()
	m.pending = common.Address{}
	m.chainID = c.chainID
	m.binding = c.binding
	m.isOwner = c.isOwner
	m.state = model.SessionConnected
	m.subscribeLocked(c.provider, m.generation)
	info := m.infoLocked()
	m.mu.Unlock()

	monitor.Business.ConnectAttempt("ok")
	m.log.Info("wallet connected",
		zap.String("provider", info.Provider),
		zap.String("account", info.Account),
		zap.String("network", info.NetworkName),
		zap.Bool("is_owner", info.IsOwner))
	m.publish()
	if rebound {
		m.bindingChanged()
	}
	return false, nil
}

type connection struct {
	provider wallet.Provider
	signer   contracts.Signer
	chainID  *big.Int
	binding  *contracts.Binding
	isOwner  bool
}

// connect 执行连接步骤，失败时关闭已打开的 provider
func (m *Manager) connect(ctx context.Context) (*connection, error) {
	provider, err := m.openProvider(ctx)
	if err != nil {
		return nil, err
	}

	c, err := m.bind(ctx, provider)
	if err != nil {
		provider.Close()
		return nil, err
	}
	return c, nil
}

func (m *Manager) openProvider(ctx context.Context) (wallet.Provider, error) {
	lastErr := wallet.ErrNoProvider
	if sel := m.opts.Selector; sel != nil && sel.Available() {
		p, err := sel.Connect(ctx)
		if err == nil {
			return p, nil
		}
		if wallet.IsUserRejected(err) || ctx.Err() != nil {
			return nil, err
		}
		m.log.Warn("wallet selector failed, trying injected wallet", zap.Error(err))
		lastErr = err
	}

	if !m.opts.Injected.Available() {
		return nil, lastErr
	}
	return m.opts.Injected.Connect(ctx)
}

func (m *Manager) bind(ctx context.Context, provider wallet.Provider) (*connection, error) {
	accounts, err := provider.RequestAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, wallet.ErrNoAccounts
	}

	signer, err := provider.Signer(accounts[0])
	if err != nil {
		return nil, err
	}
	chainID, err := provider.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := m.opts.Networks.Name(chainID.Int64()); !ok {
		m.log.Warn("connected to an unsupported network", zap.String("chain_id", chainID.String()))
	}

	binding, err := m.opts.Binder(ctx, provider, signer, chainID, m.opts.Addresses)
	if err != nil {
		return nil, err
	}
	if m.opts.ReceiptPollInterval > 0 {
		binding.PollInterval = m.opts.ReceiptPollInterval
	}

	return &connection{
		provider: provider,
		signer:   signer,
		chainID:  chainID,
		binding:  binding,
		isOwner:  m.checkOwner(ctx, binding, signer.Address()),
	}, nil
}

// checkOwner 读取失败按非 owner 处理
func (m *Manager) checkOwner(ctx context.Context, b *contracts.Binding, account common.Address) bool {
	owner, err := b.Sale.Owner(ctx)
	if err != nil {
		m.log.Warn("read sale owner failed", zap.Error(err))
		return false
	}
	return owner == account
}

func classifyConnect(ctx context.Context, err error) error {
	if _, ok := errno.As(err); ok {
		return err
	}
	switch {
	case wallet.IsUserRejected(err):
		return errno.ErrUserRejected.Wrap(err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errno.ErrConnectionTimeout.Wrap(err)
	case errors.Is(err, wallet.ErrNoAccounts):
		return errNoAccountsFound
	case errors.Is(err, wallet.ErrNoProvider):
		return errno.ErrNoProviderFound
	}
	return errno.ErrConnectFailed.Wrap(err)
}

// subscribeLocked registers the provider listeners. Every handler checks the
// generation it was registered under and ignores events from older sessions.
func (m *Manager) subscribeLocked(p wallet.Provider, gen uint64) {
	if m.sub != nil {
		m.sub.Unsubscribe()
	}
	m.sub = p.Subscribe(wallet.Listener{
		AccountsChanged: func(accounts []common.Address) {
			if m.Generation() != gen {
				return
			}
			if err := m.OnAccountsChanged(context.Background(), accounts); err != nil {
				m.log.Warn("handle accounts changed", zap.Error(err))
			}
		},
		ChainChanged: func(chainIDHex string) {
			if m.Generation() != gen {
				return
			}
			m.OnNetworkChanged(context.Background(), chainIDHex)
		},
		Disconnected: func(reason error) {
			if m.Generation() != gen {
				return
			}
			m.OnDisconnect(context.Background(), reason)
		},
	})
}

// teardownLocked 清空会话 (不动 generation)
func (m *Manager) teardownLocked() {
	if m.sub != nil {
		m.sub.Unsubscribe()
		m.sub = nil
	}
	if m.provider != nil {
		m.provider.Close()
	}
	m.provider = nil
	m.signer = nil
	m.account = common.Address{}
	m.pending = common.Address{}
	m.chainID = nil
	m.binding = nil
	m.isOwner = false
	m.state = model.SessionDisconnected
	m.teardowns++
}

// Disconnect forgets the cached provider choice and clears the session.
// Calling it while disconnected only republishes.
func (m *Manager) Disconnect(ctx context.Context) {
	if m.opts.Selector != nil {
		if err := m.opts.Selector.ClearCachedProvider(ctx); err != nil {
			m.log.Warn("clear cached provider failed", zap.Error(err))
		}
	}

	m.mu.Lock()
	wasConnected := m.provider != nil
	m.teardownLocked()
	m.reconnect = false
	m.mu.Unlock()

	if wasConnected {
		m.log.Info("wallet disconnected")
	}
	m.publish()
	if wasConnected {
		m.bindingChanged()
	}
}

// OnAccountsChanged handles an accounts-changed event. An empty list
// disconnects; a new first account rebuilds the signer and the binding
// together. If that fails the previous pair stays in place, the new address
// is recorded as pending and AccountSwitchFailed is returned.
func (m *Manager) OnAccountsChanged(ctx context.Context, accounts []common.Address) error {
	if len(accounts) == 0 {
		m.log.Info("wallet accounts removed")
		m.Disconnect(ctx)
		return nil
	}

	next := accounts[0]
	m.mu.Lock()
	if m.state != model.SessionConnected || m.provider == nil {
		m.mu.Unlock()
		return nil
	}
	if next == m.account && m.pending == (common.Address{}) {
		m.mu.Unlock()
		return nil
	}
	provider, chainID, gen, teardowns := m.provider, m.chainID, m.generation, m.teardowns
	m.mu.Unlock()

	binding, signer, isOwner, err := m.rebind(ctx, provider, chainID, next)

	m.mu.Lock()
	if m.generation != gen || m.teardowns != teardowns {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.pending = next
		m.mu.Unlock()
		m.log.Warn("account switch failed", zap.String("account", next.Hex()), zap.Error(err))
		m.publish()
		m.bindingChanged()
		return errno.ErrAccountSwitchFailed.Wrap(err)
	}
	m.signer = signer
	m.account = next
	m.pending = common.Address{}
	m.binding = binding
	m.isOwner = isOwner
	m.mu.Unlock()

	m.log.Info("account switched", zap.String("account", next.Hex()), zap.Bool("is_owner", isOwner))
	m.publish()
	m.bindingChanged()
	return nil
}

func (m *Manager) rebind(ctx context.Context, provider wallet.Provider, chainID *big.Int, account common.Address) (*contracts.Binding, contracts.Signer, bool, error) {
	signer, err := provider.Signer(account)
	if err != nil {
		return nil, nil, false, err
	}
	binding, err := m.opts.Binder(ctx, provider, signer, chainID, m.opts.Addresses)
	if err != nil {
		return nil, nil, false, err
	}
	if m.opts.ReceiptPollInterval > 0 {
		binding.PollInterval = m.opts.ReceiptPollInterval
	}
	return binding, signer, m.checkOwner(ctx, binding, account), nil
}

// OnNetworkChanged reinitializes everything: the generation advances, the
// session is torn down, reset hooks run and the empty session is published.
// With AutoReconnect the manager then connects again.
func (m *Manager) OnNetworkChanged(ctx context.Context, chainIDHex string) {
	var newID string
	if id, err := hexutil.DecodeBig(chainIDHex); err == nil {
		newID = id.String()
	} else {
		newID = chainIDHex
	}

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.teardownLocked()
	hooks := append([]func(uint64){}, m.resetHooks...)
	m.mu.Unlock()

	m.log.Info("network changed, reinitializing", zap.String("chain_id", newID), zap.Uint64("generation", gen))
	monitor.Business.SetGeneration(gen)
	for _, fn := range hooks {
		fn(gen)
	}
	m.publish()

	if !m.opts.AutoReconnect {
		return
	}
	m.mu.Lock()
	if m.connecting {
		// 正在连接：结果会被丢弃，由那次连接结束后重连
		m.reconnect = true
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	if err := m.Connect(ctx); err != nil {
		m.log.Warn("reconnect after network change failed", zap.Error(err))
	}
}

// OnDisconnect handles a provider disconnect like an account removal.
func (m *Manager) OnDisconnect(ctx context.Context, reason error) {
	m.log.Info("provider disconnected", zap.Error(reason))
	m.Disconnect(ctx)
}

// RefreshOwnership re-reads sale.owner() for the current account.
func (m *Manager) RefreshOwnership(ctx context.Context) (bool, error) {
	v := m.Current()
	if !v.Ready() {
		return false, errno.ErrNotConnected
	}
	owner, err := v.Binding.Sale.Owner(ctx)
	if err != nil {
		return false, err
	}
	isOwner := owner == v.Account

	m.mu.Lock()
	if m.generation != v.Generation || m.account != v.Account {
		m.mu.Unlock()
		return isOwner, nil
	}
	changed := m.isOwner != isOwner
	m.isOwner = isOwner
	m.mu.Unlock()

	if changed {
		m.publish()
	}
	return isOwner, nil
}

// SwitchAccount selects another account on providers that support it. The
// switch itself arrives back as an accounts-changed event.
func (m *Manager) SwitchAccount(ctx context.Context, index int) error {
	m.mu.Lock()
	p := m.provider
	m.mu.Unlock()
	if p == nil {
		return errno.ErrNotConnected
	}
	sel, ok := p.(wallet.AccountSelector)
	if !ok {
		return errno.ErrAccountSwitchFailed.WithMessage("This wallet does not support switching accounts")
	}
	if err := sel.SelectAccount(index); err != nil {
		return errno.ErrAccountSwitchFailed.Wrap(err)
	}

	m.mu.Lock()
	pending := m.pending != (common.Address{})
	m.mu.Unlock()
	if pending {
		return errno.ErrAccountSwitchFailed
	}
	return nil
}

// AutoConnect connects after delay when the selector remembers a provider or
// the injected wallet is ready, like a page reload of a dapp that was
// connected before.
func (m *Manager) AutoConnect(ctx context.Context, delay time.Duration) error {
	cached := m.opts.Selector != nil && m.opts.Selector.HasCachedProvider(ctx)
	if !cached && !m.opts.Injected.Available() {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}
	return m.Connect(ctx)
}
