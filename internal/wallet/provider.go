// Package wallet models the wallet a session talks to: a Provider that can
// read the chain, hand out signers and emit account/chain/disconnect events,
// and the Connectors that produce one.
package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"dapp-core/internal/contracts"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrNoProvider = errors.New("no wallet provider available")
	ErrNoAccounts = errors.New("wallet exposes no accounts")
	ErrNoKey      = errors.New("no key for account")

	// ErrUserRejected 用户拒绝签名 / 授权 (EIP-1193 code 4001)
	ErrUserRejected error = &providerError{code: 4001, msg: "user rejected the request"}
)

// providerError carries an EIP-1193 style code and satisfies rpc.Error.
type providerError struct {
	code int
	msg  string
}

func (e *providerError) Error() string  { return e.msg }
func (e *providerError) ErrorCode() int { return e.code }

// Provider is a connected wallet.
type Provider interface {
	contracts.Backend

	// Name 用于缓存选择器的上次选择
	Name() string
	ChainID(ctx context.Context) (*big.Int, error)
	// RequestAccounts asks the wallet for authorised accounts, active first.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Signer(account common.Address) (contracts.Signer, error)
	Subscribe(l Listener) Subscription
	Close()
}

// AccountSelector is implemented by providers whose active account can be
// switched from the outside (HD wallets).
type AccountSelector interface {
	SelectAccount(index int) error
}

// AccountLister lists every account a provider holds, in the order
// SelectAccount indexes them.
type AccountLister interface {
	AllAccounts() []common.Address
}

// Connector produces a Provider.
type Connector interface {
	Name() string
	// Available reports whether Connect has a chance to succeed without
	// touching the network.
	Available() bool
	Connect(ctx context.Context) (Provider, error)
}

// CachingConnector remembers the last successful choice.
type CachingConnector interface {
	Connector
	HasCachedProvider(ctx context.Context) bool
	ClearCachedProvider(ctx context.Context) error
}

// Listener 钱包事件回调，nil 字段表示不关心
type Listener struct {
	AccountsChanged func(accounts []common.Address)
	ChainChanged    func(chainIDHex string)
	Disconnected    func(reason error)
}

type Subscription interface {
	Unsubscribe()
}

// Emitter fans provider events out to listeners. Handlers run on the
// emitting goroutine, outside the emitter's lock.
type Emitter struct {
	mu        sync.Mutex
	next      uint64
	listeners map[uint64]Listener
}

func (e *Emitter) Subscribe(l Listener) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[uint64]Listener)
	}
	e.next++
	id := e.next
	e.listeners[id] = l
	return &subscription{emitter: e, id: id}
}

// Len returns the number of live subscriptions.
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

func (e *Emitter) snapshot() []Listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		out = append(out, l)
	}
	return out
}

func (e *Emitter) EmitAccountsChanged(accounts []common.Address) {
	for _, l := range e.snapshot() {
		if l.AccountsChanged != nil {
			l.AccountsChanged(accounts)
		}
	}
}

func (e *Emitter) EmitChainChanged(chainIDHex string) {
	for _, l := range e.snapshot() {
		if l.ChainChanged != nil {
			l.ChainChanged(chainIDHex)
		}
	}
}

func (e *Emitter) EmitDisconnected(reason error) {
	for _, l := range e.snapshot() {
		if l.Disconnected != nil {
			l.Disconnected(reason)
		}
	}
}

// RemoveAll drops every listener.
func (e *Emitter) RemoveAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = nil
}

type subscription struct {
	emitter *Emitter
	id      uint64
	once    sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.emitter.mu.Lock()
		defer s.emitter.mu.Unlock()
		delete(s.emitter.listeners, s.id)
	})
}

// IsUserRejected reports whether err is a user rejection, either ours or a
// JSON-RPC error carrying code 4001.
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == 4001
}
