package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"dapp-core/internal/contracts"
	"dapp-core/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// 连续失败多少次视为节点断开
const maxWatchFailures = 3

type RPCOptions struct {
	// PollInterval 轮询 chain id 的间隔，<= 0 时不启动 watcher
	PollInterval time.Duration
	Approve      ApproveFunc
}

// RPCProvider is a JSON-RPC node plus a local key source.
type RPCProvider struct {
	*ethclient.Client

	name    string
	keys    KeySource
	approve ApproveFunc
	emitter Emitter

	mu      sync.Mutex
	chainID *big.Int

	unwatch  func()
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ Provider = (*RPCProvider)(nil)

// DialRPC connects to url and starts watching the chain id.
func DialRPC(ctx context.Context, name, url string, keys KeySource, opts RPCOptions) (*RPCProvider, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	p := &RPCProvider{
		Client:  client,
		name:    name,
		keys:    keys,
		approve: opts.Approve,
		chainID: chainID,
		stop:    make(chan struct{}),
	}
	p.unwatch = keys.Watch(p.emitter.EmitAccountsChanged)

	if opts.PollInterval > 0 {
		p.wg.Add(1)
		go p.watchChain(opts.PollInterval)
	}
	return p, nil
}

func (p *RPCProvider) Name() string {
	return p.name
}

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	accounts := p.keys.Accounts()
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	return accounts, nil
}

func (p *RPCProvider) Signer(account common.Address) (contracts.Signer, error) {
	key, ok := p.keys.Key(account)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoKey, account.Hex())
	}
	return NewKeySigner(key, p.approve), nil
}

// SelectAccount switches the active HD account.
func (p *RPCProvider) SelectAccount(index int) error {
	hd, ok := p.keys.(*HDKeySource)
	if !ok {
		return fmt.Errorf("provider %s has a single account", p.name)
	}
	return hd.Select(index)
}

// AllAccounts lists every account in selection order, active or not.
func (p *RPCProvider) AllAccounts() []common.Address {
	if hd, ok := p.keys.(*HDKeySource); ok {
		return hd.All()
	}
	return p.keys.Accounts()
}

func (p *RPCProvider) Subscribe(l Listener) Subscription {
	return p.emitter.Subscribe(l)
}

func (p *RPCProvider) Close() {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.unwatch()
		p.wg.Wait()
		p.emitter.RemoveAll()
		p.Client.Close()
	})
}

// watchChain 轮询 eth_chainId，变化时发 chainChanged，连续失败时发 disconnect
func (p *RPCProvider) watchChain(interval time.Duration) {
	defer p.wg.Done()
	log := logger.Named("rpc-provider")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		id, err := p.Client.ChainID(ctx)
		cancel()
		if err != nil {
			failures++
			log.Warn("poll chain id failed", zap.Int("failures", failures), zap.Error(err))
			if failures >= maxWatchFailures {
				go p.emitter.EmitDisconnected(err)
				return
			}
			continue
		}
		failures = 0

		p.mu.Lock()
		changed := id.Cmp(p.chainID) != 0
		p.chainID = id
		p.mu.Unlock()

		if changed {
			log.Info("chain changed", zap.String("chain_id", id.String()))
			// 回调可能 Close 本 provider，不能在 watcher 里同步等待
			go p.emitter.EmitChainChanged(hexutil.EncodeBig(id))
		}
	}
}
