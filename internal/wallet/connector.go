package wallet

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"dapp-core/pkg/cache"
	"dapp-core/pkg/config"
	"dapp-core/pkg/logger"

	"go.uber.org/zap"
)

const cachedProviderKey = "wallet:cached_provider"

// Unavailable is the connector used when no wallet is configured.
type Unavailable struct{}

func (Unavailable) Name() string    { return "unavailable" }
func (Unavailable) Available() bool { return false }
func (Unavailable) Connect(context.Context) (Provider, error) {
	return nil, ErrNoProvider
}

// HDConnector opens a node connection backed by an HD wallet.
type HDConnector struct {
	RpcURL       string
	KeystorePath string
	Password     string
	Mnemonic     string
	AccountCount int
	Options      RPCOptions
}

func (c *HDConnector) Name() string { return "hd" }

func (c *HDConnector) Available() bool {
	if strings.TrimSpace(c.Mnemonic) != "" {
		return true
	}
	if c.KeystorePath == "" || c.Password == "" {
		return false
	}
	_, err := os.Stat(c.KeystorePath)
	return err == nil
}

func (c *HDConnector) Connect(ctx context.Context) (Provider, error) {
	keys, err := LoadHDKeySource(c.KeystorePath, c.Password, c.Mnemonic, c.AccountCount)
	if err != nil {
		return nil, err
	}
	return DialRPC(ctx, c.Name(), c.RpcURL, keys, c.Options)
}

// KeyConnector opens a node connection backed by one key, either a raw hex
// private key or a go-ethereum keystore file.
type KeyConnector struct {
	ConnectorName string
	RpcURL        string
	PrivateKey    string
	GethKeystore  string
	Password      string
	Options       RPCOptions
}

func (c *KeyConnector) Name() string { return c.ConnectorName }

func (c *KeyConnector) Available() bool {
	return strings.TrimSpace(c.PrivateKey) != "" || c.GethKeystore != ""
}

func (c *KeyConnector) Connect(ctx context.Context) (Provider, error) {
	keys, err := LoadStaticKeySource(c.PrivateKey, c.GethKeystore, c.Password)
	if err != nil {
		return nil, err
	}
	return DialRPC(ctx, c.Name(), c.RpcURL, keys, c.Options)
}

// Selector 多钱包选择器：按顺序尝试候选项，记住上次成功的选择
type Selector struct {
	options []Connector
	cache   cache.Cache
	ttl     time.Duration
}

var _ CachingConnector = (*Selector)(nil)

func NewSelector(c cache.Cache, options ...Connector) *Selector {
	return &Selector{options: options, cache: c}
}

func (s *Selector) Name() string { return "selector" }

func (s *Selector) Available() bool {
	for _, o := range s.options {
		if o.Available() {
			return true
		}
	}
	return false
}

func (s *Selector) cached(ctx context.Context) string {
	if s.cache == nil {
		return ""
	}
	var name string
	if err := s.cache.Get(ctx, cachedProviderKey, &name); err != nil {
		return ""
	}
	return name
}

func (s *Selector) HasCachedProvider(ctx context.Context) bool {
	return s.cached(ctx) != ""
}

func (s *Selector) ClearCachedProvider(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, cachedProviderKey)
}

// Connect tries the cached choice first, then the rest in order. A user
// rejection stops the search.
func (s *Selector) Connect(ctx context.Context) (Provider, error) {
	ordered := make([]Connector, 0, len(s.options))
	if name := s.cached(ctx); name != "" {
		for _, o := range s.options {
			if o.Name() == name {
				ordered = append(ordered, o)
			}
		}
	}
	for _, o := range s.options {
		if len(ordered) > 0 && ordered[0] == o {
			continue
		}
		ordered = append(ordered, o)
	}

	lastErr := ErrNoProvider
	for _, o := range ordered {
		if !o.Available() {
			continue
		}
		p, err := o.Connect(ctx)
		if err != nil {
			if errors.Is(err, ErrUserRejected) || ctx.Err() != nil {
				return nil, err
			}
			logger.Warn("wallet option failed", zap.String("option", o.Name()), zap.Error(err))
			lastErr = err
			continue
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, cachedProviderKey, o.Name(), s.ttl); err != nil {
				logger.Warn("cache provider choice failed", zap.Error(err))
			}
		}
		return p, nil
	}
	return nil, lastErr
}

// NewConnectors builds the selector and the injected connector from config.
func NewConnectors(cfg config.WalletConfig, c cache.Cache, approve ApproveFunc) (*Selector, Connector) {
	opts := RPCOptions{PollInterval: cfg.PollInterval, Approve: approve}

	var options []Connector
	for _, name := range cfg.Connectors {
		switch name {
		case "hd":
			options = append(options, &HDConnector{
				RpcURL:       cfg.RpcUrl,
				KeystorePath: cfg.KeystorePath,
				Password:     cfg.Password,
				Mnemonic:     cfg.Mnemonic,
				AccountCount: cfg.AccountCount,
				Options:      opts,
			})
		case "keystore":
			options = append(options, &KeyConnector{
				ConnectorName: "keystore",
				RpcURL:        cfg.RpcUrl,
				GethKeystore:  cfg.GethKeystore,
				Password:      cfg.Password,
				Options:       opts,
			})
		default:
			logger.Warn("unknown wallet connector", zap.String("name", name))
		}
	}

	var injected Connector = Unavailable{}
	if strings.TrimSpace(cfg.PrivateKey) != "" {
		injected = &KeyConnector{
			ConnectorName: "injected",
			RpcURL:        cfg.RpcUrl,
			PrivateKey:    cfg.PrivateKey,
			Options:       opts,
		}
	}
	return NewSelector(c, options...), injected
}
