package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dapp-core/internal/contracts"
	"dapp-core/internal/model"
	"dapp-core/pkg/cache"
	"dapp-core/pkg/errno"
	"dapp-core/pkg/ethunit"
	"dapp-core/pkg/logger"
	"dapp-core/pkg/monitor"

	"go.uber.org/zap"
)

const (
	balancePlaces = 4
	pricePlaces   = 6
)

// ProjectionPublisher receives every refreshed projection; nil means the
// projection was dropped.
type ProjectionPublisher interface {
	PublishProjection(p *model.Projection)
}

// OwnershipRefresher re-reads the owner flag of the session.
type OwnershipRefresher interface {
	RefreshOwnership(ctx context.Context) (bool, error)
}

type tokenMeta struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// ProjectionService 拉取页面展示需要的余额 / 价格，并缓存 token 元数据
type ProjectionService struct {
	sessions  SessionReader
	ownership OwnershipRefresher
	cache     cache.Cache
	cacheTTL  time.Duration
	publisher ProjectionPublisher
	log       *zap.Logger

	mu        sync.Mutex
	last      *model.Projection
	refreshes int
}

func NewProjectionService(sessions SessionReader, ownership OwnershipRefresher, c cache.Cache, cacheTTL time.Duration, publisher ProjectionPublisher) *ProjectionService {
	return &ProjectionService{
		sessions:  sessions,
		ownership: ownership,
		cache:     c,
		cacheTTL:  cacheTTL,
		publisher: publisher,
		log:       logger.Named("projection"),
	}
}

// Refresh reads every balance for the current session and publishes the
// result. A refresh that finishes after a reinitialization is dropped.
func (s *ProjectionService) Refresh(ctx context.Context) (*model.Projection, error) {
	v := s.sessions.Current()
	if !v.Ready() {
		return nil, errno.ErrNotConnected
	}
	defer monitor.Business.ProjectionTimer()()

	s.mu.Lock()
	s.refreshes++
	s.mu.Unlock()

	b := v.Binding
	meta, err := s.tokenMeta(ctx, v.Generation, b.Token)
	if err != nil {
		return nil, err
	}

	ethBalance, err := b.Backend().BalanceAt(ctx, v.Account, nil)
	if err != nil {
		return nil, fmt.Errorf("eth balance: %w", err)
	}
	tokenBalance, err := b.Token.BalanceOf(ctx, v.Account)
	if err != nil {
		return nil, fmt.Errorf("token balance: %w", err)
	}
	saleTokens, err := b.Token.BalanceOf(ctx, b.Sale.Address())
	if err != nil {
		return nil, fmt.Errorf("sale token balance: %w", err)
	}
	saleEth, err := b.Sale.EthBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("sale eth balance: %w", err)
	}
	price, err := b.Sale.TokenPriceInWei(ctx)
	if err != nil {
		return nil, fmt.Errorf("token price: %w", err)
	}

	isOwner := v.Info.IsOwner
	if s.ownership != nil {
		if owner, err := s.ownership.RefreshOwnership(ctx); err == nil {
			isOwner = owner
		} else {
			s.log.Warn("refresh ownership failed", zap.Error(err))
		}
	}

	decimals := int32(meta.Decimals)
	p := &model.Projection{
		Account:          v.Info.Account,
		NetworkName:      v.Info.NetworkName,
		EthBalance:       ethunit.FormatFixed(ethBalance, ethunit.EtherDecimals, balancePlaces),
		TokenAddress:     b.Token.Address().Hex(),
		TokenSymbol:      meta.Symbol,
		TokenDecimals:    meta.Decimals,
		TokenBalance:     ethunit.FormatFixed(tokenBalance, decimals, balancePlaces),
		SaleTokenBalance: ethunit.FormatFixed(saleTokens, decimals, balancePlaces),
		SaleEthBalance:   ethunit.FormatFixed(saleEth, ethunit.EtherDecimals, balancePlaces),
		TokenPrice:       ethunit.FormatFixed(price, ethunit.EtherDecimals, pricePlaces),
		IsOwner:          isOwner,
		Generation:       v.Generation,
		RefreshedAt:      time.Now(),
	}

	s.mu.Lock()
	if s.sessions.Current().Generation != v.Generation {
		s.mu.Unlock()
		return nil, ErrDiscarded
	}
	s.last = p
	s.mu.Unlock()

	if s.publisher != nil {
		s.publisher.PublishProjection(p)
	}
	return p, nil
}

// tokenMeta symbol / decimals 不会变，按 generation + 地址缓存
func (s *ProjectionService) tokenMeta(ctx context.Context, gen uint64, token *contracts.Token) (tokenMeta, error) {
	key := fmt.Sprintf("projection:%d:%s", gen, token.Address().Hex())
	var meta tokenMeta
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &meta); err == nil {
			return meta, nil
		}
	}

	symbol, err := token.Symbol(ctx)
	if err != nil {
		return meta, fmt.Errorf("token symbol: %w", err)
	}
	decimals, err := token.Decimals(ctx)
	if err != nil {
		return meta, fmt.Errorf("token decimals: %w", err)
	}
	meta = tokenMeta{Symbol: symbol, Decimals: decimals}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, meta, s.cacheTTL); err != nil {
			s.log.Warn("cache token meta failed", zap.Error(err))
		}
	}
	return meta, nil
}

// Get returns the last projection, if any.
func (s *ProjectionService) Get() (*model.Projection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil, false
	}
	p := *s.last
	return &p, true
}

// Refreshes returns how many refreshes were started.
func (s *ProjectionService) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// Reset drops the cached projection. Registered as a session reset hook.
func (s *ProjectionService) Reset(generation uint64) {
	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
	if s.publisher != nil {
		s.publisher.PublishProjection(nil)
	}
	s.log.Debug("projection reset", zap.Uint64("generation", generation))
}

var _ Refresher = (*ProjectionService)(nil)
