package main

import (
	"context"
	"time"

	"dapp-core/internal/contracts"
	"dapp-core/internal/handler"
	"dapp-core/internal/server"
	"dapp-core/internal/service"
	"dapp-core/internal/service/mq"
	"dapp-core/internal/service/notify"
	"dapp-core/internal/service/session"
	"dapp-core/internal/wallet"
	"dapp-core/pkg/cache"
	"dapp-core/pkg/config"
	"dapp-core/pkg/logger"
	"dapp-core/pkg/monitor"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	// 2. 监控指标
	monitor.Init()

	// 3. 缓存: L1 内存，Redis 可用时加 L2
	var appCache cache.Cache = cache.NewMemoryCache(time.Minute, 5*time.Minute)
	rdb := connectRedis(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
		appCache = cache.NewMultiLevelCache(appCache, cache.NewRedisCache(rdb, "dapp:"))
	}

	// 4. 事件发布 (none / redis / kafka)
	producer, err := mq.NewProducer(cfg)
	if err != nil {
		logger.Fatal("初始化消息队列失败", zap.Error(err))
	}
	hub := notify.NewHub(producer)

	// 5. 钱包连接器 (服务端没有交互，签名请求直接放行)
	selector, injected := wallet.NewConnectors(cfg.Wallet, appCache, nil)

	// 6. 会话
	sessions := session.NewManager(session.Options{
		Selector: selector,
		Injected: injected,
		Addresses: contracts.Addresses{
			Token: common.HexToAddress(cfg.Contracts.TokenAddress),
			Sale:  common.HexToAddress(cfg.Contracts.SaleAddress),
		},
		Networks:            cfg.Network,
		ConnectionTimeout:   cfg.Wallet.ConnectionTimeout,
		AutoReconnect:       cfg.Wallet.AutoReconnect,
		ReceiptPollInterval: cfg.Wallet.PollInterval,
		Publisher:           hub,
	})

	// 7. 业务服务，网络切换时全部重置
	projection := service.NewProjectionService(sessions, sessions, appCache, cfg.Projection.CacheTTL, hub)
	txs := service.NewTransactionService(sessions, projection, hub, service.TxOptions{
		ConfirmationBlocks: cfg.Wallet.ConfirmationBlocks,
		SuccessMessageTTL:  cfg.UI.SuccessMessageTTL,
	})
	sessions.OnReset(txs.Reset)
	sessions.OnBindingChanged(txs.DropStale)
	sessions.OnReset(projection.Reset)

	// 8. 定时刷新
	cronService := service.NewCronService(projection, cfg.Projection.RefreshSpec)
	if err := cronService.Start(); err != nil {
		logger.Fatal("定时任务启动失败", zap.Error(err))
	}

	// 9. 自动连接 (相当于页面刷新后恢复上次的钱包)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Wallet.AutoConnect {
		go func() {
			if err := sessions.AutoConnect(ctx, time.Second); err != nil {
				logger.Warn("自动连接失败", zap.Error(err))
			}
		}()
	}

	// 10. HTTP
	r := server.NewHTTPRouter(server.Handlers{
		Wallet:     handler.NewWalletHandler(sessions),
		Tx:         handler.NewTxHandler(txs),
		Projection: handler.NewProjectionHandler(projection),
		WS:         handler.NewWSHandler(hub),
	})
	app := server.New(server.Config{HttpPort: cfg.App.HttpPort}, r)
	app.OnShutdown(cancel)
	app.OnShutdown(cronService.Stop)
	app.OnShutdown(txs.Close)
	app.OnShutdown(func() { sessions.Disconnect(context.Background()) })
	app.OnShutdown(func() {
		if err := hub.Close(); err != nil {
			logger.Warn("关闭事件发布失败", zap.Error(err))
		}
	})

	// 运行 (阻塞)
	if err := app.Run(ctx); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
	}
	logger.Info("系统已退出")
}

// connectRedis 连不上时返回 nil，只用内存缓存
func connectRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	rdb := mq.NewRedisClient(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis 不可用，只使用内存缓存", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = rdb.Close()
		return nil
	}
	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))
	return rdb
}
