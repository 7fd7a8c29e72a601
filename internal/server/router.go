package server

import (
	"dapp-core/internal/handler"
	"dapp-core/pkg/monitor"
	"dapp-core/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由需要的全部 handler
type Handlers struct {
	Wallet     *handler.WalletHandler
	Tx         *handler.TxHandler
	Projection *handler.ProjectionHandler
	WS         *handler.WSHandler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers) *gin.Engine {
	// 0. 初始化监控指标和参数校验
	monitor.Init()
	validator.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		wallet := api.Group("/wallet")
		wallet.POST("/connect", h.Wallet.Connect)
		wallet.POST("/disconnect", h.Wallet.Disconnect)
		wallet.GET("/session", h.Wallet.Session)
		wallet.POST("/accounts", h.Wallet.SelectAccount)

		tx := api.Group("/tx")
		tx.POST("/buy", h.Tx.Buy)
		tx.POST("/withdraw", h.Tx.Withdraw)
		tx.GET("/:kind", h.Tx.Status)
		tx.PUT("/:kind/input", h.Tx.SetInput)

		api.GET("/projection", h.Projection.Get)
		api.POST("/projection/refresh", h.Projection.Refresh)

		api.GET("/ws", h.WS.Stream)
	}

	return r
}
