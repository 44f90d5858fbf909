package router

import (
	"fmt"
	"strings"

	"github.com/eoshub-next/internal/cache"
	"github.com/eoshub-next/internal/config"
	publichandlers "github.com/eoshub-next/internal/http/handlers/public"
	"github.com/eoshub-next/internal/logger"
	"github.com/eoshub-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "eh"
	}
	redisClient := cache.Client()
	orderRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:order", redisPrefix),
		WindowSeconds: cfg.Security.OrderRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.OrderRateLimit.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		orders := apiV1.Group("/orders")
		{
			orders.POST("", RateLimitMiddleware(redisClient, orderRule, KeyByIP), publicHandler.CreateOrder)
			orders.GET("/:order_no/status", publicHandler.OrderStatus)
			// 支付网关异步通知，回调体不可信，校验在服务层完成
			orders.POST("/:order_no/payment-callback", publicHandler.PaymentCallback)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
