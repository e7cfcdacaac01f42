package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "ura-call-bridge/docs"
	"ura-call-bridge/internal/app/controllers"
	"ura-call-bridge/internal/app/middleware"
	"ura-call-bridge/internal/domain/services/container"
	"ura-call-bridge/internal/infrastructure/config"
	"ura-call-bridge/pkg/logger"
)

// SetupRouter 初始化并返回配置好的路由
func SetupRouter(serviceContainer *container.ServiceContainer, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)

	r := gin.New()
	r.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	r.Use(middleware.CORS(cfg.WSAllowedOrigins))

	// 添加 Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 坐席端事件推送
	r.GET("/socket", controllers.HandleEventStreamFunc(serviceContainer, "stream"))

	registerRoutes(r, serviceContainer)
	return r
}

// registerRoutes 配置所有API路由
func registerRoutes(r *gin.Engine, container *container.ServiceContainer) {
	api := r.Group("/api")

	// 添加IP限流中间件 - 每秒允许10个请求，最多突发20个请求
	api.Use(middleware.IPRateLimiter(10, 20))

	// 健康检查路由
	api.GET("/ping", controllers.HandleHealthFunc(container, "ping"))
	api.GET("/health/status", controllers.HandleHealthFunc(container, "status"))

	// IVR 挂断
	api.POST("/hangup", controllers.HandleHangupFunc(container, "hangup"))

	// 通话记录
	callRecords := api.Group("/call-records")
	{
		callRecords.GET("", controllers.HandleCallRecordFunc(container, "searchCallRecords"))
		callRecords.GET("/active", controllers.HandleCallRecordFunc(container, "getActiveCallRecords"))
		callRecords.POST("/reconcile", middleware.PathRateLimiter(0.2, 1), controllers.HandleCallRecordFunc(container, "reconcile"))
	}
}
