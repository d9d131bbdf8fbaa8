package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/ipixel-server/internal/api/middleware"
	"github.com/taoyao-code/ipixel-server/internal/service"
)

// RegisterCommandRoutes 注册指令编码与查询路由
func RegisterCommandRoutes(
	r gin.IRouter,
	handler *CommandHandler,
	authCfg middleware.AuthConfig,
	rateCfg middleware.RateLimitConfig,
	logger *zap.Logger,
) {
	if r == nil || handler == nil {
		return
	}

	// API路由组(需要认证)
	api := r.Group("/api/v1")
	api.Use(middleware.CORS(), middleware.RateLimit(rateCfg, logger))
	if authCfg.Enabled {
		api.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	// 指令编码
	names := service.CommandNames()
	for _, name := range names {
		api.POST("/commands/"+name, handler.Encode(name))
	}

	// 指令日志
	api.GET("/commands", handler.ListCommands)
	api.GET("/commands/stats", handler.CommandStats)
	api.GET("/commands/:id", handler.GetCommand)

	// 出站队列与编码配置
	api.GET("/queue/stats", handler.QueueStats)
	api.GET("/profiles", handler.Profiles)

	logger.Info("command routes registered", zap.Int("endpoints", len(names)+5))
}
