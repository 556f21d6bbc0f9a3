// internal/api/router.go
package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StoryForge/internal/config"
)

// SetupRouter 配置HTTP路由。ctx 取消时停止限流器的后台清理
func SetupRouter(ctx context.Context, handler *Handler, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	r.Use(MetricsMiddleware(handler.Metrics))

	limiter := NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	limiter.StartCleanup(ctx)

	// WebSocket 支持
	r.GET("/ws/progress/:id", handler.ProgressWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	{
		api.GET("/health", handler.Health)
		api.GET("/metrics", handler.GetMetrics)

		// 进度查询
		api.GET("/progress/:id", handler.GetProgress)
		api.GET("/progress/:id/events", handler.StreamProgress)

		// 风格目录
		catalogGroup := api.Group("/catalog")
		{
			catalogGroup.GET("/genres", handler.ListGenres)
			catalogGroup.GET("/directors", handler.ListDirectors)
			catalogGroup.GET("/cinematographers", handler.ListCinematographers)
			catalogGroup.GET("/rules", handler.ListRules)
		}

		// 剧本分析
		analyses := api.Group("/analyses")
		{
			analyses.GET("", handler.ListAnalyses)
			analyses.GET("/:title", handler.GetAnalysis)
			analyses.POST("", limiter.Middleware(handler.Response), handler.AnalyzeScript)
			analyses.POST("/upload", limiter.Middleware(handler.Response), handler.UploadScript)
		}

		// 生成类接口都会调用模型，统一限流
		generate := api.Group("", limiter.Middleware(handler.Response))
		{
			generate.POST("/outlines", handler.GenerateOutline)
			generate.POST("/outlines/scene-prompts", handler.GenerateAllScenePrompts)
			generate.POST("/scene-prompts", handler.GenerateScenePrompts)
		}
	}

	return r
}
