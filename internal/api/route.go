package api

import (
	"Realty/internal/api/config"
	"Realty/internal/api/middleware"
	"Realty/internal/pkg/consts"
	"Realty/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(cfg *config.Config, group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies(cfg.Server.TrustedProxies)

	// Metrics & TraceId & Logger & CORS
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware(cfg.Chat.WSPath, "/metrics"))
	r.Use(middleware.CORSMiddleware(cfg.Chat.AllowedOrigins))
	logger.SetupGin(r)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 实时通道：路径可配置，身份在握手时由 token 决定
	r.GET(cfg.Chat.WSPath, group.WSHandler.Connect)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true, "message": "pong"})
		})

		chatGroup := apiGroup.Group("/chat")
		chatGroup.Use(middleware.SessionMiddleware(group.Tokens))
		{
			chatGroup.POST("/start", group.ChatHandler.StartThread)
			chatGroup.POST("/message", group.ChatHandler.SendMessage)
			chatGroup.POST("/read", group.ChatHandler.MarkRead)
			chatGroup.GET("/:id/messages", group.ChatHandler.ListMessages)

			// 客服后台
			adminGroup := chatGroup.Group("")
			if cfg.Chat.RequireAdminAuth {
				adminGroup.Use(middleware.AuthMiddleware(group.Tokens), middleware.CheckRoles(consts.RoleAdmin))
			}
			{
				adminGroup.GET("/threads", group.ChatHandler.ListThreads)
				adminGroup.GET("/threads/search", group.ChatHandler.SearchThreads)
			}
		}
	}

	return r
}
