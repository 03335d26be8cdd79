package handler

import (
	_ "embed"
	"net/http"
	"time"

	"cashly-copilot/internal/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

//go:embed static/index.html
var indexHTML []byte

func SetupRouter(cfg *config.Config, chatHandler *ChatHandler) *gin.Engine {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	// Multipart bodies beyond this spill to temp files.
	if cfg.Upload.MaxBytes > 0 {
		router.MaxMultipartMemory = cfg.Upload.MaxBytes
	}

	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})
	router.GET("/health", chatHandler.Health)

	api := router.Group("/api")
	{
		chat := api.Group("/chat")
		{
			chat.POST("/message", chatHandler.SendMessage)
			chat.POST("/session", chatHandler.CreateSession)
			chat.POST("/session/list", chatHandler.GetSessionList)
			chat.GET("/session/del/:session_id", chatHandler.DeleteSession)
			chat.POST("/session/clear", chatHandler.ClearAllSessions)
			chat.GET("/session/:session_id", chatHandler.GetSession)
			chat.GET("/messages/:session_id", chatHandler.GetMessages)
		}
	}

	return router
}
