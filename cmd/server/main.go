package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashly-copilot/internal/composer"
	"cashly-copilot/internal/config"
	"cashly-copilot/internal/gateway"
	"cashly-copilot/internal/handler"
	"cashly-copilot/internal/service"
	"cashly-copilot/internal/utils"
	"cashly-copilot/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	variant, err := config.LookupVariant(cfg.Webhook.Variant)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	logger.Infof("Using webhook variant %s (%s)", variant.Name, variant.WebhookURL)

	gw := gateway.New(variant, utils.NewHTTPClient(cfg.Webhook.Timeout))
	chatService := service.NewChatService(cfg, gw, composer.Default())
	chatHandler := handler.NewChatHandler(chatService, cfg.Upload.MaxBytes)

	gin.SetMode(gin.ReleaseMode)
	router := handler.SetupRouter(cfg, chatHandler)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("Server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	chatService.Close()
	logger.Info("Server stopped")
}
