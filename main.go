package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github/itish2003/pdfchat/config"
	"github/itish2003/pdfchat/controller"
	"github/itish2003/pdfchat/llm"
	"github/itish2003/pdfchat/middleware"
	"github/itish2003/pdfchat/services"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/gin-gonic/gin"
)

const (
	EndPointHealth     = "/health"
	EndPointUploadPDF  = "/upload-pdf"
	EndPointChatStream = "/chat_stream"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := llm.NewProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to create LLM provider: %v", err)
	}
	log.WithFields(log.Fields{
		"provider": provider.Name(),
		"model":    provider.Model(),
	}).Info("LLM provider ready")

	extractor, err := services.NewExtractor(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to create PDF extractor: %v", err)
	}

	store := services.NewContextStore()
	chatService := services.NewChatService(store, provider)
	chatController := controller.NewChatController(extractor, store, chatService)

	if cfg.WatchDir != "" {
		inbox := services.NewInboxService(extractor, store)
		go inbox.WatchDirectory(ctx, cfg.WatchDir)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.CORSMiddleware())

	router.GET(EndPointHealth, chatController.Health)
	router.POST(EndPointUploadPDF, chatController.UploadPDF)
	router.GET(EndPointChatStream, chatController.ChatStream)

	log.Infof("Go Gin backend server starting on http://localhost:%s", cfg.Port)
	log.Infof("  GET  http://localhost:%s%s", cfg.Port, EndPointHealth)
	log.Infof("  POST http://localhost:%s%s", cfg.Port, EndPointUploadPDF)
	log.Infof("  GET  http://localhost:%s%s", cfg.Port, EndPointChatStream)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("FATAL: Failed to start server: %v", err)
	}
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetHandler(jsonhandler.New(os.Stderr))
	} else {
		log.SetHandler(text.New(os.Stderr))
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
