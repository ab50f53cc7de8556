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

	"engagement-engine/internal/composer"
	"engagement-engine/internal/config"
	"engagement-engine/internal/conversation"
	"engagement-engine/internal/handler"
	"engagement-engine/internal/knowledge"
	"engagement-engine/internal/metrics"
	"engagement-engine/internal/service"
	"engagement-engine/internal/storage"
	"engagement-engine/pkg/logger"

	"github.com/gin-contrib/cors"
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

	kb, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		logger.Fatalf("Failed to load knowledge base: %v", err)
	}
	logger.Infof("Knowledge base loaded: %d intents, %d fallbacks, %d suggestions",
		len(kb.Intents), len(kb.Fallbacks), len(kb.Suggestions))

	store := openStorage(&cfg.Storage)

	c := composer.New(kb,
		composer.WithRand(composer.NewRand(cfg.Engine.RandomSeed)),
		composer.WithDelayPolicy(composer.DelayPolicy{
			PerChar: cfg.Engine.DelayPerChar,
			Min:     cfg.Engine.MinDelay,
			Max:     cfg.Engine.MaxDelay,
		}),
	)
	engine := conversation.NewEngine(c, conversation.WithSuggestionCount(cfg.Engine.SuggestionCount))
	chatService := service.NewChatService(store, engine, &cfg.Session)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	chatService.StartCleanup(ctx)
	chatService.StartBackup(ctx, cfg.Storage.BackupInterval)

	router := setupRouter(cfg, handler.NewChatHandler(chatService))

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

	logger.Info("Shutting down...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	if err := chatService.Close(); err != nil {
		logger.Errorf("Storage close failed: %v", err)
	}
	logger.Info("Server stopped")
}

// openStorage falls back to memory when the configured backend can't start.
func openStorage(cfg *config.StorageConfig) storage.Storage {
	store, err := storage.New(cfg)
	if err == nil {
		err = store.Init()
	}
	if err != nil {
		logger.Errorf("Failed to initialize %s storage, using memory: %v", cfg.Type, err)
		store = storage.NewMemoryStorage()
		_ = store.Init()
	}
	return store
}

func setupRouter(cfg *config.Config, chatHandler *handler.ChatHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

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
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	api := router.Group("/api")
	chatHandler.Register(api.Group("/chat"))

	return router
}
