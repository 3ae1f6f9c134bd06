// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Pin4sf/loom-converter/internal/api"
	"github.com/Pin4sf/loom-converter/internal/app"
	"github.com/Pin4sf/loom-converter/internal/config"
	"github.com/Pin4sf/loom-converter/internal/utils"

	// Provider registration
	_ "github.com/Pin4sf/loom-converter/internal/llm/providers/anthropic"
	_ "github.com/Pin4sf/loom-converter/internal/llm/providers/openai"
)

func main() {
	log.Println("Starting loom-converter server...")

	// 1. Base configuration from env
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Required directories
	createDirectories(baseConfig)

	// 3. Configuration system (merges saved config.json)
	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	// 4. Logging
	if err := utils.InitLogger(filepath.Join(baseConfig.LogDir, "server.log")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	if baseConfig.DebugMode {
		utils.GetLogger().SetLogLevel(utils.DEBUG)
	}

	// 5. Services, in dependency order
	if err := app.InitServices(); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// 6. Routes
	router, err := api.SetupRouter()
	if err != nil {
		log.Fatalf("Failed to set up router: %v", err)
	}

	log.Printf("Server listening on port %s", baseConfig.Port)

	setupGracefulShutdown(router, baseConfig.Port)
}

func createDirectories(cfg *config.Config) {
	dirs := []string{
		cfg.DataDir,
		filepath.Join(cfg.DataDir, "sessions"),
		cfg.LogDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}

func setupGracefulShutdown(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shut down: %v", err)
	}

	log.Println("Server exited")
}
