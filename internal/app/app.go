// internal/app/app.go
package app

import (
	"fmt"
	"time"

	"github.com/Pin4sf/loom-converter/internal/config"
	"github.com/Pin4sf/loom-converter/internal/di"
	"github.com/Pin4sf/loom-converter/internal/services"
	"github.com/Pin4sf/loom-converter/internal/storage"
)

// InitServices builds every service in dependency order and registers
// them in the DI container. Call after config.InitConfig.
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	container.Register("storage", fileStorage)

	credentialService, err := services.NewCredentialService(fileStorage)
	if err != nil {
		return fmt.Errorf("failed to initialize credential service: %w", err)
	}
	container.Register("credentials", credentialService)

	llmService := services.NewLLMService()
	container.Register("llm", llmService)

	contentService := services.NewContentService(llmService)
	container.Register("content", contentService)

	progressService := services.NewProgressService()
	progressService.StartCleanup(10*time.Minute, time.Hour)
	container.Register("progress", progressService)

	pipelineService := services.NewPipelineService(contentService, progressService, fileStorage)
	container.Register("pipeline", pipelineService)

	return nil
}
