// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Pin4sf/loom-converter/internal/config"
	"github.com/Pin4sf/loom-converter/internal/di"
	"github.com/Pin4sf/loom-converter/internal/services"
)

// SetupRouter configures the HTTP routes. Services must already be
// registered in the DI container.
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	container := di.GetContainer()

	contentService, ok := container.Get("content").(*services.ContentService)
	if !ok {
		return nil, fmt.Errorf("content service not initialized")
	}

	pipelineService, ok := container.Get("pipeline").(*services.PipelineService)
	if !ok {
		return nil, fmt.Errorf("pipeline service not initialized")
	}

	credentialService, ok := container.Get("credentials").(*services.CredentialService)
	if !ok {
		return nil, fmt.Errorf("credential service not initialized")
	}

	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("progress service not initialized")
	}

	handler := NewHandler(contentService, pipelineService, credentialService, progressService)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(corsMiddleware())
	r.Use(RequestIDMiddleware())

	r.GET("/health", handler.Health)

	// WebSocket progress stream
	r.GET("/ws/pipeline/:taskID", handler.PipelineWebSocket)

	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		// Credential management
		api.POST("/set-credentials", handler.SetCredentials)
		api.GET("/credentials/status", handler.GetCredentialStatus)

		// Progress polling fallback
		api.GET("/progress/:taskID", handler.SubscribeProgress)

		// Stateless generation endpoints
		generation := api.Group("")
		generation.Use(GenerationRateLimit())
		{
			generation.POST("/test-connection", handler.TestConnection)
			generation.POST("/generate-ideas", handler.GenerateIdeas)
			generation.POST("/generate-script", handler.GenerateScript)
			generation.POST("/refine-script", handler.RefineScript)
			generation.POST("/regenerate-script", handler.RegenerateScript)
			generation.POST("/generate-linkedin-post", handler.GenerateLinkedInPost)
		}

		// Session pipeline
		sessions := api.Group("/sessions")
		{
			sessions.POST("", handler.CreateSession)
			sessions.GET("/:id", handler.GetSession)
			sessions.POST("/:id/run", handler.RunPipeline)
			sessions.POST("/:id/step", handler.RunStep)
			sessions.POST("/:id/pause", handler.PauseSession)
			sessions.POST("/:id/resume", handler.ResumeSession)
			sessions.POST("/:id/select-idea", handler.SelectIdea)
			sessions.POST("/:id/select-script", handler.SelectScript)
			sessions.PUT("/:id/ideas/:ideaID", handler.UpdateIdea)
			sessions.PUT("/:id/scripts/:scriptID", handler.UpdateScript)
			sessions.POST("/:id/ideas/:ideaID/regenerate", handler.RegenerateSessionScript)
			sessions.POST("/:id/scripts/:scriptID/refine", handler.RefineSessionScript)
		}
	}

	return r, nil
}

// corsMiddleware implements cross-origin resource sharing
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
