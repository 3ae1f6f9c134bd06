// internal/api/handlers.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Pin4sf/loom-converter/internal/config"
	"github.com/Pin4sf/loom-converter/internal/models"
	"github.com/Pin4sf/loom-converter/internal/services"
)

// Handler processes API requests
type Handler struct {
	ContentService    *services.ContentService
	PipelineService   *services.PipelineService
	CredentialService *services.CredentialService
	ProgressService   *services.ProgressService
	Response          *ResponseHelper
}

// NewHandler creates the API handler
func NewHandler(
	contentService *services.ContentService,
	pipelineService *services.PipelineService,
	credentialService *services.CredentialService,
	progressService *services.ProgressService,
) *Handler {
	return &Handler{
		ContentService:    contentService,
		PipelineService:   pipelineService,
		CredentialService: credentialService,
		ProgressService:   progressService,
		Response:          NewResponseHelper(),
	}
}

// APIResponse is the standard response envelope
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError is the standard error payload
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// apiCredentials are the per-request credential fields accepted by the
// generation endpoints, flat in the body.
type apiCredentials struct {
	AnthropicAPIKey   string `json:"anthropicApiKey"`
	OpenAIAPIKey      string `json:"openaiApiKey"`
	PreferredProvider string `json:"preferredProvider"`
}

func (a apiCredentials) toConfig() models.APIConfig {
	return models.APIConfig{
		AnthropicAPIKey:   a.AnthropicAPIKey,
		OpenAIAPIKey:      a.OpenAIAPIKey,
		PreferredProvider: a.PreferredProvider,
	}
}

// Credential cookie names, shared with SetCredentials
const (
	cookieAnthropicKey      = "anthropic-api-key"
	cookieOpenAIKey         = "openai-api-key"
	cookiePreferredProvider = "preferred-provider"
	cookieHasAPIConfig      = "hasApiConfig"

	credentialCookieMaxAge = 60 * 60 * 24 * 7 // one week
)

// resolveAPIConfig layers request-body credentials over cookies, the
// environment and the saved store.
func (h *Handler) resolveAPIConfig(c *gin.Context, body models.APIConfig) models.APIConfig {
	var cookieCfg models.APIConfig
	if v, err := c.Cookie(cookieAnthropicKey); err == nil {
		cookieCfg.AnthropicAPIKey = v
	}
	if v, err := c.Cookie(cookieOpenAIKey); err == nil {
		cookieCfg.OpenAIAPIKey = v
	}
	if v, err := c.Cookie(cookiePreferredProvider); err == nil {
		cookieCfg.PreferredProvider = v
	}

	return h.CredentialService.Resolve(body, cookieCfg)
}

// Health reports service liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ------------------------------------------------
// Stateless generation endpoints
// ------------------------------------------------

// TestConnection runs a minimal completion to verify the configured key
func (h *Handler) TestConnection(c *gin.Context) {
	var req apiCredentials
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	apiCfg := h.resolveAPIConfig(c, req.toConfig())

	text, err := h.ContentService.TestConnection(c.Request.Context(), apiCfg)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, gin.H{
		"provider": apiCfg.PreferredProvider,
		"response": text,
	}, apiCfg.ProviderLabel()+" API connection successful")
}

// GenerateIdeasRequest is the body of POST /api/generate-ideas
type GenerateIdeasRequest struct {
	apiCredentials
	Transcript   string `json:"transcript"`
	Instructions string `json:"instructions"`
}

// GenerateIdeas produces content ideas from a transcript
func (h *Handler) GenerateIdeas(c *gin.Context) {
	var req GenerateIdeasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	apiCfg := h.resolveAPIConfig(c, req.toConfig())

	ideas, err := h.ContentService.GenerateIdeas(c.Request.Context(), apiCfg, req.Transcript, req.Instructions)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, ideas)
}

// GenerateScriptRequest is the body of POST /api/generate-script
type GenerateScriptRequest struct {
	apiCredentials
	Idea         models.ContentIdea `json:"idea"`
	Transcript   string             `json:"transcript"`
	Instructions string             `json:"instructions"`
}

// GenerateScript writes a video script for one idea
func (h *Handler) GenerateScript(c *gin.Context) {
	var req GenerateScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	apiCfg := h.resolveAPIConfig(c, req.toConfig())

	script, err := h.ContentService.GenerateScript(c.Request.Context(), apiCfg, req.Idea, req.Transcript, req.Instructions)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, script)
}

// RefineScriptRequest is the body of POST /api/refine-script
type RefineScriptRequest struct {
	apiCredentials
	Script       models.VideoScript `json:"script"`
	Instructions string             `json:"instructions"`
}

// RefineScript edits a script per the instructions, keeping its identity
func (h *Handler) RefineScript(c *gin.Context) {
	var req RefineScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	apiCfg := h.resolveAPIConfig(c, req.toConfig())

	refined, err := h.ContentService.RefineScript(c.Request.Context(), apiCfg, req.Script, req.Instructions)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, refined)
}

// RegenerateScriptRequest is the body of POST /api/regenerate-script
type RegenerateScriptRequest struct {
	apiCredentials
	Idea         models.ContentIdea `json:"idea"`
	Transcript   string             `json:"transcript"`
	Instructions string             `json:"instructions"`
}

// RegenerateScript writes a brand new script for the idea
func (h *Handler) RegenerateScript(c *gin.Context) {
	var req RegenerateScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	apiCfg := h.resolveAPIConfig(c, req.toConfig())

	script, err := h.ContentService.RegenerateScript(c.Request.Context(), apiCfg, req.Idea, req.Transcript, req.Instructions)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, script)
}

// GenerateLinkedInPostRequest is the body of POST /api/generate-linkedin-post
type GenerateLinkedInPostRequest struct {
	apiCredentials
	Script models.VideoScript `json:"script"`
}

// GenerateLinkedInPost promotes a script as a LinkedIn update
func (h *Handler) GenerateLinkedInPost(c *gin.Context) {
	var req GenerateLinkedInPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	apiCfg := h.resolveAPIConfig(c, req.toConfig())

	post, err := h.ContentService.GenerateLinkedInPost(c.Request.Context(), apiCfg, req.Script)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, post)
}

// ------------------------------------------------
// Credential endpoints
// ------------------------------------------------

// SetCredentials stores API keys in http-only cookies and the saved
// store. A readable marker cookie tells browser clients that the
// http-only ones are set.
func (h *Handler) SetCredentials(c *gin.Context) {
	var req apiCredentials
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	secure := !config.GetCurrentConfig().DebugMode
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteStrictMode
	}
	c.SetSameSite(sameSite)

	c.SetCookie(cookieAnthropicKey, req.AnthropicAPIKey, credentialCookieMaxAge, "/", "", secure, true)
	c.SetCookie(cookieOpenAIKey, req.OpenAIAPIKey, credentialCookieMaxAge, "/", "", secure, true)
	c.SetCookie(cookiePreferredProvider, req.PreferredProvider, credentialCookieMaxAge, "/", "", secure, true)
	c.SetCookie(cookieHasAPIConfig, "true", credentialCookieMaxAge, "/", "", secure, false)

	if err := h.CredentialService.Save(req.toConfig()); err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorCredentialSaveFailed, "Failed to set credentials", err.Error())
		return
	}

	h.Response.Success(c, nil, "Credentials saved")
}

// GetCredentialStatus reports which keys are configured, never the keys
func (h *Handler) GetCredentialStatus(c *gin.Context) {
	var cookieCfg models.APIConfig
	if v, err := c.Cookie(cookieAnthropicKey); err == nil {
		cookieCfg.AnthropicAPIKey = v
	}
	if v, err := c.Cookie(cookieOpenAIKey); err == nil {
		cookieCfg.OpenAIAPIKey = v
	}
	if v, err := c.Cookie(cookiePreferredProvider); err == nil {
		cookieCfg.PreferredProvider = v
	}

	h.Response.Success(c, h.CredentialService.Status(cookieCfg))
}

// ------------------------------------------------
// Session endpoints
// ------------------------------------------------

// CreateSessionRequest is the body of POST /api/sessions
type CreateSessionRequest struct {
	Transcript   string `json:"transcript"`
	Instructions string `json:"instructions"`
}

// CreateSession starts a pipeline session for one transcript
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	session, err := h.PipelineService.CreateSession(req.Transcript, req.Instructions)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Created(c, session, "Session created")
}

// GetSession returns the full session state
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.PipelineService.GetSession(c.Param("id"))
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session)
}

// RunPipeline kicks off a full background run and returns a task id
// for progress subscription.
func (h *Handler) RunPipeline(c *gin.Context) {
	var req apiCredentials
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	apiCfg := h.resolveAPIConfig(c, req.toConfig())

	taskID, err := h.PipelineService.StartRunAll(c.Param("id"), apiCfg)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, gin.H{
		"session_id": c.Param("id"),
		"task_id":    taskID,
	}, "Pipeline started")
}

// RunStepRequest is the body of POST /api/sessions/:id/step
type RunStepRequest struct {
	apiCredentials
	StepPrompt string `json:"stepPrompt"`
}

// RunStep advances the session one checkpoint. An optional step prompt
// applies to the stage about to execute.
func (h *Handler) RunStep(c *gin.Context) {
	var req RunStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	apiCfg := h.resolveAPIConfig(c, req.toConfig())

	session, err := h.PipelineService.RunNextStep(c.Request.Context(), c.Param("id"), apiCfg, req.StepPrompt)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session)
}

// PauseSession sets the advisory pause flag
func (h *Handler) PauseSession(c *gin.Context) {
	session, err := h.PipelineService.Pause(c.Param("id"))
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session, "Session paused")
}

// ResumeSession clears the pause flag
func (h *Handler) ResumeSession(c *gin.Context) {
	session, err := h.PipelineService.Resume(c.Param("id"))
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session, "Session resumed")
}

// SelectIdeaRequest is the body of POST /api/sessions/:id/select-idea
type SelectIdeaRequest struct {
	apiCredentials
	IdeaID string `json:"ideaId"`
}

// SelectIdea marks an idea selected and backfills a missing LinkedIn
// post when its script already exists.
func (h *Handler) SelectIdea(c *gin.Context) {
	var req SelectIdeaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	apiCfg := h.resolveAPIConfig(c, req.toConfig())

	session, err := h.PipelineService.SelectIdea(c.Request.Context(), c.Param("id"), req.IdeaID, apiCfg)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session)
}

// SelectScriptRequest is the body of POST /api/sessions/:id/select-script
type SelectScriptRequest struct {
	ScriptID string `json:"scriptId"`
}

// SelectScript marks a script selected
func (h *Handler) SelectScript(c *gin.Context) {
	var req SelectScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	session, err := h.PipelineService.SelectScript(c.Param("id"), req.ScriptID)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, session)
}

// UpdateIdea replaces an idea after manual editing
func (h *Handler) UpdateIdea(c *gin.Context) {
	var idea models.ContentIdea
	if err := c.ShouldBindJSON(&idea); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	idea.ID = c.Param("ideaID")

	if err := h.PipelineService.UpdateIdea(c.Param("id"), idea); err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, idea)
}

// UpdateScript replaces a script after manual editing
func (h *Handler) UpdateScript(c *gin.Context) {
	var script models.VideoScript
	if err := c.ShouldBindJSON(&script); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}
	script.ID = c.Param("scriptID")

	if err := h.PipelineService.UpdateScript(c.Param("id"), script); err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, script)
}

// RefineSessionScriptRequest is the body of the session refine endpoint
type RefineSessionScriptRequest struct {
	apiCredentials
	Instructions string `json:"instructions"`
}

// RefineSessionScript refines a script stored in the session, in place
func (h *Handler) RefineSessionScript(c *gin.Context) {
	var req RefineSessionScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	apiCfg := h.resolveAPIConfig(c, req.toConfig())

	refined, err := h.PipelineService.RefineScript(c.Request.Context(), c.Param("id"), c.Param("scriptID"), req.Instructions, apiCfg)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, refined)
}

// RegenerateSessionScriptRequest is the body of the session regenerate endpoint
type RegenerateSessionScriptRequest struct {
	apiCredentials
	Instructions string `json:"instructions"`
}

// RegenerateSessionScript replaces the script for an idea with a fresh one
func (h *Handler) RegenerateSessionScript(c *gin.Context) {
	var req RegenerateSessionScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	apiCfg := h.resolveAPIConfig(c, req.toConfig())

	script, err := h.PipelineService.RegenerateScript(c.Request.Context(), c.Param("id"), c.Param("ideaID"), req.Instructions, apiCfg)
	if err != nil {
		h.Response.AppError(c, err)
		return
	}

	h.Response.Success(c, script)
}
