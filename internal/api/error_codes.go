// internal/api/error_codes.go
package api

// API error code constants
const (
	// Generic
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorUnauthorized  = "UNAUTHORIZED"

	// Session errors
	ErrorSessionNotFound = "SESSION_NOT_FOUND"
	ErrorIdeaNotFound    = "IDEA_NOT_FOUND"
	ErrorScriptNotFound  = "SCRIPT_NOT_FOUND"

	// Pipeline errors
	ErrorSelectionRequired = "SELECTION_REQUIRED"
	ErrorStageInvalid      = "STAGE_INVALID"

	// LLM service errors
	ErrorLLMConfigInvalid = "LLM_CONFIG_INVALID"
	ErrorAuthFailed       = "AUTH_FAILED"
	ErrorRateLimited      = "RATE_LIMITED"
	ErrorTimeout          = "TIMEOUT"
	ErrorEmptyResponse    = "EMPTY_RESPONSE"
	ErrorParseFailed      = "PARSE_FAILED"
	ErrorProviderFailed   = "PROVIDER_FAILED"

	// Credential errors
	ErrorCredentialSaveFailed = "CREDENTIAL_SAVE_FAILED"
)
