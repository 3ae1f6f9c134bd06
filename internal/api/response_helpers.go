// internal/api/response_helpers.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Pin4sf/loom-converter/internal/errors"
)

// ResponseHelper centralizes the response envelope
type ResponseHelper struct{}

// NewResponseHelper creates a response helper
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success writes a 200 with the standard envelope
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// Created writes a 201 with the standard envelope
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	} else {
		response.Message = "Resource created"
	}

	c.JSON(http.StatusCreated, response)
}

// sanitizeErrorMessage keeps credential material out of error bodies
func sanitizeErrorMessage(message string) string {
	lowered := strings.ToLower(message)
	if strings.Contains(lowered, "api_key=") ||
		strings.Contains(lowered, "secret") ||
		strings.Contains(lowered, "bearer ") {
		return "An internal error occurred"
	}
	return message
}

// Error writes an error response. Message is duplicated at the top
// level so simple clients can read it without unwrapping the envelope.
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	sanitizedMessage := sanitizeErrorMessage(message)

	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizedMessage,
	}

	if len(details) > 0 {
		apiError.Details = sanitizeErrorMessage(details[0])
	}

	response := &APIResponse{
		Success:   false,
		Error:     apiError,
		Message:   sanitizedMessage,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// BadRequest writes a 400
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound writes a 404
func (rh *ResponseHelper) NotFound(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusNotFound, ErrorNotFound, message, details...)
}

// InternalError writes a 500
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// AppError maps an application error onto its HTTP status and code.
func (rh *ResponseHelper) AppError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := ErrorInternalError

	switch errors.TypeOf(err) {
	case errors.ErrorTypeConfig:
		status, code = http.StatusBadRequest, ErrorLLMConfigInvalid
	case errors.ErrorTypeValidation:
		status, code = http.StatusBadRequest, ErrorBadRequest
	case errors.ErrorTypeSelection:
		status, code = http.StatusBadRequest, ErrorSelectionRequired
	case errors.ErrorTypeAuth:
		status, code = http.StatusUnauthorized, ErrorAuthFailed
	case errors.ErrorTypeRateLimit:
		status, code = http.StatusTooManyRequests, ErrorRateLimited
	case errors.ErrorTypeTimeout:
		status, code = http.StatusGatewayTimeout, ErrorTimeout
	case errors.ErrorTypeNotFound:
		status, code = http.StatusNotFound, ErrorNotFound
	case errors.ErrorTypeParse:
		status, code = http.StatusInternalServerError, ErrorParseFailed
	case errors.ErrorTypeEmptyResponse:
		status, code = http.StatusInternalServerError, ErrorEmptyResponse
	case errors.ErrorTypeProvider:
		status, code = http.StatusInternalServerError, ErrorProviderFailed
	}

	rh.Error(c, status, code, err.Error())
}

// getRequestID reads the request id set by middleware, if any
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	if requestID := c.GetString("request_id"); requestID != "" {
		return requestID
	}
	return ""
}
