// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies a failure of the generation pipeline.
type ErrorType string

const (
	// ErrorTypeConfig means the API configuration is missing or unusable.
	ErrorTypeConfig ErrorType = "config_error"
	// ErrorTypeAuth means the provider rejected the API key.
	ErrorTypeAuth ErrorType = "auth_error"
	// ErrorTypeRateLimit means the provider reported too many requests.
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeTimeout means a generation call exceeded its stage budget.
	ErrorTypeTimeout ErrorType = "timeout_error"
	// ErrorTypeEmptyResponse means the provider returned a blank text body.
	ErrorTypeEmptyResponse ErrorType = "empty_response_error"
	// ErrorTypeParse means model output could not be coerced into the
	// expected JSON structure.
	ErrorTypeParse ErrorType = "parse_error"
	// ErrorTypeSelection means a step was invoked before its prerequisite
	// entity was selected.
	ErrorTypeSelection ErrorType = "selection_error"
	// ErrorTypeValidation means the request payload itself was invalid.
	ErrorTypeValidation ErrorType = "validation_error"
	// ErrorTypeNotFound means a referenced session or artifact does not exist.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeProvider covers any other provider-side failure.
	ErrorTypeProvider ErrorType = "provider_error"
)

// AppError carries a classified failure with a user-facing message.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped error for errors.Is/As chains.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError of the given type.
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewConfigError reports a missing or unusable API configuration.
func NewConfigError(message string) *AppError {
	return NewAppError(ErrorTypeConfig, message, nil)
}

// NewAuthError reports an authentication failure with the provider.
func NewAuthError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeAuth, message, originalError)
}

// NewRateLimitError reports a provider rate limit.
func NewRateLimitError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeRateLimit, message, originalError)
}

// NewTimeoutError reports an expired generation call.
func NewTimeoutError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTimeout, message, originalError)
}

// NewEmptyResponseError reports a blank provider response.
func NewEmptyResponseError(message string) *AppError {
	return NewAppError(ErrorTypeEmptyResponse, message, nil)
}

// NewParseError reports unparseable model output.
func NewParseError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeParse, message, originalError)
}

// NewSelectionError reports a step run without its prerequisite selection.
func NewSelectionError(message string) *AppError {
	return NewAppError(ErrorTypeSelection, message, nil)
}

// NewValidationError reports an invalid request payload.
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError reports a missing session or artifact.
func NewNotFoundError(message string) *AppError {
	return NewAppError(ErrorTypeNotFound, message, nil)
}

// NewProviderError reports an otherwise unclassified provider failure.
func NewProviderError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeProvider, message, originalError)
}

// TypeOf returns the classified type, or ErrorTypeProvider for plain errors.
func TypeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ErrorTypeProvider
}

// IsConfigError reports whether err is a configuration failure.
func IsConfigError(err error) bool {
	return isType(err, ErrorTypeConfig)
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	return isType(err, ErrorTypeAuth)
}

// IsRateLimitError reports whether err is a rate limit failure.
func IsRateLimitError(err error) bool {
	return isType(err, ErrorTypeRateLimit)
}

// IsTimeoutError reports whether err is a timeout.
func IsTimeoutError(err error) bool {
	return isType(err, ErrorTypeTimeout)
}

// IsEmptyResponseError reports whether err is a blank-response failure.
func IsEmptyResponseError(err error) bool {
	return isType(err, ErrorTypeEmptyResponse)
}

// IsParseError reports whether err is a parse failure.
func IsParseError(err error) bool {
	return isType(err, ErrorTypeParse)
}

// IsSelectionError reports whether err is a missing-selection failure.
func IsSelectionError(err error) bool {
	return isType(err, ErrorTypeSelection)
}

// IsNotFoundError reports whether err is a missing-resource failure.
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

func isType(err error, errType ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == errType
	}
	return false
}

// generateErrorCode maps an error type to its wire code.
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeConfig:
		return "CONFIG_ERROR"
	case ErrorTypeAuth:
		return "AUTH_ERROR"
	case ErrorTypeRateLimit:
		return "RATE_LIMIT"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeEmptyResponse:
		return "EMPTY_RESPONSE"
	case ErrorTypeParse:
		return "PARSE_ERROR"
	case ErrorTypeSelection:
		return "SELECTION_ERROR"
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeProvider:
		return "PROVIDER_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError attaches a message to an existing error, preserving its
// classification when it is already an AppError.
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
