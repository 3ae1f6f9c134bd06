// internal/llm/status_error.go
package llm

import "fmt"

// StatusError reports a non-2xx HTTP status from a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error(%d): %s", e.Provider, e.StatusCode, e.Body)
}
