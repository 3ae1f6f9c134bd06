// internal/models/api_config.go
package models

import "strings"

// Provider names accepted by the generation endpoints.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// APIConfig is the caller-supplied provider configuration. The key matching
// PreferredProvider must be non-blank for a generation call to succeed; this
// is validated at call time, not at construction.
type APIConfig struct {
	AnthropicAPIKey   string `json:"anthropicApiKey"`
	OpenAIAPIKey      string `json:"openaiApiKey"`
	PreferredProvider string `json:"preferredProvider"`
}

// IsEmpty reports whether no key is present at all.
func (c APIConfig) IsEmpty() bool {
	return strings.TrimSpace(c.AnthropicAPIKey) == "" &&
		strings.TrimSpace(c.OpenAIAPIKey) == ""
}

// PreferredKey returns the API key for the preferred provider.
func (c APIConfig) PreferredKey() string {
	if c.PreferredProvider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.AnthropicAPIKey
}

// ProviderLabel returns the display name for the preferred provider.
func (c APIConfig) ProviderLabel() string {
	if c.PreferredProvider == ProviderOpenAI {
		return "OpenAI"
	}
	return "Anthropic"
}
