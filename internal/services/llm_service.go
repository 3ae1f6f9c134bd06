// internal/services/llm_service.go
package services

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	"github.com/Pin4sf/loom-converter/internal/config"
	"github.com/Pin4sf/loom-converter/internal/errors"
	"github.com/Pin4sf/loom-converter/internal/llm"
	"github.com/Pin4sf/loom-converter/internal/models"
	"github.com/Pin4sf/loom-converter/internal/utils"
)

// LLMService dispatches prompts to the configured provider and
// normalizes provider failures into the application error taxonomy.
type LLMService struct {
	// BaseURL overrides the provider endpoint when set. Used by tests.
	BaseURL string

	logger *utils.Logger

	mu    sync.Mutex
	cache map[string]llm.Provider // provider name + key -> initialized provider
}

// NewLLMService creates the dispatch service
func NewLLMService() *LLMService {
	return &LLMService{
		logger: utils.GetLogger(),
		cache:  make(map[string]llm.Provider),
	}
}

// provider returns an initialized provider for the given config,
// reusing a cached instance when the key has not changed.
func (s *LLMService) provider(name, apiKey, defaultModel string) (llm.Provider, error) {
	cacheKey := name + ":" + apiKey + ":" + s.BaseURL

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.cache[cacheKey]; ok {
		return p, nil
	}

	providerConfig := map[string]string{
		"api_key":       apiKey,
		"default_model": defaultModel,
	}
	if s.BaseURL != "" {
		providerConfig["base_url"] = s.BaseURL
	}

	p, err := llm.GetProvider(name, providerConfig)
	if err != nil {
		return nil, err
	}

	s.cache[cacheKey] = p
	return p, nil
}

// Generate runs a single completion under the stage budget and returns
// the raw response text.
func (s *LLMService) Generate(ctx context.Context, apiCfg models.APIConfig, prompt string, budget config.StageBudget) (string, error) {
	providerName := apiCfg.PreferredProvider
	if providerName == "" {
		providerName = models.ProviderAnthropic
	}

	appCfg := config.GetCurrentConfig()

	var model string
	switch providerName {
	case models.ProviderAnthropic:
		if strings.TrimSpace(apiCfg.AnthropicAPIKey) == "" {
			return "", errors.NewConfigError("Anthropic API key is missing. Please add your API key in settings.")
		}
		model = appCfg.AnthropicModel
	case models.ProviderOpenAI:
		if strings.TrimSpace(apiCfg.OpenAIAPIKey) == "" {
			return "", errors.NewConfigError("OpenAI API key is missing. Please add your API key in settings.")
		}
		model = appCfg.OpenAIModel
	default:
		return "", errors.NewConfigError("No valid API configuration found. Please check your API settings.")
	}

	p, err := s.provider(providerName, apiCfg.PreferredKey(), model)
	if err != nil {
		return "", errors.NewProviderError("failed to initialize AI provider", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, budget.Timeout)
	defer cancel()

	s.logger.Debug("dispatching completion", map[string]interface{}{
		"provider":   providerName,
		"model":      model,
		"max_tokens": budget.MaxTokens,
	})

	resp, err := p.CompleteText(timeoutCtx, llm.CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   budget.MaxTokens,
		Temperature: budget.Temperature,
		Model:       model,
	})
	if err != nil {
		return "", s.classify(err)
	}

	if strings.TrimSpace(resp.Text) == "" {
		return "", errors.NewEmptyResponseError("Received empty response from AI service.")
	}

	return resp.Text, nil
}

// classify maps raw provider failures onto the application taxonomy.
func (s *LLMService) classify(err error) error {
	var statusErr *llm.StatusError
	if stderrors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 401, 403:
			return errors.NewAuthError("API authentication failed. Please check your API key and ensure it's correctly formatted.", err)
		case 429:
			return errors.NewRateLimitError("Rate limit exceeded. Please try again later.", err)
		}
		return errors.NewProviderError(statusErr.Error(), err)
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTimeoutError("Request timed out. The API didn't respond in time.", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized"):
		return errors.NewAuthError("API authentication failed. Please check your API key and ensure it's correctly formatted.", err)
	case strings.Contains(msg, "429"):
		return errors.NewRateLimitError("Rate limit exceeded. Please try again later.", err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return errors.NewTimeoutError("Request timed out. The API didn't respond in time.", err)
	}

	return errors.NewProviderError(err.Error(), err)
}
