// internal/services/credential_service.go
package services

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/Pin4sf/loom-converter/internal/config"
	"github.com/Pin4sf/loom-converter/internal/models"
	"github.com/Pin4sf/loom-converter/internal/storage"
	"github.com/Pin4sf/loom-converter/internal/utils"
)

const (
	credentialsFile = "credentials.json"
	secretKeyFile   = "secret.key"
)

// storedCredentials is the on-disk shape, API keys encrypted at rest.
type storedCredentials struct {
	AnthropicAPIKey   string `json:"anthropic_api_key,omitempty"`
	OpenAIAPIKey      string `json:"openai_api_key,omitempty"`
	PreferredProvider string `json:"preferred_provider,omitempty"`
}

// CredentialStatus is the redacted view exposed over the API.
type CredentialStatus struct {
	HasAnthropicKey   bool   `json:"hasAnthropicKey"`
	HasOpenAIKey      bool   `json:"hasOpenAIKey"`
	PreferredProvider string `json:"preferredProvider"`
}

// CredentialService resolves the effective API configuration for a
// request and persists user-saved credentials.
type CredentialService struct {
	storage   *storage.FileStorage
	secretKey string
	mu        sync.RWMutex
}

// NewCredentialService creates the service, generating a machine-local
// encryption key on first run.
func NewCredentialService(fs *storage.FileStorage) (*CredentialService, error) {
	s := &CredentialService{storage: fs}

	if fs.FileExists("", secretKeyFile) {
		data, err := fs.LoadTextFile("", secretKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load secret key: %w", err)
		}
		s.secretKey = string(data)
	} else {
		raw, err := utils.GenerateSecureKey(32)
		if err != nil {
			return nil, err
		}
		s.secretKey = base64.StdEncoding.EncodeToString(raw)
		if err := fs.SaveTextFile("", secretKeyFile, []byte(s.secretKey)); err != nil {
			return nil, fmt.Errorf("failed to save secret key: %w", err)
		}
	}

	return s, nil
}

// Resolve merges configuration layers into the effective APIConfig.
// Earlier overrides win field by field; blanks fall through to the
// environment, then saved credentials, then defaults.
func (s *CredentialService) Resolve(overrides ...models.APIConfig) models.APIConfig {
	var resolved models.APIConfig

	layers := make([]models.APIConfig, 0, len(overrides)+2)
	layers = append(layers, overrides...)

	appCfg := config.GetCurrentConfig()
	layers = append(layers, models.APIConfig{
		AnthropicAPIKey:   appCfg.AnthropicAPIKey,
		OpenAIAPIKey:      appCfg.OpenAIAPIKey,
		PreferredProvider: appCfg.PreferredProvider,
	})

	if saved, err := s.Load(); err == nil {
		layers = append(layers, saved)
	}

	for _, layer := range layers {
		if resolved.AnthropicAPIKey == "" {
			resolved.AnthropicAPIKey = layer.AnthropicAPIKey
		}
		if resolved.OpenAIAPIKey == "" {
			resolved.OpenAIAPIKey = layer.OpenAIAPIKey
		}
		if resolved.PreferredProvider == "" {
			resolved.PreferredProvider = layer.PreferredProvider
		}
	}

	if resolved.PreferredProvider == "" {
		resolved.PreferredProvider = models.ProviderAnthropic
	}

	return resolved
}

// Save persists credentials with the API keys encrypted.
func (s *CredentialService) Save(cfg models.APIConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := storedCredentials{PreferredProvider: cfg.PreferredProvider}

	if cfg.AnthropicAPIKey != "" {
		enc, err := utils.Encrypt(cfg.AnthropicAPIKey, s.secretKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt anthropic key: %w", err)
		}
		stored.AnthropicAPIKey = enc
	}

	if cfg.OpenAIAPIKey != "" {
		enc, err := utils.Encrypt(cfg.OpenAIAPIKey, s.secretKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt openai key: %w", err)
		}
		stored.OpenAIAPIKey = enc
	}

	return s.storage.SaveJSONFile("", credentialsFile, stored)
}

// Load reads and decrypts saved credentials. Missing file yields an
// empty config without error.
func (s *CredentialService) Load() (models.APIConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cfg models.APIConfig

	if !s.storage.FileExists("", credentialsFile) {
		return cfg, nil
	}

	var stored storedCredentials
	if err := s.storage.LoadJSONFile("", credentialsFile, &stored); err != nil {
		return cfg, err
	}

	cfg.PreferredProvider = stored.PreferredProvider

	if stored.AnthropicAPIKey != "" {
		key, err := utils.Decrypt(stored.AnthropicAPIKey, s.secretKey)
		if err != nil {
			return models.APIConfig{}, fmt.Errorf("failed to decrypt anthropic key: %w", err)
		}
		cfg.AnthropicAPIKey = key
	}

	if stored.OpenAIAPIKey != "" {
		key, err := utils.Decrypt(stored.OpenAIAPIKey, s.secretKey)
		if err != nil {
			return models.APIConfig{}, fmt.Errorf("failed to decrypt openai key: %w", err)
		}
		cfg.OpenAIAPIKey = key
	}

	return cfg, nil
}

// Status reports which credentials are configured, never the keys.
func (s *CredentialService) Status(overrides ...models.APIConfig) CredentialStatus {
	cfg := s.Resolve(overrides...)
	return CredentialStatus{
		HasAnthropicKey:   cfg.AnthropicAPIKey != "",
		HasOpenAIKey:      cfg.OpenAIAPIKey != "",
		PreferredProvider: cfg.PreferredProvider,
	}
}
