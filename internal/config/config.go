// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// StageBudget is the generation budget for a pipeline stage. These come from
// configuration so a deployment can tune them without touching call sites.
type StageBudget struct {
	Timeout     time.Duration `json:"timeout_ms"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

// MarshalJSON stores the timeout as milliseconds.
func (b StageBudget) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TimeoutMS   int64   `json:"timeout_ms"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
	}{b.Timeout.Milliseconds(), b.MaxTokens, b.Temperature})
}

// UnmarshalJSON restores the timeout from milliseconds.
func (b *StageBudget) UnmarshalJSON(data []byte) error {
	var raw struct {
		TimeoutMS   int64   `json:"timeout_ms"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Timeout = time.Duration(raw.TimeoutMS) * time.Millisecond
	b.MaxTokens = raw.MaxTokens
	b.Temperature = raw.Temperature
	return nil
}

// StageBudgets holds one budget per generation stage.
type StageBudgets struct {
	ConnectionTest StageBudget `json:"connection_test"`
	Ideas          StageBudget `json:"ideas"`
	Script         StageBudget `json:"script"`
	Refine         StageBudget `json:"refine"`
	Regenerate     StageBudget `json:"regenerate"`
	LinkedIn       StageBudget `json:"linkedin"`
}

// DefaultStageBudgets mirrors the limits the hosted frontend runs with.
func DefaultStageBudgets() StageBudgets {
	return StageBudgets{
		ConnectionTest: StageBudget{Timeout: 10 * time.Second, MaxTokens: 20, Temperature: 0.1},
		Ideas:          StageBudget{Timeout: 30 * time.Second, MaxTokens: 1000, Temperature: 0.7},
		Script:         StageBudget{Timeout: 60 * time.Second, MaxTokens: 2000, Temperature: 0.7},
		Refine:         StageBudget{Timeout: 60 * time.Second, MaxTokens: 2000, Temperature: 0.7},
		Regenerate:     StageBudget{Timeout: 60 * time.Second, MaxTokens: 2000, Temperature: 0.7},
		LinkedIn:       StageBudget{Timeout: 30 * time.Second, MaxTokens: 1000, Temperature: 0.7},
	}
}

// AppConfig contains the full application configuration.
type AppConfig struct {
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// Server-side provider credentials from the environment. Request-scoped
	// credentials (body or cookies) take precedence over these.
	AnthropicAPIKey   string `json:"anthropic_api_key,omitempty"`
	OpenAIAPIKey      string `json:"openai_api_key,omitempty"`
	PreferredProvider string `json:"preferred_provider"`

	AnthropicModel string `json:"anthropic_model"`
	OpenAIModel    string `json:"openai_model"`

	Budgets StageBudgets `json:"stage_budgets"`
}

// Config stores the environment-derived base configuration.
type Config struct {
	Port              string
	DataDir           string
	LogDir            string
	DebugMode         bool
	AnthropicAPIKey   string
	OpenAIAPIKey      string
	PreferredProvider string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	// .env is optional
	godotenv.Load()

	config := &Config{
		Port:              getEnv("PORT", "8080"),
		DataDir:           getEnvPath("DATA_DIR", "data"),
		LogDir:            getEnvPath("LOG_DIR", "logs"),
		DebugMode:         getEnvBool("DEBUG_MODE", true),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		PreferredProvider: getEnv("PREFERRED_PROVIDER", "anthropic"),
	}

	if config.AnthropicAPIKey == "" && config.OpenAIAPIKey == "" {
		log.Println("warning: no provider API key in environment; callers must supply keys per request or via /api/set-credentials")
	}

	return config, nil
}

// getEnv returns the environment value or a default.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath returns the path from the environment, creating it if needed.
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("warning: failed to create directory %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool returns a boolean environment value.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// InitConfig loads the base configuration, merges any saved config file from
// the data dir and installs the result as the current configuration.
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:              baseConfig.Port,
		DataDir:           baseConfig.DataDir,
		LogDir:            baseConfig.LogDir,
		DebugMode:         baseConfig.DebugMode,
		AnthropicAPIKey:   baseConfig.AnthropicAPIKey,
		OpenAIAPIKey:      baseConfig.OpenAIAPIKey,
		PreferredProvider: baseConfig.PreferredProvider,
		AnthropicModel:    "claude-3-5-sonnet-20241022",
		OpenAIModel:       "gpt-4",
		Budgets:           DefaultStageBudgets(),
	}

	// A saved file keeps budgets and model choices, never the environment
	// overrides for port/dirs/keys.
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode
				savedConfig.AnthropicAPIKey = baseConfig.AnthropicAPIKey
				savedConfig.OpenAIAPIKey = baseConfig.OpenAIAPIKey
				if savedConfig.PreferredProvider == "" {
					savedConfig.PreferredProvider = baseConfig.PreferredProvider
				}
				if savedConfig.AnthropicModel == "" {
					savedConfig.AnthropicModel = "claude-3-5-sonnet-20241022"
				}
				if savedConfig.OpenAIModel == "" {
					savedConfig.OpenAIModel = "gpt-4"
				}
				if savedConfig.Budgets == (StageBudgets{}) {
					savedConfig.Budgets = DefaultStageBudgets()
				}

				currentConfig = &savedConfig
			}
		}
	}

	return SaveConfig()
}

// GetCurrentConfig returns a copy of the current configuration.
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		baseConfig, _ := Load()
		return &AppConfig{
			Port:              baseConfig.Port,
			DataDir:           baseConfig.DataDir,
			LogDir:            baseConfig.LogDir,
			DebugMode:         baseConfig.DebugMode,
			AnthropicAPIKey:   baseConfig.AnthropicAPIKey,
			OpenAIAPIKey:      baseConfig.OpenAIAPIKey,
			PreferredProvider: baseConfig.PreferredProvider,
			AnthropicModel:    "claude-3-5-sonnet-20241022",
			OpenAIModel:       "gpt-4",
			Budgets:           DefaultStageBudgets(),
		}
	}

	configCopy := *currentConfig
	return &configCopy
}

// SaveConfig writes the current configuration to the data dir.
func SaveConfig() error {
	if currentConfig == nil {
		return fmt.Errorf("no configuration to save")
	}

	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
