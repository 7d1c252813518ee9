package config

import "os"

// GeminiModels defines which Gemini models to use for different tasks
type GeminiModels struct {
	// Classify is for per-answer trait classification (needs to be fast)
	Classify string `json:"classify"`

	// Episode is for scoring the twelve behavioral dimensions of one
	// observation episode (quality over speed, runs in the background)
	Episode string `json:"episode"`

	// Narrative is for the downstream characteristic text (deep, streamed)
	Narrative string `json:"narrative"`
}

// AIConfig holds all text-generation configuration
type AIConfig struct {
	APIKey     string       `json:"-"` // Never serialize
	BaseURL    string       `json:"baseUrl"`
	Models     GeminiModels `json:"models"`
	TimeoutMS  int          `json:"timeoutMs"`
	MaxRetries int          `json:"maxRetries"`
}

// DefaultAIConfig returns the default text-generation configuration
func DefaultAIConfig() *AIConfig {
	return &AIConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		BaseURL: "https://generativelanguage.googleapis.com/v1beta/models",
		Models: GeminiModels{
			Classify:  getEnv("GEMINI_MODEL_CLASSIFY", "gemini-2.5-flash"),
			Episode:   getEnv("GEMINI_MODEL_EPISODE", "gemini-2.0-flash"),
			Narrative: getEnv("GEMINI_MODEL_NARRATIVE", "gemini-2.0-flash"),
		},
		TimeoutMS:  10000,
		MaxRetries: 3,
	}
}

// IsEnabled returns true if the text-generation API is configured
func (c *AIConfig) IsEnabled() bool {
	return c.APIKey != ""
}

// ModelEndpoint returns the full generateContent endpoint for a model
func (c *AIConfig) ModelEndpoint(model string) string {
	return c.BaseURL + "/" + model + ":generateContent"
}

// StreamEndpoint returns the streaming endpoint for a model
func (c *AIConfig) StreamEndpoint(model string) string {
	return c.BaseURL + "/" + model + ":streamGenerateContent?alt=sse"
}
