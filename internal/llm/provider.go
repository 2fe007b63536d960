package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/ppiankov/adveritas/internal/worker"
)

// Generator defines the interface for generative text backends
type Generator interface {
	// Name returns the provider name
	Name() string

	// Generate returns the raw completion for a prompt
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest contains the input for one completion
type GenerateRequest struct {
	// System is an optional system instruction
	System string

	// Prompt is the user prompt
	Prompt string

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length; 0 uses the configured value
	MaxTokens int

	// Temperature; 0 uses the configured value
	Temperature float64
}

// GenerateResponse contains the raw model output
type GenerateResponse struct {
	// Text is the completion, trimmed
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for response generation
	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "", // Disabled by default
		Timeout:     60,
		MaxTokens:   512,
		Temperature: 0.1,
	}
}

func (c Config) maxTokens(req GenerateRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 512
}

func (c Config) temperature(req GenerateRequest) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return c.Temperature
}

// statusError classifies an HTTP failure the same way the other
// collaborators do: client errors other than 429 are permanent
func statusError(code int, msg string) error {
	if code == http.StatusOK {
		return nil
	}
	return worker.CheckStatus(code, []byte(msg))
}

// ErrDisabled is returned by callers that need a generator when none is configured
var ErrDisabled = errors.New("no LLM provider configured")
