package adapter

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/kokoro-dev/kokoro/pkg/model"
)

// LLM is the capability contract every backend satisfies.
type LLM interface {
	// Complete sends the ordered message sequence and returns the
	// assistant text. Returns model.ErrNoContent when the backend
	// produced no usable text. maxTokens <= 0 means provider default.
	Complete(ctx context.Context, messages []model.Message, maxTokens int) (string, error)
}

// Streamer is implemented by backends with native incremental output.
// The concatenation of chunks passed to fn equals the returned text.
type Streamer interface {
	CompleteStream(ctx context.Context, messages []model.Message, maxTokens int, fn func(chunk string)) (string, error)
}

// Reflector is implemented by backends with a dedicated reflection call.
type Reflector interface {
	Reflect(ctx context.Context, prompt string, maxTokens int) (string, error)
}

const reflectSystemPrompt = "You are a reflection and planning module. Provide a concise, actionable " +
	"analysis that helps the assistant improve its next response."

// Reflect runs a reflection prompt against llm, preferring a native
// Reflector and otherwise wrapping Complete with a fixed system instruction.
func Reflect(ctx context.Context, llm LLM, prompt string, maxTokens int) (string, error) {
	if r, ok := llm.(Reflector); ok {
		return r.Reflect(ctx, prompt, maxTokens)
	}
	return llm.Complete(ctx, []model.Message{
		{Role: model.RoleSystem, Content: reflectSystemPrompt},
		{Role: model.RoleUser, Content: prompt},
	}, maxTokens)
}

// Config selects and configures an LLM backend.
type Config struct {
	// Provider is one of "openai", "ollama", "gemini", "claude".
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// NewLLM creates the backend selected by cfg.Provider.
func NewLLM(ctx context.Context, cfg Config) (LLM, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	switch cfg.Provider {
	case "openai", "ollama":
		return newOpenAI(cfg), nil
	case "gemini":
		return newGemini(ctx, cfg)
	case "claude":
		return newClaude(cfg), nil
	default:
		return nil, goerr.New("unsupported LLM provider", goerr.V("provider", cfg.Provider))
	}
}
