package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/kokoro-dev/kokoro/pkg/model"
)

const (
	defaultOpenAIBase = "https://api.openai.com/v1"
	defaultOllamaBase = "http://localhost:11434/v1"
)

// openAIClient talks to the OpenAI chat completions API or any compatible
// endpoint. The "ollama" provider reuses it with the local default base URL,
// since Ollama exposes an OpenAI-compatible surface under /v1.
type openAIClient struct {
	cfg    Config
	base   string
	client *http.Client
}

func newOpenAI(cfg Config) *openAIClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		if cfg.Provider == "ollama" {
			base = defaultOllamaBase
		} else {
			base = defaultOpenAIBase
		}
	}
	return &openAIClient{
		cfg:    cfg,
		base:   base,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- wire types (subset of the chat completions API) ---

type oaiRequest struct {
	Model     string       `json:"model"`
	Messages  []oaiMessage `json:"messages"`
	MaxTokens int          `json:"max_tokens,omitempty"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *openAIClient) Complete(ctx context.Context, messages []model.Message, maxTokens int) (string, error) {
	payload := oaiRequest{
		Model:     c.cfg.Model,
		MaxTokens: maxTokens,
		Messages:  make([]oaiMessage, 0, len(messages)),
	}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, oaiMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", goerr.Wrap(err, "failed to build completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "completion request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read completion response")
	}

	var parsed oaiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", goerr.Wrap(err, "failed to decode completion response",
			goerr.V("status", resp.StatusCode))
	}
	if parsed.Error != nil {
		return "", goerr.New("completion API error",
			goerr.V("type", parsed.Error.Type), goerr.V("message", parsed.Error.Message))
	}
	if resp.StatusCode != http.StatusOK {
		return "", goerr.New("unexpected completion status", goerr.V("status", resp.StatusCode))
	}
	if len(parsed.Choices) == 0 {
		return "", goerr.Wrap(model.ErrNoContent, "completion returned no choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", goerr.Wrap(model.ErrNoContent, "completion message was empty")
	}
	return content, nil
}
