package adapter

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"

	"github.com/kokoro-dev/kokoro/pkg/model"
)

const defaultClaudeMaxTokens = 1024

// claudeClient implements LLM and Streamer over the Anthropic API.
type claudeClient struct {
	client *anthropic.Client
	model  string
}

func newClaude(cfg Config) *claudeClient {
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	m := cfg.Model
	if m == "" {
		m = "claude-sonnet-4-20250514"
	}
	return &claudeClient{client: &client, model: m}
}

func (c *claudeClient) params(messages []model.Message, maxTokens int) anthropic.MessageNewParams {
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}

	var systemParts []string
	var turns []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case model.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  turns,
	}
	if len(systemParts) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(systemParts, "\n\n")}}
	}
	return params
}

func (c *claudeClient) Complete(ctx context.Context, messages []model.Message, maxTokens int) (string, error) {
	resp, err := c.client.Messages.New(ctx, c.params(messages, maxTokens))
	if err != nil {
		return "", goerr.Wrap(err, "claude API error")
	}
	return textFromMessage(resp)
}

// CompleteStream streams completion chunks through fn while accumulating
// the full message; the concatenated chunks equal the returned text.
func (c *claudeClient) CompleteStream(ctx context.Context, messages []model.Message, maxTokens int, fn func(chunk string)) (string, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.params(messages, maxTokens))
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			continue
		}
		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := evt.Delta.AsAny().(anthropic.TextDelta); ok {
				fn(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", goerr.Wrap(err, "claude streaming error")
	}
	return textFromMessage(&message)
}

func textFromMessage(resp *anthropic.Message) (string, error) {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", goerr.Wrap(model.ErrNoContent, "claude response had no text blocks")
	}
	return text, nil
}
