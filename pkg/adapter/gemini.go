package adapter

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"github.com/kokoro-dev/kokoro/pkg/model"
)

// geminiClient implements LLM over the Gemini API. System messages are
// folded into the request's SystemInstruction since the API models them
// separately from the turn sequence.
type geminiClient struct {
	client *genai.Client
	model  string
}

func newGemini(ctx context.Context, cfg Config) (*geminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}
	m := cfg.Model
	if m == "" {
		m = "gemini-2.5-flash"
	}
	return &geminiClient{client: client, model: m}, nil
}

func (g *geminiClient) Complete(ctx context.Context, messages []model.Message, maxTokens int) (string, error) {
	var systemParts []string
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case model.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	config := &genai.GenerateContentConfig{}
	if len(systemParts) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(systemParts, "\n\n"), "")
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.Wrap(model.ErrNoContent, "gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", goerr.Wrap(model.ErrNoContent, "gemini candidate had no text")
	}
	return text, nil
}

// geminiEmbedder implements Embedder over the Gemini embedding API.
type geminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
}

func newGeminiEmbedder(ctx context.Context, cfg EmbeddingConfig) (*geminiEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client for embeddings")
	}
	m := cfg.Model
	if m == "" {
		m = "gemini-embedding-001"
	}
	return &geminiEmbedder{client: client, model: m, dimensions: cfg.Dimensions}, nil
}

func (g *geminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	config := &genai.EmbedContentConfig{}
	if g.dimensions > 0 {
		width := int32(g.dimensions)
		config.OutputDimensionality = &width
	}

	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), config)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to embed content")
		}
		if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return nil, goerr.New("embedding response had no values")
		}
		vectors = append(vectors, resp.Embeddings[0].Values)
	}
	return vectors, nil
}

func (g *geminiEmbedder) Dimensions() int {
	return g.dimensions
}
