package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiGenerator implements TextGenerator on the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("new gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Complete(ctx context.Context, systemPrompt, userMessage string) (*Reply, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(userMessage), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return parseReply(resp.Text())
}
