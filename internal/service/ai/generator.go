package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cyberchat/internal/config"
)

// Reply is the structured answer the persona prompt asks the model to emit.
type Reply struct {
	Content                string   `json:"content"`
	IsCyberSecurityRelated bool     `json:"isCyberSecurityRelated"`
	SuggestedTopics        []string `json:"suggestedTopics,omitempty"`
}

// ErrMalformedReply reports a provider answer that does not follow the
// expected JSON layout. Callers degrade instead of failing the request.
var ErrMalformedReply = errors.New("malformed generator reply")

// TextGenerator is the capability the chat relay depends on. Implementations
// wrap one vendor API each.
type TextGenerator interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (*Reply, error)
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// NewGenerator creates the configured provider backend.
func NewGenerator(ctx context.Context, provider string, cfg *config.Config) (TextGenerator, error) {
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		return NewOpenAI(provCfg.APIKey, provCfg.BaseURL, provCfg.Model), nil
	case ProviderGemini:
		return NewGemini(ctx, provCfg.APIKey, provCfg.Model)
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

func parseReply(raw string) (*Reply, error) {
	raw = strings.TrimSpace(raw)
	// Some models wrap JSON in a markdown fence despite instructions.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	var reply Reply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if strings.TrimSpace(reply.Content) == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedReply)
	}
	return &reply, nil
}
