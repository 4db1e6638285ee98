package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cyberchat/internal/models"
	"cyberchat/internal/service/ai"
	"cyberchat/internal/store"
)

var (
	ErrEmptyMessage = errors.New("message is required")
	// ErrGenerationFailed marks upstream generation failures. The wrapped
	// message is safe to show the user.
	ErrGenerationFailed = errors.New("failed to generate response")
)

// personaPrompt pins the chatbot to its cybersecurity persona and asks for a
// structured JSON reply.
const personaPrompt = `You are a friendly and knowledgeable cybersecurity expert chatbot. Your role is to:

1. Respond naturally to greetings and pleasantries while maintaining a security-focused persona
2. Answer questions related to cybersecurity, information security, and digital safety in detail
3. Provide practical advice and step-by-step guidance on security best practices
4. Explain complex security concepts in a clear, understandable way
5. For non-security questions, politely redirect to cybersecurity topics

When responding:
- For greetings (e.g., "hi", "hello", "how are you"): Respond naturally but mention your security expertise
- For cybersecurity questions: Provide detailed, actionable answers
- For non-security questions: Politely explain that you specialize in cybersecurity and suggest some security-related topics
- Always maintain context for follow-up questions about security topics

Format your response as a JSON object with:
{
  "content": "Your response text",
  "isCyberSecurityRelated": boolean,
  "suggestedTopics": ["topic1", "topic2"] // Only include for non-security questions
}`

const degradedContent = "I apologize, but I encountered an error processing your request. Please try again."

// Relay forwards user messages to the text generator and records each
// exchange. Every upstream call is attempted once, bounded by the configured
// timeout; there is no retry.
type Relay struct {
	store     store.Store
	generator ai.TextGenerator
	timeout   time.Duration
}

func NewRelay(st store.Store, generator ai.TextGenerator, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Relay{store: st, generator: generator, timeout: timeout}
}

// Respond generates a reply for the message and persists the resulting turn.
func (r *Relay) Respond(ctx context.Context, accountID int64, message string) (*models.ConversationTurn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := r.generator.Complete(callCtx, personaPrompt, message)
	if err != nil {
		if errors.Is(err, ai.ErrMalformedReply) {
			// Degrade to an error-content reply rather than failing the
			// caller; the exchange is still recorded.
			log.Printf("malformed generator reply: %v", err)
			reply = &ai.Reply{Content: degradedContent}
		} else {
			log.Printf("generation failed: %v", err)
			return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, classifyUpstream(err))
		}
	}

	turn := models.ConversationTurn{
		AccountID:              accountID,
		Message:                message,
		Response:               reply.Content,
		SuggestedTopics:        reply.SuggestedTopics,
		IsCyberSecurityRelated: reply.IsCyberSecurityRelated,
	}
	saved, err := r.store.SaveTurn(ctx, turn)
	if err != nil {
		return nil, fmt.Errorf("save turn: %w", err)
	}
	return saved, nil
}

// History lists the account's conversation turns in creation order.
func (r *Relay) History(ctx context.Context, accountID int64) ([]models.ConversationTurn, error) {
	return r.store.TurnsByAccount(ctx, accountID)
}

func classifyUpstream(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "quota"):
		return "API quota exceeded. Please check the provider account."
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "401"):
		return "Invalid API key. Please check the API key configuration."
	default:
		return "An error occurred while processing your request."
	}
}
