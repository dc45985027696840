package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/narration-engine/pkg/chat"
	"github.com/jwebster45206/narration-engine/pkg/state"
)

// DefaultHistoryLimit is how many past turns are replayed to the model.
const DefaultHistoryLimit = 20

// Builder constructs chat messages for LLM interaction using a fluent interface.
type Builder struct {
	status       *state.GameStatus
	history      []chat.Turn
	userMessage  string
	rating       string
	historyLimit int
	messages     []chat.ChatMessage
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		historyLimit: DefaultHistoryLimit,
		messages:     make([]chat.ChatMessage, 0),
	}
}

// WithStatus sets the current player status.
func (b *Builder) WithStatus(gs state.GameStatus) *Builder {
	b.status = &gs
	return b
}

// WithHistory sets the conversation log, oldest first.
func (b *Builder) WithHistory(turns []chat.Turn) *Builder {
	b.history = turns
	return b
}

// WithUserMessage sets the message for this request.
func (b *Builder) WithUserMessage(message string) *Builder {
	b.userMessage = message
	return b
}

// WithContentRating sets the content rating.
func (b *Builder) WithContentRating(rating string) *Builder {
	b.rating = rating
	return b
}

// WithHistoryLimit sets the chat history window size.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// Build constructs and returns the final message array for LLM consumption.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.status == nil {
		return nil, fmt.Errorf("status is required")
	}
	if strings.TrimSpace(b.userMessage) == "" {
		return nil, fmt.Errorf("user message is required")
	}

	b.messages = make([]chat.ChatMessage, 0, max(b.historyLimit, 0)+4)

	// 1. System prompt
	if err := b.addSystemPrompt(); err != nil {
		return nil, fmt.Errorf("error building system prompt: %w", err)
	}

	// 2. Windowed chat history
	b.addHistory()

	// 3. User message
	b.addUserMessage()

	// 4. Final reminder
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: UserPostPrompt,
	})

	return b.messages, nil
}

func (b *Builder) addSystemPrompt() error {
	var sb strings.Builder
	sb.WriteString(BaseSystemPrompt)
	sb.WriteString("\n\n" + ProtocolPrompt)

	sb.WriteString("\n\nContent Rating: " + b.rating)
	sb.WriteString(" (" + GetContentRatingPrompt(b.rating) + ")")

	statePrompt, err := GetStatePrompt(*b.status)
	if err != nil {
		return err
	}
	sb.WriteString("\n\n" + statePrompt.Content)

	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: sb.String(),
	})
	return nil
}

// addHistory adds the last historyLimit successful turns. A failed model
// turn drops the player message that led to it, so roles keep alternating.
func (b *Builder) addHistory() {
	var usable []chat.ChatMessage
	for i, t := range b.history {
		if t.Failed {
			continue
		}
		if i+1 < len(b.history) && b.history[i+1].Failed && t.Role == chat.RoleUser {
			continue
		}
		usable = append(usable, t.ToMessage())
	}
	if b.historyLimit >= 0 && len(usable) > b.historyLimit {
		usable = usable[len(usable)-b.historyLimit:]
	}
	b.messages = append(b.messages, usable...)
}

// addUserMessage names the speaker unless the client sent a system message.
func (b *Builder) addUserMessage() {
	msg := b.userMessage
	if _, ok := chat.SystemTag(msg); !ok && b.status.Name != "" {
		msg = chat.FormatWithPCName(msg, b.status.Name)
	}
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleUser,
		Content: msg,
	})
}

// BuildMessages is a convenience function for the common case.
func BuildMessages(gs state.GameStatus, history []chat.Turn, message, rating string, historyLimit int) ([]chat.ChatMessage, error) {
	return New().
		WithStatus(gs).
		WithHistory(history).
		WithUserMessage(message).
		WithContentRating(rating).
		WithHistoryLimit(historyLimit).
		Build()
}
