package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/narration-engine/pkg/mode"
	"github.com/jwebster45206/narration-engine/pkg/payload"
)

// MaxMessageLength caps a single player message.
const MaxMessageLength = 2000

// ChatRequest is a free text message submitted by the player.
type ChatRequest struct {
	Message string `json:"message"`
}

func (cr *ChatRequest) Validate() error {
	if strings.TrimSpace(cr.Message) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if len(cr.Message) > MaxMessageLength {
		return fmt.Errorf("message exceeds maximum length of %d characters", MaxMessageLength)
	}
	return nil
}

// Role identifies who authored a turn in the session log.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Roles used on the wire to the LLM.
const (
	ChatRoleUser   = "user"
	ChatRoleAgent  = "assistant"
	ChatRoleSystem = "system"
)

// ChatMessage is a single message sent to the LLM.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Turn is one entry in the conversation log. Turns are never edited after
// they are appended, except for the image and audio references that
// enrichment attaches later.
type Turn struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
	// Text is the player's message, or the sanitized narrative of a model turn.
	Text string `json:"text"`
	// Raw is the unmodified model output.
	Raw       string           `json:"raw,omitempty"`
	Payload   *payload.Payload `json:"payload,omitempty"`
	Widget    *mode.Resolution `json:"widget,omitempty"`
	ImageURL  string           `json:"image_url,omitempty"`
	AudioRef  string           `json:"audio_ref,omitempty"`
	Failed    bool             `json:"failed,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewUserTurn creates a player turn.
func NewUserTurn(text string) Turn {
	return Turn{ID: uuid.New(), Role: RoleUser, Text: text, CreatedAt: time.Now().UTC()}
}

// NewModelTurn creates a model turn.
func NewModelTurn(narrative, raw string, p *payload.Payload) Turn {
	return Turn{
		ID:        uuid.New(),
		Role:      RoleModel,
		Text:      narrative,
		Raw:       raw,
		Payload:   p,
		CreatedAt: time.Now().UTC(),
	}
}

// ToMessage converts a turn to an LLM message. Model turns replay their
// raw output so the model keeps seeing its own protocol.
func (t Turn) ToMessage() ChatMessage {
	if t.Role == RoleModel {
		content := t.Raw
		if content == "" {
			content = t.Text
		}
		return ChatMessage{Role: ChatRoleAgent, Content: content}
	}
	return ChatMessage{Role: ChatRoleUser, Content: t.Text}
}

// FormatWithPCName prefixes a player message with the character's name so
// the narrator knows who is speaking. Messages that already start with a
// short "Speaker:" prefix are left alone.
func FormatWithPCName(message, pcName string) string {
	if i := strings.Index(message, ":"); i > 0 && i <= 50 {
		return message
	}
	return pcName + ": " + message
}
