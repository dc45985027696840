package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/jwebster45206/narration-engine/pkg/chat"
)

// MockNarration is the canned reply used when no script is queued.
const MockNarration = `The lantern gutters as you step into the vault. Dust hangs in the air, and somewhere below, water drips onto stone.

--- [JSON_DATA] ---
{"interface":{"mode":"buttons","content":["Light a torch","Listen at the stairs","Turn back"]},"quick_actions":["Check inventory"]}`

// MockLLMAPI is a mock implementation of LLMService for testing and the
// "mock" provider.
type MockLLMAPI struct {
	ChatFunc func(ctx context.Context, messages []chat.ChatMessage) (string, error)

	// Scripted replies are consumed in order before falling back to ChatFunc
	// or MockNarration.
	script []string

	// Track calls for testing
	ChatCalls []ChatCall

	mu sync.Mutex // protects all fields above
}

type ChatCall struct {
	Messages []chat.ChatMessage
}

var _ LLMService = (*MockLLMAPI)(nil)

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI(script ...string) *MockLLMAPI {
	return &MockLLMAPI{
		script:    script,
		ChatCalls: make([]ChatCall, 0),
	}
}

// Chat records the call and returns the next scripted reply.
func (m *MockLLMAPI) Chat(ctx context.Context, messages []chat.ChatMessage) (string, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, ChatCall{Messages: messages})
	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		m.mu.Unlock()
		return next, nil
	}
	fn := m.ChatFunc
	m.mu.Unlock()

	// Called without the lock so a blocking ChatFunc doesn't stall GetCalls.
	if fn != nil {
		return fn(ctx, messages)
	}

	return MockNarration, nil
}

// Queue appends scripted replies.
func (m *MockLLMAPI) Queue(replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, replies...)
}

// SetChatError sets up the mock to return an error on Chat
func (m *MockLLMAPI) SetChatError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage) (string, error) {
		return "", err
	}
}

// Reset clears all call tracking
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatCalls = make([]ChatCall, 0)
	m.script = nil
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockLLMAPI) GetCalls() []ChatCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]ChatCall, len(m.ChatCalls))
	copy(calls, m.ChatCalls)
	return calls
}

// MockMedia implements ImageGenerator and SpeechSynthesizer for tests.
type MockMedia struct {
	ImageFunc  func(ctx context.Context, req ImageRequest) (string, error)
	SpeechFunc func(ctx context.Context, text string) (string, error)

	ImageCalls  []ImageRequest
	SpeechCalls []string

	mu sync.Mutex
}

var (
	_ ImageGenerator    = (*MockMedia)(nil)
	_ SpeechSynthesizer = (*MockMedia)(nil)
)

func (m *MockMedia) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	m.mu.Lock()
	m.ImageCalls = append(m.ImageCalls, req)
	n := len(m.ImageCalls)
	fn := m.ImageFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return fmt.Sprintf("https://img.test/%d.webp", n), nil
}

func (m *MockMedia) Synthesize(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.SpeechCalls = append(m.SpeechCalls, text)
	n := len(m.SpeechCalls)
	fn := m.SpeechFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return fmt.Sprintf("https://audio.test/%d.mp3", n), nil
}

// Counts returns the number of image and speech calls so far.
func (m *MockMedia) Counts() (images, speech int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ImageCalls), len(m.SpeechCalls)
}
