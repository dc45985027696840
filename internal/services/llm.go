package services

import (
	"context"

	"github.com/jwebster45206/narration-engine/pkg/chat"
)

// LLMService defines the interface for interacting with the narrator model
type LLMService interface {
	// Chat sends the assembled prompt and returns the raw response text,
	// narrative and JSON payload together.
	Chat(ctx context.Context, messages []chat.ChatMessage) (string, error)
}

// ImageRequest describes a single image generation job.
type ImageRequest struct {
	Prompt string
	Style  string
	Width  int
	Height int
}

// ImageGenerator renders scene and avatar images. The returned string is
// a URL the client can display directly (http(s) or data URL).
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}

// SpeechSynthesizer turns narrative text into playable audio. The returned
// string is an audio reference (URL or data URL).
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}
